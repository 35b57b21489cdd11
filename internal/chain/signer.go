package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RejectionCode is the wallet-standard code for a user-declined request.
const RejectionCode = 4001

// RejectedError is returned when the user declines the signing prompt.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason != "" {
		return "user rejected transaction: " + e.Reason
	}
	return "user rejected transaction"
}

// ErrorCode lets the error parser classify the rejection.
func (e *RejectedError) ErrorCode() int { return RejectionCode }

// Prompt describes a transaction awaiting the user's approval.
type Prompt struct {
	From     common.Address
	To       *common.Address
	Value    *big.Int
	Gas      uint64
	ChainID  *big.Int
	Selector string
	DataLen  int
}

// ConfirmFunc asks the user to approve a transaction.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

// KeySigner signs with a local ECDSA key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address

	// Confirm, when set, is consulted before every signature.
	Confirm ConfirmFunc
}

// NewKeySigner wraps key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// FromHex parses a hex private key (with or without 0x).
func FromHex(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// FromKeystore decrypts a keystore v3 JSON file.
func FromKeystore(path, passphrase string) (*KeySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	k, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return NewKeySigner(k.PrivateKey), nil
}

// Address returns the signer's account.
func (s *KeySigner) Address() common.Address { return s.address }

// SignTx asks for confirmation (when configured) and signs tx.
func (s *KeySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s.Confirm != nil {
		p := Prompt{
			From:    s.address,
			To:      tx.To(),
			Value:   tx.Value(),
			Gas:     tx.Gas(),
			ChainID: chainID,
			DataLen: len(tx.Data()),
		}
		if len(tx.Data()) >= 4 {
			p.Selector = fmt.Sprintf("0x%x", tx.Data()[:4])
		}
		ok, err := s.Confirm(ctx, p)
		if err != nil {
			var rej *RejectedError
			if errors.As(err, &rej) {
				return nil, err
			}
			return nil, fmt.Errorf("confirm: %w", err)
		}
		if !ok {
			return nil, &RejectedError{}
		}
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return signed, nil
}
