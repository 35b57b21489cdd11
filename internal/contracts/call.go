// Package contracts is the thin typed layer over every contract write. It
// validates and packs arguments and hands back a CallRequest; all retry,
// gas and notification policy lives in the lifecycle package.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Sentinel errors for calls rejected before any RPC.
var (
	ErrNoSigner       = errors.New("no signer connected")
	ErrMissingAddress = errors.New("contract address missing")
	ErrInvalidArgs    = errors.New("invalid arguments")
)

// Backend is the chain access a CallRequest needs. *ethclient.Client
// satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer is the connected wallet.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// SendOpts controls transaction construction.
type SendOpts struct {
	GasLimit uint64
	Nonce    *uint64
}

// Handle tracks a sent transaction.
type Handle interface {
	TxHash() common.Hash
	Wait(ctx context.Context) (*types.Receipt, error)
}

// CallRequest is a fully packed contract write.
type CallRequest struct {
	Contract string
	Method   string
	Args     []any
	To       common.Address
	Data     []byte
	Value    *big.Int

	backend Backend
	signer  Signer
	poll    time.Duration
}

// Target returns the logical contract and method names.
func (r *CallRequest) Target() (contract, method string) {
	return r.Contract, r.Method
}

func (r *CallRequest) String() string {
	return fmt.Sprintf("%s.%s", r.Contract, r.Method)
}

func (r *CallRequest) msg() ethereum.CallMsg {
	return ethereum.CallMsg{
		From:  r.signer.Address(),
		To:    &r.To,
		Value: r.Value,
		Data:  r.Data,
	}
}

// Preflight simulates the call against the latest state.
func (r *CallRequest) Preflight(ctx context.Context) error {
	_, err := r.backend.CallContract(ctx, r.msg(), nil)
	return err
}

// EstimateGas returns the node's gas estimate.
func (r *CallRequest) EstimateGas(ctx context.Context) (uint64, error) {
	return r.backend.EstimateGas(ctx, r.msg())
}

// Send builds an EIP-1559 transaction, has the signer sign it and
// broadcasts it.
func (r *CallRequest) Send(ctx context.Context, opts SendOpts) (Handle, error) {
	chainID, err := r.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}

	var nonce uint64
	if opts.Nonce != nil {
		nonce = *opts.Nonce
	} else if nonce, err = r.backend.PendingNonceAt(ctx, r.signer.Address()); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	tip, err := r.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	head, err := r.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	value := r.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       opts.GasLimit,
		To:        &r.To,
		Value:     value,
		Data:      r.Data,
	})

	signed, err := r.signer.SignTx(ctx, tx, chainID)
	if err != nil {
		return nil, err
	}
	if err := r.backend.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return &pendingTx{hash: signed.Hash(), backend: r.backend, poll: r.poll}, nil
}

type pendingTx struct {
	hash    common.Hash
	backend Backend
	poll    time.Duration
}

func (p *pendingTx) TxHash() common.Hash { return p.hash }

// Wait polls for the receipt until it exists or ctx ends.
func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	poll := p.poll
	if poll <= 0 {
		poll = DefaultReceiptPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		receipt, err := p.backend.TransactionReceipt(ctx, p.hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
