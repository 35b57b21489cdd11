package chain

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func testTx() *types.Transaction {
	to := common.HexToAddress("0x00000000219ab540356cBB839Cbe05303d7705Fa")
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(100),
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(5),
		Data:      []byte{0xde, 0xad, 0xbe, 0xef, 0x01},
	})
}

func TestKeySignerSigns(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	s := NewKeySigner(key)

	signed, err := s.SignTx(context.Background(), testTx(), big.NewInt(100))
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(100)), signed)
	if err != nil {
		t.Fatal(err)
	}
	if from != s.Address() {
		t.Errorf("sender = %s, want %s", from.Hex(), s.Address().Hex())
	}
}

func TestKeySignerConfirm(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := NewKeySigner(key)

	var seen Prompt
	s.Confirm = func(ctx context.Context, p Prompt) (bool, error) {
		seen = p
		return false, nil
	}

	_, err := s.SignTx(context.Background(), testTx(), big.NewInt(100))
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rej.ErrorCode() != RejectionCode {
		t.Errorf("code = %d", rej.ErrorCode())
	}
	if seen.Selector != "0xdeadbeef" || seen.DataLen != 5 || seen.Gas != 21000 {
		t.Errorf("prompt = %+v", seen)
	}

	s.Confirm = func(ctx context.Context, p Prompt) (bool, error) { return true, nil }
	if _, err := s.SignTx(context.Background(), testTx(), big.NewInt(100)); err != nil {
		t.Errorf("approved SignTx: %v", err)
	}
}

func TestFromHex(t *testing.T) {
	key, _ := crypto.GenerateKey()
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	s, err := FromHex(hexKey)
	if err != nil {
		t.Fatal(err)
	}
	if s.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Error("address mismatch")
	}
	if _, err := FromHex("0xnothex"); err == nil {
		t.Error("expected error for bad key")
	}
}

func TestFromKeystore(t *testing.T) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	acct, err := ks.NewAccount("pw")
	if err != nil {
		t.Fatal(err)
	}

	s, err := FromKeystore(filepath.Clean(acct.URL.Path), "pw")
	if err != nil {
		t.Fatalf("FromKeystore: %v", err)
	}
	if s.Address() != acct.Address {
		t.Errorf("address = %s, want %s", s.Address().Hex(), acct.Address.Hex())
	}
	if _, err := FromKeystore(acct.URL.Path, "wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
}
