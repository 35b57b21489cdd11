package contracts

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// fakeBackend records sent transactions and serves receipts after a number
// of polls.
type fakeBackend struct {
	mu           sync.Mutex
	sent         []*types.Transaction
	callErr      error
	estimate     uint64
	receiptAfter int
	polls        int
	receipt      *types.Receipt
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(100), nil }

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, b.callErr
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.estimate, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(10), BaseFee: big.NewInt(7)}, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls++
	if b.polls <= b.receiptAfter {
		return nil, ethereum.NotFound
	}
	r := *b.receipt
	r.TxHash = h
	return &r, nil
}

type testSigner struct {
	key *ecdsa.PrivateKey
}

func newTestSigner() *testSigner {
	k, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &testSigner{key: k}
}

func (s *testSigner) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

func (s *testSigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
