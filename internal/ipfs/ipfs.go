// Package ipfs stores and fetches the JSON documents that on-chain records
// point to by CID.
package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrNotFound   = errors.New("content not found")
	ErrInvalidCID = errors.New("invalid CID")
)

// Store is a content-addressed blob store.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, cid string) ([]byte, error)
}

// NormalizeCID parses s and returns its CIDv0 form. Only sha2-256 dag-pb
// content has a v0 form, and only v0 survives the bytes32 round trip the
// contracts store.
func NormalizeCID(s string) (string, error) {
	c, err := cid.Decode(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidCID, s, err)
	}
	if c.Version() == 0 {
		return c.String(), nil
	}
	dec, err := multihash.Decode(c.Hash())
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidCID, s, err)
	}
	if c.Type() != cid.DagProtobuf || dec.Code != multihash.SHA2_256 || dec.Length != 32 {
		return "", fmt.Errorf("%w: %q has no CIDv0 form", ErrInvalidCID, s)
	}
	return cid.NewCidV0(c.Hash()).String(), nil
}

// PutJSON marshals v and stores it.
func PutJSON(ctx context.Context, s Store, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return s.Put(ctx, data)
}

// GetJSON fetches cid and unmarshals it into v.
func GetJSON(ctx context.Context, s Store, cid string, v any) error {
	data, err := s.Get(ctx, cid)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", cid, err)
	}
	return nil
}

// Link is a named external link in organization metadata.
type Link struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// OrgMetadata is the document an organization's metadata CID points to.
type OrgMetadata struct {
	Description string `json:"description" yaml:"description"`
	Links       []Link `json:"links" yaml:"links"`
	Template    string `json:"template,omitempty" yaml:"template"`
}

// ProposalMetadata is the document a proposal's description hash points to.
type ProposalMetadata struct {
	Description string   `json:"description"`
	OptionNames []string `json:"optionNames,omitempty"`
}

// TaskMetadata is the document a task's description hash points to.
type TaskMetadata struct {
	Description    string  `json:"description"`
	Difficulty     string  `json:"difficulty,omitempty"`
	EstimatedHours float64 `json:"estimatedHours,omitempty"`
	Submission     string  `json:"submission,omitempty"`
}

// MemStore keeps content in memory, addressed by the CIDv0 of its raw
// bytes. It backs dry runs and tests.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Put stores data and returns its CID.
func (m *MemStore) Put(ctx context.Context, data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	id := cid.NewCidV0(mh).String()
	m.mu.Lock()
	m.blobs[id] = append([]byte(nil), data...)
	m.mu.Unlock()
	return id, nil
}

// Get returns the content stored under id.
func (m *MemStore) Get(ctx context.Context, id string) ([]byte, error) {
	norm, err := NormalizeCID(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[norm]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, norm)
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of stored blobs.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
