package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcus/po/internal/events"
)

// fakeFetcher returns a counter-stamped payload and optionally blocks until
// released.
type fakeFetcher struct {
	calls   atomic.Int64
	release chan struct{}
	err     error
}

func (f *fakeFetcher) Do(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	n := f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(fmt.Sprintf(`{"n":%d}`, n)), nil
}

func decodeN(t *testing.T, r *Response) int {
	t.Helper()
	var out struct{ N int }
	if err := r.Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out.N
}

func tasksReq(org string) Request {
	return Request{Name: "Tasks", Query: "q", Variables: map[string]any{"org": org}, OrgID: org, Family: events.FamilyTasks}
}

func TestStorePolicies(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	s := NewStore(f, StoreOptions{})
	defer s.Close()

	req := tasksReq("0x1")

	r, err := s.Execute(ctx, req, CacheFirst)
	if err != nil {
		t.Fatal(err)
	}
	if r.FromCache || decodeN(t, r) != 1 {
		t.Fatalf("first CacheFirst should fetch, got %+v", r)
	}

	r, _ = s.Execute(ctx, req, CacheFirst)
	if !r.FromCache || decodeN(t, r) != 1 {
		t.Errorf("second CacheFirst should hit cache, got %+v", r)
	}

	r, _ = s.Execute(ctx, req, NetworkOnly)
	if r.FromCache || decodeN(t, r) != 2 {
		t.Errorf("NetworkOnly should fetch, got %+v", r)
	}

	r, _ = s.Execute(ctx, req, CacheFirst)
	if decodeN(t, r) != 2 {
		t.Errorf("NetworkOnly result should be cached, got n=%d", decodeN(t, r))
	}
}

func TestStoreCacheAndNetworkRefreshes(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	s := NewStore(f, StoreOptions{})
	defer s.Close()

	req := tasksReq("0x1")
	if _, err := s.Execute(ctx, req, NetworkOnly); err != nil {
		t.Fatal(err)
	}

	refreshed := make(chan Entry, 1)
	cancel := s.Watch(func(e Entry) { refreshed <- e })
	defer cancel()

	r, err := s.Execute(ctx, req, CacheAndNetwork)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Stale || !r.FromCache || decodeN(t, r) != 1 {
		t.Errorf("expected stale cached n=1, got %+v", r)
	}

	select {
	case e := <-refreshed:
		if string(e.Data) != `{"n":2}` {
			t.Errorf("refreshed data = %s", e.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh never arrived")
	}
}

func TestStoreCoalescesConcurrentFetches(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	s := NewStore(f, StoreOptions{})
	defer s.Close()

	req := tasksReq("0x1")
	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.Execute(context.Background(), req, NetworkOnly)
			if err != nil {
				t.Error(err)
				return
			}
			var out struct{ N int }
			_ = r.Decode(&out)
			results[i] = out.N
		}(i)
	}

	// Let all callers join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	for i, n := range results {
		if n != 1 {
			t.Errorf("result[%d] = %d", i, n)
		}
	}
}

func TestStoreInvalidateFamily(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&fakeFetcher{}, StoreOptions{})
	defer s.Close()

	orgA, orgB := tasksReq("0xa"), tasksReq("0xb")
	props := Request{Name: "Proposals", Query: "q", Variables: map[string]any{"org": "0xa"}, OrgID: "0xa", Family: events.FamilyProposals}
	for _, r := range []Request{orgA, orgB, props} {
		if _, err := s.Execute(ctx, r, CacheFirst); err != nil {
			t.Fatal(err)
		}
	}

	if n := s.InvalidateFamily("0xA", events.FamilyTasks); n != 1 {
		t.Errorf("invalidated %d, want 1", n)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	r, _ := s.Execute(ctx, orgA, CacheFirst)
	if r.FromCache {
		t.Error("invalidated entry served from cache")
	}
	r, _ = s.Execute(ctx, orgB, CacheFirst)
	if !r.FromCache {
		t.Error("other org's entry should survive")
	}
}

func TestStoreInvalidateDuringFetchSkipsCaching(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	s := NewStore(f, StoreOptions{})
	defer s.Close()

	req := tasksReq("0x1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Execute(context.Background(), req, NetworkOnly)
	}()

	// Wait until the fetch is in flight.
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	s.InvalidateFamily("0x1", events.FamilyTasks)
	close(f.release)
	<-done

	if s.Len() != 0 {
		t.Errorf("result of a pre-invalidation fetch was cached")
	}
}

func TestStoreErrorsAndClose(t *testing.T) {
	boom := errors.New("boom")
	s := NewStore(&fakeFetcher{err: boom}, StoreOptions{})

	_, err := s.Execute(context.Background(), tasksReq("0x1"), NetworkOnly)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}

	s.Close()
	s.Close()
	if _, err := s.Execute(context.Background(), tasksReq("0x1"), CacheFirst); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close err = %v", err)
	}
}

func TestRequestKeyStable(t *testing.T) {
	a := Request{Name: "Tasks", Variables: map[string]any{"org": "0x1", "first": 10}}
	b := Request{Name: "Tasks", Variables: map[string]any{"first": 10, "org": "0x1"}}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}
}

func TestSplitProposalKey(t *testing.T) {
	tests := []struct {
		in       string
		contract string
		id       string
		wantErr  bool
	}{
		{"0xABC-12", "0xabc", "12", false},
		{"0xabc-0", "0xabc", "0", false},
		{"0xabc", "", "", true},
		{"0xabc-", "", "", true},
		{"0xabc-1-2", "", "", true},
		{"0xabc-x", "", "", true},
	}
	for _, tt := range tests {
		c, id, err := SplitProposalKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitProposalKey(%q) err = %v", tt.in, err)
			continue
		}
		if c != tt.contract || id != tt.id {
			t.Errorf("SplitProposalKey(%q) = %q, %q", tt.in, c, id)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	if DefaultPolicy(events.FamilyOrganization) != CacheFirst {
		t.Error("organization should be cache-first")
	}
	if DefaultPolicy(events.FamilyTasks) != CacheAndNetwork {
		t.Error("tasks should be cache-and-network")
	}
	if DefaultPolicy(events.FamilyUser) != NetworkOnly {
		t.Error("user should be network-only")
	}
	if p, err := ParsePolicy("Cache-And-Network"); err != nil || p != CacheAndNetwork {
		t.Errorf("ParsePolicy = %v, %v", p, err)
	}
}
