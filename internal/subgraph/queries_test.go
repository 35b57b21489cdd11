package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/marcus/po/internal/encoding"
)

type staticFetcher struct {
	data map[string]string // keyed by first variable value or query name
	last map[string]any
}

func (f *staticFetcher) Do(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	f.last = vars
	for _, k := range []string{"id", "hatId", "taskId", "org"} {
		if v, ok := vars[k].(string); ok {
			if d, ok := f.data[v]; ok {
				return json.RawMessage(d), nil
			}
		}
	}
	return json.RawMessage(f.data[""]), nil
}

func TestOrganizationByName(t *testing.T) {
	id := encoding.OrgIDHex("Acme Co")
	f := &staticFetcher{data: map[string]string{
		id: `{"organization":{"id":"` + id + `","name":"Acme Co","roles":[{"index":0,"hatId":"5","adminRoleIndex":"TOP"}]}}`,
	}}
	q := NewQueries(NewStore(f, StoreOptions{}))
	defer q.Store().Close()

	org, err := q.OrganizationByName(context.Background(), "  acme   CO ", Default)
	if err != nil {
		t.Fatalf("OrganizationByName: %v", err)
	}
	if org.Name != "Acme Co" || len(org.Roles) != 1 || !org.Roles[0].AdminRoleIndex.IsTop() {
		t.Errorf("org = %+v", org)
	}
}

func TestSingleEntityNotFound(t *testing.T) {
	f := &staticFetcher{data: map[string]string{"": `{"organization":null,"proposal":null,"tasks":[],"user":null,"roles":[]}`}}
	q := NewQueries(NewStore(f, StoreOptions{}))
	defer q.Store().Close()
	ctx := context.Background()

	if _, err := q.Organization(ctx, "0x01", NetworkOnly); !errors.Is(err, ErrNotFound) {
		t.Errorf("Organization err = %v", err)
	}
	if _, err := q.Proposal(ctx, "0x01", "0xabc-1", NetworkOnly); !errors.Is(err, ErrNotFound) {
		t.Errorf("Proposal err = %v", err)
	}
	if _, err := q.Task(ctx, "0x01", "4", NetworkOnly); !errors.Is(err, ErrNotFound) {
		t.Errorf("Task err = %v", err)
	}
	if _, err := q.User(ctx, "0xdead", NetworkOnly); !errors.Is(err, ErrNotFound) {
		t.Errorf("User err = %v", err)
	}
	if _, err := q.HatWearers(ctx, "0x01", "7", NetworkOnly); !errors.Is(err, ErrNotFound) {
		t.Errorf("HatWearers err = %v", err)
	}
}

func TestHatWearersNormalizesHat(t *testing.T) {
	hat, _ := encoding.NormalizeHatID("255")
	f := &staticFetcher{data: map[string]string{
		hat: `{"roles":[{"wearers":[{"address":"0xaa","eligible":true,"standing":true}]}]}`,
	}}
	q := NewQueries(NewStore(f, StoreOptions{}))
	defer q.Store().Close()

	ws, err := q.HatWearers(context.Background(), "0x01", "0xff", Default)
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 1 || ws[0].Address != "0xaa" {
		t.Errorf("wearers = %+v", ws)
	}
	if f.last["hatId"] != hat {
		t.Errorf("hatId variable = %v, want %s", f.last["hatId"], hat)
	}
}
