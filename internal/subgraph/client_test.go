package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Variables["id"] != "0xabc" {
			t.Errorf("variables = %v", body.Variables)
		}
		w.Write([]byte(`{"data":{"organization":{"id":"0xabc","name":"Acme"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	data, err := c.Do(context.Background(), "query { x }", map[string]any{"id": "0xabc"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	var out struct {
		Organization struct{ Name string } `json:"organization"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Organization.Name != "Acme" {
		t.Errorf("name = %q", out.Organization.Name)
	}
}

func TestClientGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"indexing_error"},{"message":"bad field"}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Do(context.Background(), "query { x }", nil)
	var gerr *GraphQLError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphQLError, got %v", err)
	}
	if len(gerr.Messages) != 2 {
		t.Errorf("messages = %v", gerr.Messages)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Do(context.Background(), "query { x }", nil)
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if serr.ErrorCode() != http.StatusBadGateway {
		t.Errorf("code = %d", serr.ErrorCode())
	}
}
