package models

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestAdminIndexJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    AdminIndex
		wantErr bool
	}{
		{`"TOP"`, AdminTop, false},
		{`"top"`, AdminTop, false},
		{`3`, 3, false},
		{`"2"`, 2, false},
		{`-4`, 0, true},
		{`"boss"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		var got AdminIndex
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}

	out, err := json.Marshal([]AdminIndex{AdminTop, 0, 7})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `["TOP",0,7]` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestAdminIndexString(t *testing.T) {
	if AdminTop.String() != "TOP" || AdminIndex(2).String() != "2" {
		t.Errorf("unexpected strings %q %q", AdminTop.String(), AdminIndex(2).String())
	}
}

func TestPermissionSetSorted(t *testing.T) {
	s := PermissionSet{PermDDCreator: true, PermQuickJoin: true, PermTaskCreator: true, PermTokenApprover: false}
	want := []Permission{PermQuickJoin, PermTaskCreator, PermDDCreator}
	if got := s.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted() = %v, want %v", got, want)
	}
	if s.Has(PermTokenApprover) {
		t.Error("false entry reported as held")
	}
}

func TestSortPlaceholders(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ps := []Placeholder{
		{TxHash: "0xc", CreatedAt: t0.Add(time.Second)},
		{TxHash: "0xb", CreatedAt: t0},
		{TxHash: "0xa", CreatedAt: t0},
	}
	SortPlaceholders(ps)
	got := []string{ps[0].TxHash, ps[1].TxHash, ps[2].TxHash}
	if want := []string{"0xa", "0xb", "0xc"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestProposalStatusIsFinal(t *testing.T) {
	for s, want := range map[ProposalStatus]bool{
		ProposalOpen:                 false,
		ProposalAwaitingAnnouncement: false,
		ProposalFinalized:            true,
		ProposalFinalizedNoQuorum:    true,
	} {
		if s.IsFinal() != want {
			t.Errorf("%s.IsFinal() = %v", s, !want)
		}
	}
}
