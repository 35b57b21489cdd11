package events

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
		valid    bool
	}{
		{"proposal_created", ProposalCreated, true},
		{"ProposalCreated", ProposalCreated, true},
		{"proposal-created", ProposalCreated, true},
		{"PROPOSAL_CREATED", ProposalCreated, true},
		{"  vote_cast ", VoteCast, true},
		{"TokenRequestCancelled", TokenRequestCancelled, true},
		{"username registered", UsernameRegistered, true},

		// Invalid
		{"proposal", "", false},
		{"task_deleted", "", false},
		{"", "", false},
	}

	for _, test := range tests {
		result, valid := ParseKind(test.input)
		if valid != test.valid {
			t.Errorf("ParseKind(%q): expected valid=%v, got %v", test.input, test.valid, valid)
		}
		if result != test.expected {
			t.Errorf("ParseKind(%q): expected %q, got %q", test.input, test.expected, result)
		}
	}
}

func TestEveryKindHasFamilies(t *testing.T) {
	families := AffectedFamilies()
	for k := range AllKinds() {
		if len(families[k]) == 0 {
			t.Errorf("kind %q has no affected families", k)
		}
	}
	for k := range families {
		if !IsValidKind(string(k)) {
			t.Errorf("families map has unknown kind %q", k)
		}
	}
}

func TestCreatesRow(t *testing.T) {
	for k := range AllKinds() {
		creates := CreatesRow(k)
		if creates && RowFamily(k) == "" {
			t.Errorf("%q creates rows but has no row family", k)
		}
		if !creates && RowFamily(k) != "" {
			t.Errorf("%q does not create rows but has row family %q", k, RowFamily(k))
		}
	}
}
