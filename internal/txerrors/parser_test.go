package txerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type rpcErr struct {
	code int
	msg  string
	data interface{}
}

func (e *rpcErr) Error() string          { return e.msg }
func (e *rpcErr) ErrorCode() int         { return e.code }
func (e *rpcErr) ErrorData() interface{} { return e.data }

type reasonErr struct{ reason string }

func (e *reasonErr) Error() string        { return "call failed" }
func (e *reasonErr) RevertReason() string { return e.reason }

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		want        Category
		recoverable bool
	}{
		{"code 4001", &rpcErr{code: 4001, msg: "rejected"}, CategoryUserRejected, true},
		{"user denied text", errors.New("MetaMask Tx Signature: User denied transaction signature."), CategoryUserRejected, true},
		{"action rejected", errors.New("ACTION_REJECTED: action rejected"), CategoryUserRejected, true},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), CategoryInsufficientFunds, false},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), CategoryNetwork, true},
		{"503", &rpcErr{code: 503, msg: "upstream"}, CategoryNetwork, true},
		{"connection refused text", errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"), CategoryNetwork, true},
		{"unpredictable gas", errors.New("UNPREDICTABLE_GAS_LIMIT"), CategoryGasEstimation, true},
		{"cannot estimate", errors.New("cannot estimate gas; transaction may fail"), CategoryGasEstimation, true},
		{"revert text", errors.New("execution reverted"), CategoryContractRevert, false},
		{"reason field", &reasonErr{reason: "AlreadyClaimed"}, CategoryContractRevert, false},
		{"other", errors.New("boom"), CategoryUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.err)
			if got.Category != tt.want {
				t.Fatalf("Category = %s, want %s", got.Category, tt.want)
			}
			if got.Recoverable != tt.recoverable {
				t.Fatalf("Recoverable = %v, want %v", got.Recoverable, tt.recoverable)
			}
			if got.UserMessage == "" {
				t.Fatal("UserMessage should not be empty")
			}
			if !errors.Is(got, tt.err) {
				t.Fatal("ParsedError should unwrap to the original")
			}
		})
	}
}

func TestParseRuleOrder(t *testing.T) {
	// A 4001 code wins even when the message also mentions a revert.
	got := Parse(&rpcErr{code: 4001, msg: "execution reverted"})
	if got.Category != CategoryUserRejected {
		t.Fatalf("Category = %s, want user_rejected", got.Category)
	}
	// Insufficient funds wins over a network-looking message.
	got = Parse(errors.New("insufficient funds: request timeout"))
	if got.Category != CategoryInsufficientFunds {
		t.Fatalf("Category = %s, want insufficient_funds", got.Category)
	}
}

func TestParseNilAndIdempotent(t *testing.T) {
	if Parse(nil) != nil {
		t.Fatal("Parse(nil) should be nil")
	}
	first := Parse(errors.New("execution reverted: NotCreator"))
	wrapped := fmt.Errorf("outer: %w", first)
	if Parse(wrapped) != first {
		t.Fatal("parsing an already parsed error should return it unchanged")
	}
}

func TestParseCodeFromMessage(t *testing.T) {
	got := Parse(errors.New(`{"code": 4001, "message": "nope"}`))
	if got.Category != CategoryUserRejected || got.Code != 4001 {
		t.Fatalf("got %s code=%d", got.Category, got.Code)
	}
}

func TestParseRevertReasonString(t *testing.T) {
	data, err := abi.Arguments{{Type: mustType(t, "string")}}.Pack("VotingExpired")
	if err != nil {
		t.Fatal(err)
	}
	data = append([]byte{0x08, 0xc3, 0x79, 0xa0}, data...)

	got := Parse(&rpcErr{code: 3, msg: "execution reverted", data: hexutil.Encode(data)})
	if got.Category != CategoryContractRevert {
		t.Fatalf("Category = %s", got.Category)
	}
	if got.Reason != "VotingExpired" {
		t.Fatalf("Reason = %q", got.Reason)
	}
	if got.UserMessage != reasonMessages["VotingExpired"] {
		t.Fatalf("UserMessage = %q", got.UserMessage)
	}
}

func TestParseCustomErrorSelector(t *testing.T) {
	const def = `[{"type":"error","name":"NotCreator","inputs":[]},{"type":"error","name":"Overdrawn","inputs":[{"name":"needed","type":"uint256"}]}]`
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		t.Fatal(err)
	}
	p := NewParser(parsed)

	got := p.Parse(&rpcErr{code: 3, msg: "execution reverted", data: hexutil.Encode(selector("NotCreator()"))})
	if got.DecodedName != "NotCreator" {
		t.Fatalf("DecodedName = %q", got.DecodedName)
	}
	if got.UserMessage != reasonMessages["NotCreator"] {
		t.Fatalf("UserMessage = %q", got.UserMessage)
	}

	data := append(selector("Overdrawn(uint256)"), make([]byte, 32)...)
	got = p.Parse(&rpcErr{code: 3, msg: "execution reverted", data: data})
	if got.DecodedName != "Overdrawn" {
		t.Fatalf("DecodedName = %q", got.DecodedName)
	}
	if !strings.Contains(got.UserMessage, "Overdrawn") {
		t.Fatalf("UserMessage = %q", got.UserMessage)
	}

	// Unknown selector without ABI support falls back to the generic text.
	got = Parse(&rpcErr{code: 3, msg: "execution reverted", data: hexutil.Encode(selector("Mystery()"))})
	if got.UserMessage != msgRevertGeneric {
		t.Fatalf("UserMessage = %q", got.UserMessage)
	}
}

func TestParseCuratedSubstring(t *testing.T) {
	got := Parse(errors.New("execution reverted: Governance: QuorumNotMet for proposal"))
	if got.DecodedName != "QuorumNotMet" {
		t.Fatalf("DecodedName = %q", got.DecodedName)
	}
}

func mustType(t *testing.T, name string) abi.Type {
	t.Helper()
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	return typ
}
