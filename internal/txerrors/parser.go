package txerrors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	userRejectedRe = regexp.MustCompile(`user rejected|user denied|action rejected`)
	codeRe         = regexp.MustCompile(`"?code"?\s*[=:]\s*(-?\d+)`)
	dataRe         = regexp.MustCompile(`"?data"?\s*[=:]\s*"?(0x[0-9a-fA-F]{8,})`)
	revertReasonRe = regexp.MustCompile(`(?:execution reverted|reverted with reason string)\s*:?\s*'?([^'\n]*)'?`)

	revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}
	panicSelector  = []byte{0x4e, 0x48, 0x7b, 0x71}
)

const codeUserRejected = 4001

// networkCodes are RPC / HTTP codes that mean the transport, not the
// transaction, failed.
var networkCodes = map[int]bool{
	-32005: true, // limit exceeded
	429:    true,
	502:    true,
	503:    true,
	504:    true,
}

var networkMarkers = []string{
	"network error",
	"network_error",
	"server_error",
	"server error",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"no such host",
	"bad gateway",
	"service unavailable",
	"could not detect network",
}

// Parser classifies errors. ABIs supplied at construction are used to decode
// custom-error selectors in revert data.
type Parser struct {
	abis []abi.ABI
}

// NewParser creates a parser that decodes custom errors from abis.
func NewParser(abis ...abi.ABI) *Parser {
	return &Parser{abis: abis}
}

var defaultParser = NewParser()

// Parse classifies err with a parser that knows no custom errors.
func Parse(err error) *ParsedError {
	return defaultParser.Parse(err)
}

// Parse classifies err. Rules are evaluated in order: user rejection,
// insufficient funds, network, gas estimation, contract revert, unknown.
// A nil error parses to nil; an already parsed error is returned unchanged.
func (p *Parser) Parse(err error) *ParsedError {
	if err == nil {
		return nil
	}
	var already *ParsedError
	if errors.As(err, &already) {
		return already
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	code := errorCode(err, msg)
	out := &ParsedError{
		Category:         CategoryUnknown,
		UserMessage:      msgUnknown,
		TechnicalMessage: msg,
		Code:             code,
		Original:         err,
	}

	data := revertData(err, msg)
	reason := revertReason(err, msg)

	switch {
	case code == codeUserRejected || userRejectedRe.MatchString(lower):
		out.Category = CategoryUserRejected
		out.UserMessage = msgUserRejected
	case strings.Contains(lower, "insufficient funds"):
		out.Category = CategoryInsufficientFunds
		out.UserMessage = msgInsufficientFunds
	case isNetwork(err, code, lower):
		out.Category = CategoryNetwork
		out.UserMessage = msgNetwork
	case strings.Contains(msg, "UNPREDICTABLE_GAS_LIMIT") || strings.Contains(lower, "cannot estimate gas"):
		out.Category = CategoryGasEstimation
		out.UserMessage = msgGasEstimation
	case reason != "" || len(data) > 0 || strings.Contains(lower, "revert"):
		out.Category = CategoryContractRevert
		p.decodeRevert(out, data, reason)
	}

	out.Recoverable = out.Category.Recoverable()
	return out
}

// decodeRevert fills Reason, DecodedName and UserMessage. ABI decoding is
// preferred; the curated reason table is the fallback.
func (p *Parser) decodeRevert(out *ParsedError, data []byte, reason string) {
	out.Reason = reason
	if len(data) >= 4 {
		switch {
		case bytes.Equal(data[:4], revertSelector):
			if r, err := abi.UnpackRevert(data); err == nil {
				out.Reason = r
			}
		case bytes.Equal(data[:4], panicSelector) && len(data) >= 36:
			out.Reason = fmt.Sprintf("panic: 0x%x", new(big.Int).SetBytes(data[4:36]))
		default:
			out.DecodedName = p.errorName(data)
		}
	}

	if name, msg, ok := curatedMessage(out.DecodedName, out.Reason); ok {
		if out.DecodedName == "" {
			out.DecodedName = name
		}
		out.UserMessage = msg
		return
	}
	switch {
	case out.DecodedName != "":
		out.UserMessage = fmt.Sprintf("The contract rejected this transaction (%s).", out.DecodedName)
	case out.Reason != "":
		out.UserMessage = fmt.Sprintf("Transaction reverted: %s", out.Reason)
	default:
		out.UserMessage = msgRevertGeneric
	}
}

// errorName finds the custom error whose selector prefixes data.
func (p *Parser) errorName(data []byte) string {
	for _, a := range p.abis {
		for _, e := range a.Errors {
			if bytes.Equal(e.ID[:4], data[:4]) {
				return e.Name
			}
		}
	}
	return ""
}

// errorCode reads a numeric code from go-ethereum's rpc.Error shape or, as a
// fallback, from the message text.
func errorCode(err error, msg string) int {
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	if m := codeRe.FindStringSubmatch(msg); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			return n
		}
	}
	return 0
}

// revertData extracts raw revert bytes from go-ethereum's rpc.DataError shape
// or from a "data=0x..." fragment in the message.
func revertData(err error, msg string) []byte {
	var withData interface{ ErrorData() interface{} }
	if errors.As(err, &withData) {
		switch d := withData.ErrorData().(type) {
		case string:
			if b, decErr := hexutil.Decode(d); decErr == nil {
				return b
			}
		case []byte:
			return d
		}
	}
	if m := dataRe.FindStringSubmatch(msg); m != nil {
		if b, decErr := hexutil.Decode(m[1]); decErr == nil {
			return b
		}
	}
	return nil
}

// revertReason returns an explicit reason field, or the text after
// "execution reverted:" in the message.
func revertReason(err error, msg string) string {
	var withReason interface{ RevertReason() string }
	if errors.As(err, &withReason) {
		if r := withReason.RevertReason(); r != "" {
			return r
		}
	}
	if m := revertReasonRe.FindStringSubmatch(msg); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func isNetwork(err error, code int, lower string) bool {
	if networkCodes[code] {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	for _, marker := range networkMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
