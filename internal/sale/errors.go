package sale

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/provider"
)

var (
	ErrNotConnected        = errors.New("wallet not connected")
	ErrInvalidAmount       = chain.ErrInvalidAmount
	ErrContractCallFailed  = errors.New("contract call failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrApprovalFailed      = errors.New("approval failed")
	ErrPurchaseInFlight    = errors.New("a purchase is already in progress")
)

// UnknownErrorMessage is shown when no revert reason can be recovered.
const UnknownErrorMessage = "Unknown error occurred"

var (
	quotedRevert   = regexp.MustCompile(`execution reverted: "([^"]+)"`)
	unquotedRevert = regexp.MustCompile(`execution reverted: ([^"\n]+)`)
)

// TxError is a failed approval or purchase.
type TxError struct {
	Kind     error // ErrApprovalFailed or ErrTransactionReverted
	Currency Currency
	TxHash   common.Hash // zero when the wallet never accepted the transaction
	Reason   string
	Err      error
}

func (e *TxError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	if e.TxHash != (common.Hash{}) {
		msg += " (tx " + e.TxHash.Hex() + ")"
	}
	return msg
}

func (e *TxError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage is the text to show the user.
func (e *TxError) UserMessage() string {
	if e.Reason == "" {
		return UnknownErrorMessage
	}
	return e.Reason
}

// RevertReason extracts the contract's revert reason from a wallet or node
// error. It returns "" when there is none.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := unpackRevertData(dataErr.ErrorData()); ok {
			return reason
		}
	}

	msg := err.Error()
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		msg = rpcErr.Message
	}
	if m := quotedRevert.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := unquotedRevert.FindStringSubmatch(msg); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func unpackRevertData(data any) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil || reason == "" {
		return "", false
	}
	return reason, true
}

// UserMessage normalizes any error from this package for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.UserMessage()
	}
	switch {
	case errors.Is(err, ErrNotConnected):
		return "Please connect your wallet first"
	case errors.Is(err, ErrInvalidAmount):
		return "Please enter a valid amount"
	case errors.Is(err, ErrPurchaseInFlight):
		return "A purchase is already in progress"
	case errors.Is(err, provider.ErrProviderMissing):
		return "No wallet available"
	}
	if reason := RevertReason(err); reason != "" {
		return reason
	}
	return UnknownErrorMessage
}
