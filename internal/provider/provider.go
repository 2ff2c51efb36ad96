// Package provider models an EIP-1193 wallet provider: a request function plus
// account, chain and disconnect events.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrProviderMissing is returned when no wallet provider is configured or
// reachable.
var ErrProviderMissing = errors.New("wallet provider not found")

// Wallet JSON-RPC methods.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodCall            = "eth_call"
	MethodSendTransaction = "eth_sendTransaction"
	MethodGetReceipt      = "eth_getTransactionReceipt"
	MethodGetBalance      = "eth_getBalance"
	MethodPersonalSign    = "personal_sign"
)

// EIP-1193 and EIP-3085 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeInternal          = -32603
)

// Provider is a wallet that accepts JSON-RPC style requests and publishes
// events. Params are marshalled to JSON by implementations that need to.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	SubscribeEvents(ch chan<- Event) event.Subscription
}

type EventKind int

const (
	AccountsChanged EventKind = iota + 1
	ChainChanged
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	case Disconnected:
		return "disconnect"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a provider notification. Accounts is set for AccountsChanged,
// ChainID for ChainChanged and Err (optionally) for Disconnected.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
	Err      error
}

// RPCError is a provider error carrying an EIP-1193 code. It satisfies
// go-ethereum's rpc.Error and rpc.DataError so codes survive the JSON-RPC
// server and client round trip.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *RPCError) ErrorCode() int { return e.Code }

func (e *RPCError) ErrorData() any { return e.Data }

var (
	_ rpc.Error     = (*RPCError)(nil)
	_ rpc.DataError = (*RPCError)(nil)
)

// UserRejected returns the standard 4001 error.
func UserRejected(what string) *RPCError {
	return &RPCError{Code: CodeUserRejected, Message: "user rejected " + what}
}

// ErrorCode extracts the JSON-RPC error code from err, if any.
func ErrorCode(err error) (int, bool) {
	var rerr rpc.Error
	if errors.As(err, &rerr) {
		return rerr.ErrorCode(), true
	}
	return 0, false
}

// IsUserRejected reports whether err is a 4001 rejection.
func IsUserRejected(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}
