// Package providertest provides a scripted in-memory wallet provider.
package providertest

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/yolodolo42/icosale/internal/provider"
)

// HandlerFunc answers one request. Params are the raw values the caller
// passed; use DecodeParam to read them.
type HandlerFunc func(params []any) (any, error)

// Call records one request.
type Call struct {
	Method string
	Params []any
}

// Fake is a provider.Provider whose behaviour is set per method.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []Call
	feed     event.Feed
}

func New() *Fake {
	return &Fake{handlers: make(map[string]HandlerFunc)}
}

// Handle sets the handler for method.
func (f *Fake) Handle(method string, h HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Request implements provider.Provider. Unhandled methods fail with 4200.
func (f *Fake) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Params: params})
	h, ok := f.handlers[method]
	f.mu.Unlock()

	if !ok {
		return nil, &provider.RPCError{Code: provider.CodeUnsupportedMethod, Message: "unhandled method " + method}
	}
	result, err := h(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// SubscribeEvents implements provider.Provider.
func (f *Fake) SubscribeEvents(ch chan<- provider.Event) event.Subscription {
	return f.feed.Subscribe(ch)
}

// Emit delivers ev to every subscriber and returns how many received it.
func (f *Fake) Emit(ev provider.Event) int {
	return f.feed.Send(ev)
}

// Calls returns a copy of the recorded requests.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Methods returns the recorded method names in order.
func (f *Fake) Methods() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Count returns how many times method was requested.
func (f *Fake) Count(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// DecodeParam round-trips params[i] through JSON into out.
func DecodeParam(params []any, i int, out any) error {
	raw, err := json.Marshal(params[i])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Wallet is a Fake preloaded with a single account and a set of chains it
// knows, answering the account and chain methods like a browser wallet.
type Wallet struct {
	*Fake

	mu         sync.Mutex
	account    common.Address
	chainID    *big.Int
	known      map[string]bool
	authorized bool

	// RejectConnect, RejectSwitch and RejectAdd simulate the user pressing
	// "reject" in the wallet popup.
	RejectConnect bool
	RejectSwitch  bool
	RejectAdd     bool
}

// NewWallet returns a wallet on chainID that also knows the extra chains.
func NewWallet(account common.Address, chainID *big.Int, extra ...*big.Int) *Wallet {
	w := &Wallet{
		Fake:    New(),
		account: account,
		chainID: new(big.Int).Set(chainID),
		known:   map[string]bool{hexutil.EncodeBig(chainID): true},
	}
	for _, id := range extra {
		w.known[hexutil.EncodeBig(id)] = true
	}

	w.Handle(provider.MethodChainID, func([]any) (any, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return hexutil.EncodeBig(w.chainID), nil
	})
	w.Handle(provider.MethodAccounts, func([]any) (any, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.authorized {
			return []common.Address{}, nil
		}
		return []common.Address{w.account}, nil
	})
	w.Handle(provider.MethodRequestAccounts, func([]any) (any, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.RejectConnect {
			return nil, provider.UserRejected("connection request")
		}
		w.authorized = true
		return []common.Address{w.account}, nil
	})
	w.Handle(provider.MethodSwitchChain, func(params []any) (any, error) {
		var p struct {
			ChainID string `json:"chainId"`
		}
		if err := DecodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		id, err := hexutil.DecodeBig(p.ChainID)
		if err != nil {
			return nil, &provider.RPCError{Code: -32602, Message: err.Error()}
		}
		w.mu.Lock()
		if !w.known[p.ChainID] {
			w.mu.Unlock()
			return nil, &provider.RPCError{Code: provider.CodeUnrecognizedChain, Message: "Unrecognized chain ID " + p.ChainID}
		}
		if w.RejectSwitch {
			w.mu.Unlock()
			return nil, provider.UserRejected("chain switch")
		}
		changed := w.chainID.Cmp(id) != 0
		w.chainID = id
		w.mu.Unlock()

		// Real wallets announce the switch like any other chain change.
		if changed {
			w.Emit(provider.Event{Kind: provider.ChainChanged, ChainID: new(big.Int).Set(id)})
		}
		return nil, nil
	})
	w.Handle(provider.MethodAddChain, func(params []any) (any, error) {
		var p provider.AddChainParams
		if err := DecodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.RejectAdd {
			return nil, provider.UserRejected("add chain")
		}
		w.known[p.ChainID] = true
		return nil, nil
	})
	return w
}

// Authorize marks the account as already connected, as after a page reload.
func (w *Wallet) Authorize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.authorized = true
}

// ChainID returns the wallet's current chain.
func (w *Wallet) ChainID() *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.chainID)
}
