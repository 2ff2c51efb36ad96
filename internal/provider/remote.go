package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// Remote talks to an external wallet over JSON-RPC. JSON-RPC wallets do not
// push EIP-1193 events, so Remote polls eth_accounts and eth_chainId and
// publishes changes.
type Remote struct {
	client   *rpc.Client
	interval time.Duration

	feed event.Feed

	mu       sync.Mutex
	accounts []common.Address
	chainID  *big.Int
	down     bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// DialRemote connects to a wallet endpoint (http, ws or ipc).
func DialRemote(ctx context.Context, url string, interval time.Duration) (*Remote, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderMissing, err)
	}
	r := NewRemote(client, interval)
	if _, err := r.Request(ctx, MethodChainID); err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %v", ErrProviderMissing, err)
	}
	return r, nil
}

// NewRemote wraps an established rpc client and starts watching it.
func NewRemote(client *rpc.Client, interval time.Duration) *Remote {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	r := &Remote{
		client:   client,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.watch()
	return r
}

// Request implements Provider.
func (r *Remote) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := r.client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, err
	}
	return raw, nil
}

// SubscribeEvents implements Provider.
func (r *Remote) SubscribeEvents(ch chan<- Event) event.Subscription {
	return r.feed.Subscribe(ch)
}

// Close stops the watcher and closes the connection.
func (r *Remote) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
		r.client.Close()
	})
}

func (r *Remote) watch() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Prime the snapshot so the first tick only reports real changes.
	r.poll(false)
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.poll(true)
		}
	}
}

func (r *Remote) poll(emit bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	var accounts []common.Address
	var chainID hexutil.Big
	err := r.client.CallContext(ctx, &accounts, MethodAccounts)
	if err == nil {
		err = r.client.CallContext(ctx, &chainID, MethodChainID)
	}

	var events []Event
	r.mu.Lock()
	if err != nil {
		if !r.down {
			r.down = true
			events = append(events, Event{Kind: Disconnected, Err: err})
		}
	} else {
		r.down = false
		id := chainID.ToInt()
		if r.chainID != nil && r.chainID.Cmp(id) != 0 {
			events = append(events, Event{Kind: ChainChanged, ChainID: new(big.Int).Set(id)})
		}
		if r.chainID != nil && !slices.Equal(r.accounts, accounts) {
			events = append(events, Event{Kind: AccountsChanged, Accounts: accounts})
		}
		r.chainID = id
		r.accounts = accounts
	}
	r.mu.Unlock()

	if !emit {
		return
	}
	for _, ev := range events {
		r.feed.Send(ev)
	}
}
