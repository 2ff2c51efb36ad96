package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/tx"
	"github.com/yolodolo42/icosale/internal/wallet"
)

// ChainBackend is the node access the local wallet needs. *chain.Client
// satisfies it.
type ChainBackend interface {
	tx.Estimator
	ChainByID(id *big.Int) (string, *chain.ChainConfig, bool)
	AddChain(name string, config *chain.ChainConfig)
	CallContract(ctx context.Context, chainName string, msg ethereum.CallMsg) ([]byte, error)
	SendTransaction(ctx context.Context, chainName string, tx *types.Transaction) error
	GetTransactionReceipt(ctx context.Context, chainName string, txHash common.Hash) (*types.Receipt, error)
	GetBalance(ctx context.Context, chainName string, address common.Address) (*big.Int, error)
}

// TransactionPrompt is shown to the user before the local wallet signs.
type TransactionPrompt struct {
	Chain string
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
	Fees  tx.SuggestedFees
}

// Approver plays the part of a wallet extension's confirmation popup.
type Approver interface {
	ApproveConnect(ctx context.Context, account common.Address) bool
	ApproveSwitchChain(ctx context.Context, target *chain.ChainConfig) bool
	ApproveAddChain(ctx context.Context, params AddChainParams) bool
	ApproveTransaction(ctx context.Context, prompt TransactionPrompt) bool
}

// AutoApprover approves everything. Used when the caller has already
// confirmed with the user.
type AutoApprover struct{}

func (AutoApprover) ApproveConnect(context.Context, common.Address) bool         { return true }
func (AutoApprover) ApproveSwitchChain(context.Context, *chain.ChainConfig) bool { return true }
func (AutoApprover) ApproveAddChain(context.Context, AddChainParams) bool        { return true }
func (AutoApprover) ApproveTransaction(context.Context, TransactionPrompt) bool  { return true }

// Local is an in-process wallet provider backed by a keystore signer and
// direct node connections.
type Local struct {
	backend  ChainBackend
	approver Approver
	policy   tx.Policy

	mu         sync.Mutex
	signer     wallet.Signer
	chainID    *big.Int
	authorized bool

	feed event.Feed
}

// NewLocal creates a local wallet whose active chain is chainID.
func NewLocal(backend ChainBackend, signer wallet.Signer, approver Approver, chainID *big.Int, policy tx.Policy) *Local {
	if approver == nil {
		approver = AutoApprover{}
	}
	return &Local{
		backend:  backend,
		approver: approver,
		policy:   policy,
		signer:   signer,
		chainID:  new(big.Int).Set(chainID),
	}
}

// SubscribeEvents implements Provider.
func (l *Local) SubscribeEvents(ch chan<- Event) event.Subscription {
	return l.feed.Subscribe(ch)
}

// SetSigner swaps the active account and announces it, like selecting a
// different account in a wallet extension.
func (l *Local) SetSigner(signer wallet.Signer) {
	l.mu.Lock()
	l.signer = signer
	authorized := l.authorized
	l.mu.Unlock()

	var accounts []common.Address
	if authorized && signer != nil {
		accounts = []common.Address{signer.Address()}
	}
	l.feed.Send(Event{Kind: AccountsChanged, Accounts: accounts})
}

// Disconnect revokes authorization and announces the disconnect.
func (l *Local) Disconnect() {
	l.mu.Lock()
	l.authorized = false
	l.mu.Unlock()

	l.feed.Send(Event{Kind: Disconnected})
}

// Request implements Provider.
func (l *Local) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	result, err := l.dispatch(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (l *Local) dispatch(ctx context.Context, method string, params []any) (any, error) {
	switch method {
	case MethodRequestAccounts:
		return l.requestAccounts(ctx)
	case MethodAccounts:
		return l.accounts(), nil
	case MethodChainID:
		l.mu.Lock()
		defer l.mu.Unlock()
		return (*hexutil.Big)(l.chainID), nil
	case MethodSwitchChain:
		var p switchChainParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		return nil, l.switchChain(ctx, p)
	case MethodAddChain:
		var p AddChainParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		return nil, l.addChain(ctx, p)
	case MethodCall:
		var args callArgs
		if err := decodeParam(params, 0, &args); err != nil {
			return nil, err
		}
		return l.call(ctx, args)
	case MethodGetBalance:
		var addr common.Address
		if err := decodeParam(params, 0, &addr); err != nil {
			return nil, err
		}
		return l.balance(ctx, addr)
	case MethodSendTransaction:
		var args callArgs
		if err := decodeParam(params, 0, &args); err != nil {
			return nil, err
		}
		return l.sendTransaction(ctx, args)
	case MethodGetReceipt:
		var hash common.Hash
		if err := decodeParam(params, 0, &hash); err != nil {
			return nil, err
		}
		return l.receipt(ctx, hash)
	case MethodPersonalSign:
		var msg hexutil.Bytes
		if err := decodeParam(params, 0, &msg); err != nil {
			return nil, err
		}
		return l.personalSign(msg)
	default:
		return nil, &RPCError{Code: CodeUnsupportedMethod, Message: "unsupported method " + method}
	}
}

func decodeParam(params []any, i int, out any) error {
	if i >= len(params) {
		return &RPCError{Code: -32602, Message: fmt.Sprintf("missing param %d", i)}
	}
	raw, err := json.Marshal(params[i])
	if err != nil {
		return &RPCError{Code: -32602, Message: err.Error()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RPCError{Code: -32602, Message: err.Error()}
	}
	return nil
}

func (l *Local) requestAccounts(ctx context.Context) ([]common.Address, error) {
	l.mu.Lock()
	signer, authorized := l.signer, l.authorized
	l.mu.Unlock()

	if signer == nil {
		return nil, &RPCError{Code: CodeUnauthorized, Message: "no account unlocked"}
	}
	if !authorized {
		if !l.approver.ApproveConnect(ctx, signer.Address()) {
			return nil, UserRejected("connection request")
		}
		l.mu.Lock()
		l.authorized = true
		l.mu.Unlock()
	}
	return []common.Address{signer.Address()}, nil
}

func (l *Local) accounts() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.authorized || l.signer == nil {
		return []common.Address{}
	}
	return []common.Address{l.signer.Address()}
}

// activeChain resolves the current chain id to a backend chain name.
func (l *Local) activeChain() (string, *big.Int, error) {
	l.mu.Lock()
	id := new(big.Int).Set(l.chainID)
	l.mu.Unlock()

	name, _, ok := l.backend.ChainByID(id)
	if !ok {
		return "", nil, &RPCError{Code: CodeDisconnected, Message: "active chain " + id.String() + " is not configured"}
	}
	return name, id, nil
}

func (l *Local) switchChain(ctx context.Context, p switchChainParams) error {
	id, err := hexutil.DecodeBig(p.ChainID)
	if err != nil {
		return &RPCError{Code: -32602, Message: "invalid chainId " + p.ChainID}
	}

	_, target, ok := l.backend.ChainByID(id)
	if !ok {
		return &RPCError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID " + p.ChainID}
	}

	l.mu.Lock()
	same := l.chainID.Cmp(id) == 0
	l.mu.Unlock()
	if same {
		return nil
	}

	if !l.approver.ApproveSwitchChain(ctx, target) {
		return UserRejected("chain switch")
	}

	l.mu.Lock()
	l.chainID = id
	l.mu.Unlock()

	l.feed.Send(Event{Kind: ChainChanged, ChainID: new(big.Int).Set(id)})
	return nil
}

func (l *Local) addChain(ctx context.Context, p AddChainParams) error {
	config, err := p.ChainConfig()
	if err != nil {
		return &RPCError{Code: -32602, Message: err.Error()}
	}
	if !l.approver.ApproveAddChain(ctx, p) {
		return UserRejected("add chain")
	}
	name := strings.ToLower(strings.ReplaceAll(config.Name, " ", "-"))
	if existing, _, ok := l.backend.ChainByID(config.ChainID); ok {
		name = existing
	}
	l.backend.AddChain(name, config)
	return nil
}

func (l *Local) call(ctx context.Context, args callArgs) (hexutil.Bytes, error) {
	name, _, err := l.activeChain()
	if err != nil {
		return nil, err
	}
	msg := ethereum.CallMsg{To: args.To, Data: args.Data}
	if args.From != nil {
		msg.From = *args.From
	}
	if args.Value != nil {
		msg.Value = args.Value.ToInt()
	}
	out, err := l.backend.CallContract(ctx, name, msg)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Local) balance(ctx context.Context, addr common.Address) (*hexutil.Big, error) {
	name, _, err := l.activeChain()
	if err != nil {
		return nil, err
	}
	bal, err := l.backend.GetBalance(ctx, name, addr)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(bal), nil
}

func (l *Local) sendTransaction(ctx context.Context, args callArgs) (common.Hash, error) {
	l.mu.Lock()
	signer, authorized := l.signer, l.authorized
	l.mu.Unlock()

	if !authorized || signer == nil {
		return common.Hash{}, &RPCError{Code: CodeUnauthorized, Message: "account not authorized"}
	}
	if args.From == nil || *args.From != signer.Address() {
		return common.Hash{}, &RPCError{Code: CodeUnauthorized, Message: "from address is not the active account"}
	}
	if args.To == nil {
		return common.Hash{}, &RPCError{Code: -32602, Message: "contract creation is not supported"}
	}

	name, chainID, err := l.activeChain()
	if err != nil {
		return common.Hash{}, err
	}

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	intent := tx.Intent{
		Chain:    name,
		ChainID:  chainID,
		From:     signer.Address(),
		To:       *args.To,
		ValueWei: value,
		Data:     args.Data,
	}
	if err := tx.Validate(intent, l.policy); err != nil {
		return common.Hash{}, &RPCError{Code: CodeInternal, Message: err.Error()}
	}

	unsigned, fees, err := tx.BuildUnsignedTx(ctx, l.backend, intent)
	if err != nil {
		return common.Hash{}, err
	}

	prompt := TransactionPrompt{Chain: name, From: intent.From, To: intent.To, Value: value, Data: intent.Data, Fees: fees}
	if !l.approver.ApproveTransaction(ctx, prompt) {
		return common.Hash{}, UserRejected("transaction signature")
	}

	signed, err := signer.SignTransaction(unsigned, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := l.backend.SendTransaction(ctx, name, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send tx: %w", err)
	}
	return signed.Hash(), nil
}

func (l *Local) receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	name, _, err := l.activeChain()
	if err != nil {
		return nil, err
	}
	r, err := l.backend.GetTransactionReceipt(ctx, name, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return r, err
}

func (l *Local) personalSign(msg []byte) (hexutil.Bytes, error) {
	l.mu.Lock()
	signer, authorized := l.signer, l.authorized
	l.mu.Unlock()

	if !authorized || signer == nil {
		return nil, &RPCError{Code: CodeUnauthorized, Message: "account not authorized"}
	}
	return signer.SignMessage(msg)
}
