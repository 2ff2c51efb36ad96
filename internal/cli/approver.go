package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/provider"
	"golang.org/x/term"
)

// terminalApprover asks y/N questions on the terminal in place of a wallet
// extension's popups.
type terminalApprover struct {
	mu       sync.Mutex
	in       *bufio.Reader
	out      io.Writer
	decimals uint8
	symbol   string
	yes      bool

	// pending is an unfinished line read left over from a cancelled prompt.
	pending chan string
}

func newTerminalApprover(in io.Reader, out io.Writer, decimals uint8, symbol string, yes bool) *terminalApprover {
	return &terminalApprover{
		in:       bufio.NewReader(in),
		out:      out,
		decimals: decimals,
		symbol:   symbol,
		yes:      yes,
	}
}

func (t *terminalApprover) ApproveConnect(ctx context.Context, account common.Address) bool {
	return t.confirm(ctx, fmt.Sprintf("Connect account %s to the sale?", account.Hex()))
}

func (t *terminalApprover) ApproveSwitchChain(ctx context.Context, target *chain.ChainConfig) bool {
	return t.confirm(ctx, fmt.Sprintf("Switch wallet network to %s (chain %s)?", target.Name, target.ChainID))
}

func (t *terminalApprover) ApproveAddChain(ctx context.Context, params provider.AddChainParams) bool {
	rpc := ""
	if len(params.RPCURLs) > 0 {
		rpc = params.RPCURLs[0]
	}
	return t.confirm(ctx, fmt.Sprintf("Add network %s (%s, rpc %s) to the wallet?", params.ChainName, params.ChainID, rpc))
}

func (t *terminalApprover) ApproveTransaction(ctx context.Context, p provider.TransactionPrompt) bool {
	var b strings.Builder
	b.WriteString("Sign transaction?\n")
	fmt.Fprintf(&b, "  Chain:    %s\n", p.Chain)
	fmt.Fprintf(&b, "  From:     %s\n", p.From.Hex())
	fmt.Fprintf(&b, "  To:       %s\n", p.To.Hex())
	fmt.Fprintf(&b, "  Value:    %s %s\n", chain.FormatBalance(p.Value, t.decimals), t.symbol)
	if len(p.Data) >= 4 {
		fmt.Fprintf(&b, "  Method:   0x%x\n", p.Data[:4])
	}
	fmt.Fprintf(&b, "  Gas:      %d\n", p.Fees.GasLimit)
	if p.Fees.EstimatedCostWei != nil {
		fmt.Fprintf(&b, "  Max cost: %s %s", chain.FormatBalance(p.Fees.EstimatedCostWei, t.decimals), t.symbol)
	}
	return t.confirm(ctx, b.String())
}

func (t *terminalApprover) confirm(ctx context.Context, question string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out, question)
	if t.yes {
		fmt.Fprintln(t.out, "[y/N] y (--yes)")
		return true
	}
	fmt.Fprint(t.out, "[y/N] ")

	if t.pending == nil {
		answer := make(chan string, 1)
		go func() {
			line, _ := t.in.ReadString('\n')
			answer <- line
		}()
		t.pending = answer
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(t.out)
		return false
	case line := <-t.pending:
		t.pending = nil
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}
