package swap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"AgentSwap/internal/agent"
	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/observability/metrics"
	"AgentSwap/pkg/logger"
)

// ActionName is the identifier the swap action registers under.
const ActionName = "swap"

// WalletFactory builds a wallet from a private key.
type WalletFactory func(privateKey string) (Wallet, error)

// ActionOption customises an Action.
type ActionOption func(*Action)

// WithExecutorOptions forwards options to every executor the action builds.
func WithExecutorOptions(opts ...ExecutorOption) ActionOption {
	return func(a *Action) { a.executorOpts = append(a.executorOpts, opts...) }
}

// WithActionLogger replaces the component logger.
func WithActionLogger(l *slog.Logger) ActionOption {
	return func(a *Action) {
		if l != nil {
			a.logger = l
		}
	}
}

// Action exposes same-chain swaps to the agent runtime.
type Action struct {
	newWallet    WalletFactory
	router       Router
	executorOpts []ExecutorOption
	logger       *slog.Logger
}

var _ agent.Action = (*Action)(nil)

// NewAction wires the action to a wallet factory and a router.
func NewAction(newWallet WalletFactory, router Router, opts ...ActionOption) *Action {
	a := &Action{
		newWallet: newWallet,
		router:    router,
		logger:    logger.Named("swap"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Action) Name() string        { return ActionName }
func (a *Action) Description() string { return "Swap tokens on the same chain" }

func (a *Action) Similes() []string {
	return []string{"TOKEN_SWAP", "EXCHANGE_TOKENS", "TRADE_TOKENS"}
}

func (a *Action) Examples() [][]agent.ActionExample {
	return [][]agent.ActionExample{
		{{User: "user", Text: "Swap 1 ETH for USDC on Base", Action: "TOKEN_SWAP"}},
		{{User: "user", Text: "Trade 500 USDC to WETH on arbitrum with 1% slippage", Action: "TRADE_TOKENS"}},
	}
}

// Validate only checks that the key setting looks like a hex key.
func (a *Action) Validate(_ context.Context, rt agent.Runtime, _ agent.Memory) bool {
	key := rt.GetSetting(PrivateKeySetting)
	return key != "" && strings.HasPrefix(key, "0x")
}

// Handle runs the swap and reports exactly once through cb. It never returns
// an error; the result is folded into the boolean and the callback.
func (a *Action) Handle(ctx context.Context, rt agent.Runtime, msg agent.Memory, state agent.State, cb agent.Callback) bool {
	start := time.Now()
	outcome := a.run(ctx, rt, msg, state)
	metrics.ObserveSwap(outcome.Request.Chain, outcome.Kind.String(), time.Since(start))
	return a.report(ctx, rt, outcome, cb)
}

func (a *Action) run(ctx context.Context, rt agent.Runtime, msg agent.Memory, state agent.State) Outcome {
	if a.newWallet == nil || a.router == nil {
		return Classify(Request{}, nil, externalFault(nil, "swap action is not configured"))
	}
	wallet, err := a.newWallet(rt.GetSetting(PrivateKeySetting))
	if err != nil {
		return Classify(Request{}, nil, externalFault(err, "create wallet"))
	}
	if wallet == nil {
		return Classify(Request{}, nil, externalFault(nil, "create wallet: no wallet returned"))
	}
	defer wallet.Close()

	if state == nil {
		if state, err = rt.ComposeState(ctx, msg); err != nil {
			return Classify(Request{}, nil, err)
		}
	}

	req, err := NewResolver(rt, sortedNames(wallet.Chains())).Resolve(ctx, state)
	if err != nil {
		return Classify(req, nil, err)
	}
	tx, err := NewExecutor(wallet, a.router, a.executorOpts...).Swap(ctx, req)
	return Classify(req, tx, err)
}

func (a *Action) report(ctx context.Context, rt agent.Runtime, outcome Outcome, cb agent.Callback) bool {
	var resp agent.Response
	ok := false

	switch outcome.Kind {
	case OutcomeOK:
		tx := outcome.Transaction
		ok = true
		resp = agent.Response{
			Text: "Successfully swapped " + string(outcome.Request.Amount) + " tokens \nTransaction Hash: " + tx.Hash,
			Content: map[string]any{
				"success":   true,
				"hash":      tx.Hash,
				"amount":    formatEther(tx.Value),
				"recipient": tx.To.Hex(),
				"chain":     outcome.Request.Chain,
			},
		}
		a.logger.Info("swap succeeded",
			slog.String("chain", outcome.Request.Chain),
			slog.String("tx_hash", tx.Hash))
	case OutcomeUnknownChain, OutcomeNoRoute:
		resp = failure(outcome.Err)
		a.logger.Info("swap rejected", slog.String("outcome", outcome.Kind.String()), slog.String("error", outcome.Err.Error()))
	case OutcomeExecutionFailed, OutcomePending, OutcomeExternalFault:
		resp = failure(outcome.Err)
		a.logger.Warn("swap failed", slog.String("outcome", outcome.Kind.String()), slog.String("error", outcome.Err.Error()))
	}

	logger.Audit().Info("swap",
		slog.String("agent_id", rt.AgentID()),
		slog.String("chain", outcome.Request.Chain),
		slog.String("outcome", outcome.Kind.String()),
		slog.Bool("success", ok))

	if cb != nil {
		if err := cb(ctx, resp); err != nil {
			a.logger.Warn("swap callback failed", slog.String("error", err.Error()))
		}
	}
	return ok
}

func failure(err error) agent.Response {
	msg := xerrors.MessageOf(err)
	return agent.Response{
		Text:    "Error transferring tokens: " + msg,
		Content: map[string]any{"error": msg},
	}
}
