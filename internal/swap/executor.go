package swap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"AgentSwap/internal/lifi"
	"AgentSwap/internal/web3"
	"AgentSwap/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// Wallet is the subset of provider.WalletProvider the executor needs.
type Wallet interface {
	Chains() map[string]web3.ChainConfig
	WalletClient(ctx context.Context, name string) (web3.Signer, error)
	WalletClientByID(ctx context.Context, chainID int64) (web3.Signer, error)
	Close()
}

// Router finds and executes routes. *lifi.Client satisfies it.
type Router interface {
	GetRoutes(ctx context.Context, req lifi.RoutesRequest) (*lifi.RoutesResponse, error)
	ExecuteRoute(ctx context.Context, route lifi.Route, cfg lifi.Config) (*lifi.Route, error)
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithIntegrator sets the integrator reported to the router.
func WithIntegrator(name string) ExecutorOption {
	return func(e *Executor) {
		if name = strings.TrimSpace(name); name != "" {
			e.integrator = name
		}
	}
}

// WithFee sets the platform fee fraction attached to route queries.
func WithFee(fee float64) ExecutorOption {
	return func(e *Executor) {
		if fee >= 0 {
			e.fee = fee
		}
	}
}

// WithExecutorLogger replaces the component logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Executor runs same-chain swaps for one wallet.
type Executor struct {
	wallet     Wallet
	router     Router
	chains     map[string]web3.ChainConfig
	integrator string
	fee        float64
	config     lifi.Config
	logger     *slog.Logger
}

// NewExecutor snapshots the wallet's chains into a router configuration.
func NewExecutor(wallet Wallet, router Router, opts ...ExecutorOption) *Executor {
	e := &Executor{
		wallet:     wallet,
		router:     router,
		chains:     wallet.Chains(),
		integrator: DefaultIntegrator,
		fee:        DefaultFee,
		logger:     logger.Named("swap"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.config = lifi.Config{
		Integrator:   e.integrator,
		Chains:       ProjectChains(e.chains),
		WalletClient: wallet.WalletClientByID,
	}
	return e
}

// Config returns the router configuration built at construction.
func (e *Executor) Config() lifi.Config {
	return e.config
}

// ProjectChains converts wallet chains into router chain descriptors,
// ordered by chain id.
func ProjectChains(chains map[string]web3.ChainConfig) []lifi.ExtendedChain {
	out := make([]lifi.ExtendedChain, 0, len(chains))
	for _, cfg := range chains {
		native := cfg.NativeCurrency
		out = append(out, lifi.ExtendedChain{
			ID:        cfg.ID,
			Key:       strings.ToLower(cfg.Name),
			Name:      cfg.Name,
			ChainType: lifi.ChainTypeEVM,
			Coin:      native.Symbol,
			Mainnet:   !cfg.Testnet,
			NativeToken: lifi.Token{
				Address:  lifi.ZeroAddress,
				ChainID:  cfg.ID,
				Symbol:   native.Symbol,
				Decimals: native.Decimals,
				Name:     native.Name,
				CoinKey:  native.Symbol,
				PriceUSD: "0",
			},
			Metamask: lifi.Metamask{
				ChainID:           fmt.Sprintf("0x%x", cfg.ID),
				ChainName:         cfg.Name,
				NativeCurrency:    native,
				RPCURLs:           nonEmpty(cfg.RPCURL),
				BlockExplorerURLs: nonEmpty(cfg.ExplorerURL),
			},
			DiamondAddress: lifi.ZeroAddress,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func nonEmpty(s string) []string {
	if s == "" {
		return []string{}
	}
	return []string{s}
}

// Swap quotes req, executes the first route and returns the resulting
// transaction. Collaborator errors are returned unchanged.
func (e *Executor) Swap(ctx context.Context, req Request) (*Transaction, error) {
	chain, ok := e.chains[req.Chain]
	if !ok {
		return nil, UnknownChainError(req.Chain, sortedNames(e.chains))
	}
	value, err := req.Amount.Int()
	if err != nil {
		return nil, externalFault(err, "malformed swap parameters")
	}
	if err := req.validateSlippage(); err != nil {
		return nil, err
	}

	signer, err := e.wallet.WalletClient(ctx, req.Chain)
	if err != nil {
		return nil, err
	}
	addrs, err := signer.Addresses(ctx)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, externalFault(nil, "wallet has no addresses")
	}
	from := addrs[0]

	routes, err := e.router.GetRoutes(ctx, lifi.RoutesRequest{
		FromChainID:      chain.ID,
		ToChainID:        chain.ID,
		FromTokenAddress: req.FromToken,
		ToTokenAddress:   req.ToToken,
		FromAmount:       value.String(),
		FromAddress:      from.Hex(),
		ToAddress:        from.Hex(),
		Options: &lifi.RouteOptions{
			Slippage:   req.slippage(),
			Order:      lifi.OrderRecommended,
			Fee:        e.fee,
			Integrator: e.integrator,
		},
	})
	if err != nil {
		return nil, err
	}
	if routes == nil || len(routes.Routes) == 0 {
		return nil, NoRouteFoundError(req.Chain)
	}
	route := routes.Routes[0]

	e.logger.Info("executing route",
		slog.String("chain", req.Chain),
		slog.String("route_id", route.ID),
		slog.Int("steps", len(route.Steps)))

	executed, execErr := e.router.ExecuteRoute(ctx, route, e.config)
	process := firstProcess(executed)
	if process == nil {
		// the engine failed before recording anything
		if execErr != nil {
			return nil, execErr
		}
		return nil, ExecutionFailedError("no process record", nil)
	}
	if process.Status == lifi.StatusFailed {
		reason := ""
		if process.Error != nil {
			reason = process.Error.Message
		}
		return nil, ExecutionFailedError(reason, execErr)
	}
	if execErr != nil {
		return nil, execErr
	}
	if process.Status != lifi.StatusDone || process.TxHash == "" {
		return nil, ExecutionPendingError(process.Status, process.TxHash)
	}

	approval := ""
	if len(route.Steps) > 0 {
		approval = route.Steps[0].Estimate.ApprovalAddress
	}
	return &Transaction{
		Hash:    process.TxHash,
		From:    from,
		To:      common.HexToAddress(approval),
		Value:   value,
		Data:    common.FromHex(process.Data),
		ChainID: chain.ID,
	}, nil
}

func firstProcess(route *lifi.Route) *lifi.Process {
	if route == nil || len(route.Steps) == 0 {
		return nil
	}
	exec := route.Steps[0].Execution
	if exec == nil || len(exec.Process) == 0 {
		return nil
	}
	return &exec.Process[0]
}

func sortedNames(chains map[string]web3.ChainConfig) []string {
	names := make([]string, 0, len(chains))
	for name := range chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
