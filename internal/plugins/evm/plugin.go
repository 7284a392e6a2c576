// Package evm registers EVM wallet actions with the agent runtime.
package evm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"AgentSwap/internal/agent"
	"AgentSwap/internal/lifi"
	"AgentSwap/internal/swap"
	"AgentSwap/internal/web3"
	"AgentSwap/internal/web3/provider"
	"AgentSwap/pkg/logger"
	"AgentSwap/pkg/plugin"
)

const (
	// ID is the name characters use to enable this plugin.
	ID = "evm"
	// ResourceChains is the host resource holding web3.ChainDefinitions.
	ResourceChains = "web3.chains"
)

// Settings is the configuration block accepted by the plugin.
type Settings struct {
	ChainConfig    string            `json:"chain_config"`
	RouterURL      string            `json:"router_url"`
	Integrator     string            `json:"integrator"`
	Fee            *float64          `json:"fee"`
	APIKey         string            `json:"api_key"`
	APIKeyEnv      string            `json:"api_key_env"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	RPCOverrides   map[string]string `json:"rpc_overrides"`
}

// Option customises the plugin.
type Option func(*Plugin)

// WithRouter replaces the LI.FI client built during Init.
func WithRouter(router swap.Router) Option {
	return func(p *Plugin) { p.router = router }
}

// WithWalletOptions forwards options to every wallet provider the plugin creates.
func WithWalletOptions(opts ...provider.Option) Option {
	return func(p *Plugin) { p.walletOpts = append(p.walletOpts, opts...) }
}

// Plugin exposes the swap action backed by a per-agent wallet provider.
type Plugin struct {
	settings   Settings
	defs       web3.ChainDefinitions
	router     swap.Router
	walletOpts []provider.Option
	action     *swap.Action
	logger     *slog.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

// New constructs an unconfigured plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{logger: logger.Named("plugin.evm")}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Info implements plugin.Plugin.
func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:          ID,
		Name:        "EVM",
		Description: "Same-chain token swaps through the LI.FI router",
		Version:     "1.0.0",
	}
}

// Configure decodes the configuration block.
func (p *Plugin) Configure(cfg map[string]any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode evm settings: %w", err)
	}
	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return fmt.Errorf("decode evm settings: %w", err)
	}
	if settings.Fee != nil && (*settings.Fee < 0 || *settings.Fee >= 1) {
		return fmt.Errorf("evm fee must be in [0, 1): %v", *settings.Fee)
	}
	p.settings = settings
	return nil
}

// Init loads chain definitions and builds the swap action.
func (p *Plugin) Init(ctx *plugin.ExecutionContext) error {
	if ctx.Logger != nil {
		p.logger = ctx.Logger
	}
	defs, err := p.loadChains(ctx)
	if err != nil {
		return err
	}
	if len(defs.Chains) == 0 {
		return errors.New("evm plugin requires at least one chain")
	}
	p.defs = defs

	if p.router == nil {
		p.router = p.newRouter()
	}

	var execOpts []swap.ExecutorOption
	if p.settings.Integrator != "" {
		execOpts = append(execOpts, swap.WithIntegrator(p.settings.Integrator))
	}
	if p.settings.Fee != nil {
		execOpts = append(execOpts, swap.WithFee(*p.settings.Fee))
	}
	p.action = swap.NewAction(p.newWallet, p.router, swap.WithExecutorOptions(execOpts...))
	p.logger.Info("evm plugin initialised", slog.Any("chains", defs.Names()))
	return nil
}

// Start implements plugin.Plugin.
func (p *Plugin) Start(*plugin.ExecutionContext) error { return nil }

// Stop implements plugin.Plugin. Wallets are closed after every action run.
func (p *Plugin) Stop(*plugin.ExecutionContext) error { return nil }

// Actions returns the actions the plugin contributes once initialised.
func (p *Plugin) Actions() []agent.Action {
	if p.action == nil {
		return nil
	}
	return []agent.Action{p.action}
}

// ChainNames lists the configured chain keys.
func (p *Plugin) ChainNames() []string {
	return p.defs.Names()
}

func (p *Plugin) loadChains(ctx *plugin.ExecutionContext) (web3.ChainDefinitions, error) {
	defs, ok, err := plugin.ResourceAs[web3.ChainDefinitions](ctx, ResourceChains)
	if err != nil || ok {
		return defs, err
	}
	return web3.LoadChainDefinitions(p.settings.ChainConfig)
}

func (p *Plugin) newRouter() *lifi.Client {
	timeout := time.Duration(p.settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiKey := p.settings.APIKey
	if apiKey == "" && p.settings.APIKeyEnv != "" {
		apiKey = os.Getenv(p.settings.APIKeyEnv)
	}
	integrator := strings.TrimSpace(p.settings.Integrator)
	if integrator == "" {
		integrator = swap.DefaultIntegrator
	}
	return lifi.NewClient(p.settings.RouterURL,
		lifi.WithAPIKey(apiKey),
		lifi.WithIntegrator(integrator),
		lifi.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

func (p *Plugin) newWallet(privateKey string) (swap.Wallet, error) {
	opts := append([]provider.Option{provider.WithRPCOverrides(p.settings.RPCOverrides)}, p.walletOpts...)
	return provider.NewWalletProvider(privateKey, p.defs, opts...)
}
