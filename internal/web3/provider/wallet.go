package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"AgentSwap/internal/web3"
	"AgentSwap/internal/web3/ethereum"
)

// Dialer creates a signer for a single chain.
type Dialer func(ctx context.Context, cfg ethereum.Config) (web3.Signer, error)

// Option customises a WalletProvider.
type Option func(*WalletProvider)

// WithDialer replaces the go-ethereum dialer, mainly for tests.
func WithDialer(dialer Dialer) Option {
	return func(w *WalletProvider) {
		if dialer != nil {
			w.dial = dialer
		}
	}
}

// WithRPCOverrides replaces the RPC URL of the named chains.
func WithRPCOverrides(overrides map[string]string) Option {
	return func(w *WalletProvider) {
		for name, url := range overrides {
			if def, ok := w.chains[name]; ok && url != "" {
				def.RPCURL = url
				w.chains[name] = def
			}
		}
	}
}

// WalletProvider owns one private key and hands out per-chain signers.
// Signers are dialled lazily and cached until Close.
type WalletProvider struct {
	privateKey string
	chains     map[string]web3.ChainConfig
	dial       Dialer

	mu      sync.Mutex
	clients map[string]web3.Signer
}

// NewWalletProvider validates the key and projects every chain definition.
func NewWalletProvider(privateKey string, defs web3.ChainDefinitions, opts ...Option) (*WalletProvider, error) {
	if _, err := ethereum.ParsePrivateKey(privateKey); err != nil {
		return nil, err
	}
	if len(defs.Chains) == 0 {
		return nil, errors.New("no chains configured")
	}

	chains := make(map[string]web3.ChainConfig, len(defs.Chains))
	for name, def := range defs.Chains {
		chains[name] = def.Config()
	}

	w := &WalletProvider{
		privateKey: privateKey,
		chains:     chains,
		dial:       dialEthereum,
		clients:    make(map[string]web3.Signer),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

func dialEthereum(ctx context.Context, cfg ethereum.Config) (web3.Signer, error) {
	return ethereum.NewClient(ctx, cfg)
}

// Chains returns a copy of the configured chains keyed by name.
func (w *WalletProvider) Chains() map[string]web3.ChainConfig {
	out := make(map[string]web3.ChainConfig, len(w.chains))
	for name, cfg := range w.chains {
		out[name] = cfg
	}
	return out
}

// ChainNames returns the configured chain names in sorted order.
func (w *WalletProvider) ChainNames() []string {
	names := make([]string, 0, len(w.chains))
	for name := range w.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainConfig looks up a chain by name.
func (w *WalletProvider) ChainConfig(name string) (web3.ChainConfig, bool) {
	cfg, ok := w.chains[name]
	return cfg, ok
}

// WalletClient returns the signer bound to the named chain.
func (w *WalletProvider) WalletClient(ctx context.Context, name string) (web3.Signer, error) {
	cfg, ok := w.chains[name]
	if !ok {
		return nil, fmt.Errorf("chain %s is not configured", name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if client, ok := w.clients[name]; ok {
		return client, nil
	}
	client, err := w.dial(ctx, ethereum.Config{
		Name:       name,
		RPCURL:     cfg.RPCURL,
		ChainID:    cfg.ID,
		PrivateKey: w.privateKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect wallet to %s: %w", name, err)
	}
	w.clients[name] = client
	return client, nil
}

// WalletClientByID returns the signer for the chain with the given id.
func (w *WalletProvider) WalletClientByID(ctx context.Context, chainID int64) (web3.Signer, error) {
	for _, name := range w.ChainNames() {
		if w.chains[name].ID == chainID {
			return w.WalletClient(ctx, name)
		}
	}
	return nil, fmt.Errorf("chain id %d is not configured", chainID)
}

// Close releases all signers created by the provider.
func (w *WalletProvider) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, client := range w.clients {
		client.Close()
		delete(w.clients, name)
	}
}
