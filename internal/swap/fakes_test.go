package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"AgentSwap/internal/agent"
	"AgentSwap/internal/character"
	"AgentSwap/internal/lifi"
	"AgentSwap/internal/llm"
	"AgentSwap/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	testApproval = "0x1231deb6f5749ef6ce6943a275a1d3e7486f4eae"
	testUSDC     = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	testNative   = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
)

var testSender = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type fakeSigner struct {
	chainID int64
	addrs   []common.Address
	err     error
}

func (s *fakeSigner) ChainID() int64 { return s.chainID }

func (s *fakeSigner) Addresses(context.Context) ([]common.Address, error) {
	return s.addrs, s.err
}

func (s *fakeSigner) SendTransaction(context.Context, web3.TxRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("not supported")
}

func (s *fakeSigner) WaitReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, errors.New("not supported")
}

func (s *fakeSigner) Call(context.Context, web3.CallRequest) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (s *fakeSigner) Close() {}

type fakeWallet struct {
	chains map[string]web3.ChainConfig
	signer *fakeSigner
	closed bool
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		chains: map[string]web3.ChainConfig{
			"base": {
				ID: 8453, Name: "Base", RPCURL: "https://mainnet.base.org", ExplorerURL: "https://basescan.org",
				NativeCurrency: web3.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			},
			"sepolia": {
				ID: 11155111, Name: "Sepolia", RPCURL: "https://rpc.sepolia.org",
				NativeCurrency: web3.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
				Testnet: true,
			},
		},
		signer: &fakeSigner{chainID: 8453, addrs: []common.Address{testSender}},
	}
}

func (w *fakeWallet) Chains() map[string]web3.ChainConfig { return w.chains }

func (w *fakeWallet) WalletClient(_ context.Context, name string) (web3.Signer, error) {
	if _, ok := w.chains[name]; !ok {
		return nil, fmt.Errorf("chain %s is not configured", name)
	}
	return w.signer, nil
}

func (w *fakeWallet) WalletClientByID(_ context.Context, id int64) (web3.Signer, error) {
	for _, cfg := range w.chains {
		if cfg.ID == id {
			return w.signer, nil
		}
	}
	return nil, fmt.Errorf("chain id %d is not configured", id)
}

func (w *fakeWallet) Close() { w.closed = true }

type fakeRouter struct {
	routes    []lifi.Route
	routesErr error
	process   *lifi.Process
	execErr   error

	queries    []lifi.RoutesRequest
	executions int
	config     lifi.Config
}

func (r *fakeRouter) GetRoutes(_ context.Context, req lifi.RoutesRequest) (*lifi.RoutesResponse, error) {
	r.queries = append(r.queries, req)
	if r.routesErr != nil {
		return nil, r.routesErr
	}
	return &lifi.RoutesResponse{Routes: r.routes}, nil
}

func (r *fakeRouter) ExecuteRoute(_ context.Context, route lifi.Route, cfg lifi.Config) (*lifi.Route, error) {
	r.executions++
	r.config = cfg
	executed := route
	executed.Steps = append([]lifi.Step(nil), route.Steps...)
	if len(executed.Steps) > 0 {
		exec := &lifi.Execution{Status: lifi.StatusPending}
		if r.process != nil {
			exec.Status = r.process.Status
			exec.Process = []lifi.Process{*r.process}
		}
		executed.Steps[0].Execution = exec
	}
	return &executed, r.execErr
}

func oneRoute() []lifi.Route {
	return []lifi.Route{{
		ID:          "route-1",
		FromChainID: 8453,
		ToChainID:   8453,
		Steps: []lifi.Step{{
			ID:       "step-1",
			Type:     "swap",
			Tool:     "uniswap",
			Action:   lifi.Action{FromChainID: 8453, ToChainID: 8453},
			Estimate: lifi.Estimate{ApprovalAddress: testApproval},
		}},
	}}
}

type stubRuntime struct {
	settings map[string]string
	object   string
	err      error
	prompts  []string
}

func (r *stubRuntime) AgentID() string { return "agent-1" }

func (r *stubRuntime) Character() *character.Character {
	return &character.Character{Name: "Trader"}
}

func (r *stubRuntime) GetSetting(key string) string { return r.settings[key] }

func (r *stubRuntime) ComposeState(_ context.Context, msg agent.Memory) (agent.State, error) {
	return agent.State{
		agent.KeyRecentMessages: "user: " + msg.Content.Text,
		agent.KeyCurrentMessage: msg.Content.Text,
	}, nil
}

func (r *stubRuntime) GenerateObject(_ context.Context, req llm.Request) (json.RawMessage, error) {
	r.prompts = append(r.prompts, req.Context)
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.object), nil
}
