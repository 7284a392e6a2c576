// Package lifi is a client for the LI.FI routing API together with a small
// execution engine that signs and broadcasts route steps through a
// web3.Signer.
package lifi

import (
	"context"
	"strings"

	"AgentSwap/internal/web3"
)

// Process and execution status values reported by the engine.
const (
	StatusStarted        = "STARTED"
	StatusActionRequired = "ACTION_REQUIRED"
	StatusPending        = "PENDING"
	StatusDone           = "DONE"
	StatusFailed         = "FAILED"
	StatusCancelled      = "CANCELLED"
)

// Process types.
const (
	ProcessTokenAllowance = "TOKEN_ALLOWANCE"
	ProcessSwap           = "SWAP"
)

// Route ordering preferences accepted by the API.
const (
	OrderRecommended = "RECOMMENDED"
	OrderFastest     = "FASTEST"
	OrderCheapest    = "CHEAPEST"
)

// ChainTypeEVM marks EVM chains in ExtendedChain.
const ChainTypeEVM = "EVM"

// ZeroAddress is the placeholder address LI.FI uses for native tokens.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

const eeeeAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// IsNativeToken reports whether address denotes the chain's native asset.
func IsNativeToken(address string) bool {
	a := strings.ToLower(strings.TrimSpace(address))
	return a == ZeroAddress || a == eeeeAddress
}

// Token is a fungible asset on a chain.
type Token struct {
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
	CoinKey  string `json:"coinKey,omitempty"`
	LogoURI  string `json:"logoURI,omitempty"`
	PriceUSD string `json:"priceUSD,omitempty"`
}

// RouteOptions tune route discovery.
type RouteOptions struct {
	Slippage   float64 `json:"slippage,omitempty"`
	Order      string  `json:"order,omitempty"`
	Fee        float64 `json:"fee,omitempty"`
	Integrator string  `json:"integrator,omitempty"`
}

// RoutesRequest is the body of POST /advanced/routes.
type RoutesRequest struct {
	FromChainID      int64         `json:"fromChainId"`
	FromAmount       string        `json:"fromAmount"`
	FromTokenAddress string        `json:"fromTokenAddress"`
	FromAddress      string        `json:"fromAddress,omitempty"`
	ToChainID        int64         `json:"toChainId"`
	ToTokenAddress   string        `json:"toTokenAddress"`
	ToAddress        string        `json:"toAddress,omitempty"`
	Options          *RouteOptions `json:"options,omitempty"`
}

// RoutesResponse lists candidate routes, best first.
type RoutesResponse struct {
	Routes []Route `json:"routes"`
}

// Route is one candidate path from the source to the destination token.
type Route struct {
	ID            string `json:"id"`
	FromChainID   int64  `json:"fromChainId"`
	FromAmountUSD string `json:"fromAmountUSD,omitempty"`
	FromAmount    string `json:"fromAmount"`
	FromToken     Token  `json:"fromToken"`
	FromAddress   string `json:"fromAddress,omitempty"`
	ToChainID     int64  `json:"toChainId"`
	ToAmountUSD   string `json:"toAmountUSD,omitempty"`
	ToAmount      string `json:"toAmount"`
	ToAmountMin   string `json:"toAmountMin"`
	ToToken       Token  `json:"toToken"`
	ToAddress     string `json:"toAddress,omitempty"`
	Steps         []Step `json:"steps"`
}

// Step is a single executable leg of a route.
type Step struct {
	ID                 string              `json:"id"`
	Type               string              `json:"type"`
	Tool               string              `json:"tool"`
	Action             Action              `json:"action"`
	Estimate           Estimate            `json:"estimate"`
	IncludedSteps      []Step              `json:"includedSteps,omitempty"`
	TransactionRequest *TransactionRequest `json:"transactionRequest,omitempty"`
	Execution          *Execution          `json:"execution,omitempty"`
}

// Action describes what a step moves.
type Action struct {
	FromChainID int64   `json:"fromChainId"`
	FromAmount  string  `json:"fromAmount"`
	FromToken   Token   `json:"fromToken"`
	FromAddress string  `json:"fromAddress,omitempty"`
	ToChainID   int64   `json:"toChainId"`
	ToToken     Token   `json:"toToken"`
	ToAddress   string  `json:"toAddress,omitempty"`
	Slippage    float64 `json:"slippage,omitempty"`
}

// Estimate holds the quoted outcome of a step.
type Estimate struct {
	Tool              string  `json:"tool,omitempty"`
	ApprovalAddress   string  `json:"approvalAddress"`
	FromAmount        string  `json:"fromAmount"`
	ToAmount          string  `json:"toAmount"`
	ToAmountMin       string  `json:"toAmountMin"`
	ExecutionDuration float64 `json:"executionDuration,omitempty"`
}

// TransactionRequest is the unsigned transaction LI.FI builds for a step.
// Numeric fields are hex quantities.
type TransactionRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	ChainID  int64  `json:"chainId,omitempty"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	GasLimit string `json:"gasLimit,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// Execution tracks the progress of a step. Process holds the step's swap
// transaction records; a token approval sent beforehand is kept in Approval.
type Execution struct {
	Status   string    `json:"status"`
	Process  []Process `json:"process"`
	Approval *Process  `json:"approval,omitempty"`
}

// Process is the engine's status report for one on-chain action.
type Process struct {
	Type      string        `json:"type"`
	Status    string        `json:"status"`
	TxHash    string        `json:"txHash,omitempty"`
	TxLink    string        `json:"txLink,omitempty"`
	Data      string        `json:"data,omitempty"`
	Message   string        `json:"message,omitempty"`
	Error     *ProcessError `json:"error,omitempty"`
	StartedAt int64         `json:"startedAt,omitempty"`
	DoneAt    int64         `json:"doneAt,omitempty"`
}

// ProcessError explains a FAILED process.
type ProcessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metamask is the wallet_addEthereumChain descriptor of a chain.
type Metamask struct {
	ChainID           string              `json:"chainId"`
	ChainName         string              `json:"chainName"`
	NativeCurrency    web3.NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string            `json:"rpcUrls"`
	BlockExplorerURLs []string            `json:"blockExplorerUrls"`
}

// ExtendedChain is the chain descriptor the engine is configured with.
type ExtendedChain struct {
	ID             int64    `json:"id"`
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	ChainType      string   `json:"chainType"`
	Coin           string   `json:"coin"`
	Mainnet        bool     `json:"mainnet"`
	NativeToken    Token    `json:"nativeToken"`
	Metamask       Metamask `json:"metamask"`
	DiamondAddress string   `json:"diamondAddress"`
}

// WalletClientFunc returns the signer for a chain id.
type WalletClientFunc func(ctx context.Context, chainID int64) (web3.Signer, error)

// Config binds the execution engine to a set of chains and a wallet.
type Config struct {
	Integrator   string
	Chains       []ExtendedChain
	WalletClient WalletClientFunc
}

// Chain returns the configured chain with the given id.
func (c Config) Chain(id int64) (ExtendedChain, bool) {
	for _, chain := range c.Chains {
		if chain.ID == id {
			return chain, true
		}
	}
	return ExtendedChain{}, false
}
