package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"AgentSwap/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to construct a signer for an EVM compatible chain.
type Config struct {
	Name       string
	RPCURL     string
	ChainID    int64
	PrivateKey string
}

// Backend mirrors the subset of ethclient.Client used by the signer.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Option customises a Client.
type Option func(*Client)

// WithPollInterval sets how often WaitReceipt polls for a mined receipt.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithGasBuffer sets the percentage added on top of estimated gas.
func WithGasBuffer(percent int) Option {
	return func(c *Client) {
		if percent >= 0 {
			c.gasBuffer = percent
		}
	}
}

// Client implements web3.Signer for EVM compatible chains.
type Client struct {
	name         string
	chainID      *big.Int
	key          *ecdsa.PrivateKey
	address      common.Address
	backend      Backend
	pollInterval time.Duration
	gasBuffer    int

	mu     sync.Mutex
	closed bool
}

var _ web3.Signer = (*Client)(nil)

// ParsePrivateKey decodes a hex encoded secp256k1 key with or without 0x.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use signer.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("chain %s has no rpc url", cfg.Name)
	}
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Name, err)
	}
	eth := ethclient.NewClient(rpcClient)

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID <= 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("query chain id of %s: %w", cfg.Name, err)
		}
	}

	return NewClientWithBackend(cfg.Name, chainID, key, eth, opts...), nil
}

// NewClientWithBackend wraps an existing backend, typically a fake in tests.
func NewClientWithBackend(name string, chainID *big.Int, key *ecdsa.PrivateKey, backend Backend, opts ...Option) *Client {
	c := &Client{
		name:         name,
		chainID:      new(big.Int).Set(chainID),
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		backend:      backend,
		pollInterval: 2 * time.Second,
		gasBuffer:    20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name returns the chain name the signer is bound to.
func (c *Client) Name() string { return c.name }

// ChainID returns the numeric chain id.
func (c *Client) ChainID() int64 { return c.chainID.Int64() }

// Addresses returns the accounts controlled by the signer. A private-key
// signer controls exactly one.
func (c *Client) Addresses(ctx context.Context) ([]common.Address, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []common.Address{c.address}, nil
}

// SendTransaction signs and broadcasts a transaction from the wallet address.
func (c *Client) SendTransaction(ctx context.Context, req web3.TxRequest) (common.Hash, error) {
	if err := c.ensureOpen(); err != nil {
		return common.Hash{}, err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("query nonce: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimated, err := c.backend.EstimateGas(ctx, gethcore.CallMsg{
			From:  c.address,
			To:    req.To,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = estimated + estimated*uint64(c.gasBuffer)/100
	}

	var txData coretypes.TxData
	if req.GasPrice != nil {
		txData = &coretypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: req.GasPrice,
			Gas:      gasLimit,
			To:       req.To,
			Value:    value,
			Data:     req.Data,
		}
	} else {
		tip, feeCap, err := c.dynamicFees(ctx)
		if err != nil {
			return common.Hash{}, err
		}
		txData = &coretypes.DynamicFeeTx{
			ChainID:   c.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		}
	}

	signed, err := coretypes.SignTx(coretypes.NewTx(txData), coretypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return signed.Hash(), nil
}

// WaitReceipt polls until the transaction is mined or ctx is done.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, fmt.Errorf("query receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Call executes a read-only contract call against the latest block.
func (c *Client) Call(ctx context.Context, req web3.CallRequest) ([]byte, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	to := req.To
	out, err := c.backend.CallContract(ctx, gethcore.CallMsg{From: c.address, To: &to, Data: req.Data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// Close releases the network connection held by the signer.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.backend != nil {
		c.backend.Close()
	}
}

func (c *Client) ensureOpen() error {
	if c == nil || c.backend == nil {
		return errors.New("signer is not initialised")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("signer for %s is closed", c.name)
	}
	return nil
}

func (c *Client) dynamicFees(ctx context.Context) (*big.Int, *big.Int, error) {
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("query latest header: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	if head.BaseFee == nil {
		price, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return price, price, nil
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return tip, feeCap, nil
}
