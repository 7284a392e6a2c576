package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainConfig is the read-only view of a configured chain.
type ChainConfig struct {
	ID             int64
	Name           string
	RPCURL         string
	ExplorerURL    string
	NativeCurrency NativeCurrency
	Testnet        bool
}

// TxRequest describes a transaction to be signed and broadcast by a Signer.
// Zero GasLimit means the signer estimates it; a nil GasPrice selects
// EIP-1559 fee fields.
type TxRequest struct {
	To       *common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// CallRequest is a read-only contract call.
type CallRequest struct {
	To   common.Address
	Data []byte
}

// Signer is a wallet bound to a single chain.
type Signer interface {
	ChainID() int64
	Addresses(ctx context.Context) ([]common.Address, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Call(ctx context.Context, req CallRequest) ([]byte, error)
	Close()
}
