package swap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Defaults applied to route queries.
const (
	DefaultSlippage   = 0.005
	DefaultFee        = 0.02
	DefaultIntegrator = "agentswap"
)

// PrivateKeySetting is the runtime setting holding the wallet key.
const PrivateKeySetting = "EVM_PRIVATE_KEY"

// Amount is an integer quantity in the token's smallest unit. It decodes from
// a JSON string or number.
type Amount string

// UnmarshalJSON accepts "1000", 1000 and 1e3.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	*a = Amount(data)
	return nil
}

// Int parses the amount as a positive integer.
func (a Amount) Int() (*big.Int, error) {
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", string(a))
	}
	if !d.IsInteger() || !d.IsPositive() {
		return nil, fmt.Errorf("amount %q is not a positive integer", string(a))
	}
	return d.BigInt(), nil
}

// Request is one swap intent. Slippage is a fraction; zero selects
// DefaultSlippage.
type Request struct {
	Chain     string  `json:"chain"`
	FromToken string  `json:"fromToken"`
	ToToken   string  `json:"toToken"`
	Amount    Amount  `json:"amount"`
	Slippage  float64 `json:"slippage,omitempty"`
}

// validateSlippage accepts zero (default) or a fraction in (0, 1).
func (r Request) validateSlippage() error {
	if r.Slippage < 0 || r.Slippage >= 1 || math.IsNaN(r.Slippage) {
		return externalFault(nil, fmt.Sprintf("slippage %v is not a fraction between 0 and 1", r.Slippage))
	}
	return nil
}

func (r Request) slippage() float64 {
	if r.Slippage <= 0 {
		return DefaultSlippage
	}
	return r.Slippage
}

// Transaction is the normalized record of a completed swap. To is the
// approval address of the route's first step.
type Transaction struct {
	Hash    string
	From    common.Address
	To      common.Address
	Value   *big.Int
	Data    []byte
	ChainID int64
}
