package lifi

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

func packAllowance(owner, spender common.Address) ([]byte, error) {
	return erc20ABI.Pack("allowance", owner, spender)
}

func unpackAllowance(out []byte) (*big.Int, error) {
	values, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return nil, fmt.Errorf("decode allowance: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("decode allowance: unexpected %d values", len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode allowance: unexpected type %T", values[0])
	}
	return amount, nil
}

func packApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// parseQuantity accepts 0x-prefixed hex or decimal integers.
func parseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
		if s == "" {
			return new(big.Int), nil
		}
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return n, nil
}
