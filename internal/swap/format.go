package swap

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// formatEther renders wei as ether, always with a fractional part.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(wei, -18).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
