package web3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleChains = `
chains:
  base:
    id: 8453
    name: Base
    rpc_url: https://mainnet.base.org
    explorer_url: https://basescan.org
    native_currency: {name: Ether, symbol: ETH, decimals: 18}
  sepolia:
    id: 11155111
    rpc_url: https://rpc.sepolia.org
    testnet: true
`

func TestParseChainDefinitions(t *testing.T) {
	defs, err := ParseChainDefinitions([]byte(sampleChains))
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "sepolia"}, defs.Names())

	base := defs.Chains["base"].Config()
	assert.Equal(t, int64(8453), base.ID)
	assert.Equal(t, "Base", base.Name)
	assert.Equal(t, "ETH", base.NativeCurrency.Symbol)

	sepolia := defs.Chains["sepolia"]
	assert.Equal(t, "sepolia", sepolia.Name)
	assert.Equal(t, 18, sepolia.NativeCurrency.Decimals)
	assert.True(t, sepolia.Testnet)
}

func TestParseChainDefinitionsRejectsInvalid(t *testing.T) {
	_, err := ParseChainDefinitions([]byte("chains:\n  x:\n    rpc_url: http://localhost\n"))
	assert.Error(t, err)

	_, err = ParseChainDefinitions([]byte("chains:\n  x:\n    id: 1\n"))
	assert.Error(t, err)

	_, err = ParseChainDefinitions([]byte("chains:\n  x:\n    id: 1\n    type: solana\n    rpc_url: http://localhost\n"))
	assert.Error(t, err)
}

func TestLoadChainDefinitionsEmptyPath(t *testing.T) {
	defs, err := LoadChainDefinitions("")
	require.NoError(t, err)
	assert.Empty(t, defs.Chains)
}
