package web3

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chains.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single EVM network the wallet may use.
type ChainDefinition struct {
	ID             int64          `yaml:"id"`
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type"`
	RPCURL         string         `yaml:"rpc_url"`
	ExplorerURL    string         `yaml:"explorer_url"`
	NativeCurrency NativeCurrency `yaml:"native_currency"`
	Testnet        bool           `yaml:"testnet"`
}

// NativeCurrency is the gas token of a chain.
type NativeCurrency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals int    `yaml:"decimals" json:"decimals"`
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}
	return ParseChainDefinitions(content)
}

// ParseChainDefinitions decodes and validates chain definitions from YAML.
func ParseChainDefinitions(content []byte) (ChainDefinitions, error) {
	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	for key, def := range defs.Chains {
		if err := def.validate(key); err != nil {
			return ChainDefinitions{}, err
		}
		if def.Name == "" {
			def.Name = key
		}
		if def.NativeCurrency.Decimals == 0 {
			def.NativeCurrency.Decimals = 18
		}
		defs.Chains[key] = def
	}
	return defs, nil
}

func (d ChainDefinition) validate(key string) error {
	chainType := strings.ToLower(strings.TrimSpace(d.Type))
	if chainType != "" && chainType != "evm" {
		return fmt.Errorf("链 %s 使用了不支持的类型 %s", key, d.Type)
	}
	if d.ID <= 0 {
		return fmt.Errorf("链 %s 缺少有效的 id", key)
	}
	if strings.TrimSpace(d.RPCURL) == "" {
		return fmt.Errorf("链 %s 未配置 rpc_url", key)
	}
	return nil
}

// Names returns the configured chain keys in sorted order.
func (d ChainDefinitions) Names() []string {
	names := make([]string, 0, len(d.Chains))
	for name := range d.Chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config converts a definition into the runtime view handed to callers.
func (d ChainDefinition) Config() ChainConfig {
	return ChainConfig{
		ID:             d.ID,
		Name:           d.Name,
		RPCURL:         d.RPCURL,
		ExplorerURL:    d.ExplorerURL,
		NativeCurrency: d.NativeCurrency,
		Testnet:        d.Testnet,
	}
}
