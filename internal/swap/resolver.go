package swap

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"AgentSwap/internal/agent"
	"AgentSwap/internal/llm"
)

// Extractor turns a prompt into a JSON object. agent.Runtime satisfies it.
type Extractor interface {
	GenerateObject(ctx context.Context, req llm.Request) (json.RawMessage, error)
}

// Resolver builds a Request from conversation state.
type Resolver struct {
	extractor Extractor
	chains    map[string]struct{}
	names     []string
}

// NewResolver binds the resolver to the configured chain names.
func NewResolver(extractor Extractor, chainNames []string) *Resolver {
	names := append([]string(nil), chainNames...)
	sort.Strings(names)
	chains := make(map[string]struct{}, len(names))
	for _, name := range names {
		chains[name] = struct{}{}
	}
	return &Resolver{extractor: extractor, chains: chains, names: names}
}

// Prompt renders the extraction prompt for state.
func (r *Resolver) Prompt(state agent.State) string {
	quoted := make([]string, len(r.names))
	for i, name := range r.names {
		quoted[i] = `"` + name + `"`
	}
	return strings.ReplaceAll(agent.ComposeContext(state, swapTemplate), chainsMarker, strings.Join(quoted, "|"))
}

// Resolve performs a single extraction call and validates the result.
func (r *Resolver) Resolve(ctx context.Context, state agent.State) (Request, error) {
	raw, err := r.extractor.GenerateObject(ctx, llm.Request{
		Context:    r.Prompt(state),
		ModelClass: llm.ModelClassSmall,
	})
	if err != nil {
		return Request{}, err
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, externalFault(err, "malformed swap parameters")
	}
	req.Chain = strings.TrimSpace(req.Chain)
	if _, ok := r.chains[req.Chain]; !ok {
		return Request{}, UnknownChainError(req.Chain, r.names)
	}
	if strings.TrimSpace(req.FromToken) == "" || strings.TrimSpace(req.ToToken) == "" {
		return Request{}, externalFault(nil, "swap parameters are missing a token")
	}
	if _, err := req.Amount.Int(); err != nil {
		return Request{}, externalFault(err, "malformed swap parameters")
	}
	if err := req.validateSlippage(); err != nil {
		return Request{}, err
	}
	return req, nil
}
