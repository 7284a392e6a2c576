package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, "https://api.groq.com/openai/v1", EndpointFor("GROQ"))
	assert.Equal(t, defaultBaseURL, EndpointFor("unknown"))
}

func newCompletionServer(t *testing.T, content string, captured *map[string]any, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*auth = r.Header.Get("Authorization")
		defer r.Body.Close()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateTextUsesModelClass(t *testing.T) {
	var body map[string]any
	var auth string
	srv := newCompletionServer(t, "hello there", &body, &auth)

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, SmallModel: "tiny", Timeout: time.Second})
	require.NoError(t, err)
	client.httpClient = srv.Client()

	text, err := client.GenerateText(context.Background(), llm.Request{Context: "hi", ModelClass: llm.ModelClassSmall})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.True(t, strings.HasPrefix(auth, "Bearer "))
	assert.Equal(t, "tiny", body["model"])

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 1)
}

func TestGenerateObjectExtractsFencedJSON(t *testing.T) {
	var body map[string]any
	var auth string
	srv := newCompletionServer(t, "```json\n{\"chain\":\"base\",\"amount\":\"1\"}\n```", &body, &auth)

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)
	client.httpClient = srv.Client()

	obj, err := client.GenerateObject(context.Background(), llm.Request{Context: "swap 1 wei"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chain":"base","amount":"1"}`, string(obj))
	assert.Equal(t, defaultModelName, body["model"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestGenerateObjectRejectsProse(t *testing.T) {
	var body map[string]any
	var auth string
	srv := newCompletionServer(t, "I cannot help with that", &body, &auth)

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)
	client.httpClient = srv.Client()

	_, err = client.GenerateObject(context.Background(), llm.Request{Context: "?"})
	assert.ErrorIs(t, err, llm.ErrNoJSONObject)
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	client.httpClient = srv.Client()

	_, err = client.GenerateText(context.Background(), llm.Request{Context: "test"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeUpstreamFailure, xerrors.CodeOf(err))
	assert.True(t, xerrors.RetryableError(err))
}
