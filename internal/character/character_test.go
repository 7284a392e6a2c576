package character

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const traderJSON = `{
  "name": "Trader",
  "modelProvider": "OpenAI",
  "clients": ["Direct"],
  "plugins": ["evm"],
  "settings": {"secrets": {"EVM_PRIVATE_KEY": "0xabc"}},
  "bio": "Swaps tokens.",
  "lore": ["Line one", "Line two"]
}`

func TestLinesAcceptsStringOrArray(t *testing.T) {
	var c Character
	require.NoError(t, json.Unmarshal([]byte(traderJSON), &c))
	assert.Equal(t, Lines{"Swaps tokens."}, c.Bio)
	assert.Equal(t, "Line one\nLine two", c.Lore.String())

	var bad Lines
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestNormalizeFillsDefaults(t *testing.T) {
	var c Character
	require.NoError(t, json.Unmarshal([]byte(traderJSON), &c))
	c.Normalize()

	assert.Equal(t, IDFromName("Trader"), c.ID)
	assert.Equal(t, "Trader", c.Username)
	assert.Equal(t, "openai", c.ModelProvider)
	assert.Equal(t, []string{"direct"}, c.Clients)
	assert.Equal(t, IDFromName("Trader"), IDFromName("Trader"))
	assert.NotEqual(t, IDFromName("Trader"), IDFromName("Other"))
}

func TestValidate(t *testing.T) {
	c := Character{}
	assert.Error(t, c.Validate())

	c = Character{Name: "x", Plugins: []string{"evm", "evm"}}
	assert.Error(t, c.Validate())

	c = Character{Name: "x", ID: "not-a-uuid"}
	assert.Error(t, c.Validate())

	d := Default()
	assert.NoError(t, d.Validate())
	assert.Equal(t, []string{"evm"}, d.Plugins)
}

func TestLoaderResolvesCandidates(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "characters"), 0o755))
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "characters", "trader.json"), []byte(traderJSON), 0o600))

	loader := &Loader{WorkDir: t.TempDir(), BaseDir: base}

	chars, err := loader.Load(" missing/trader.json , ")
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, "Trader", chars[0].Name)
	assert.Equal(t, "0xabc", chars[0].Settings.Secrets["EVM_PRIVATE_KEY"])

	_, err = loader.Load("nowhere.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere.json")
}
