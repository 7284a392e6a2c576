package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	cases := map[string]string{
		"plain":  `{"chain":"base"}`,
		"fenced": "Here you go:\n```json\n{\"chain\":\"base\"}\n```\n",
		"prose":  `Sure! {"chain":"base"} hope that helps`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			obj, err := ExtractObject(input)
			require.NoError(t, err)
			assert.JSONEq(t, `{"chain":"base"}`, string(obj))
		})
	}

	_, err := ExtractObject("no object here")
	assert.True(t, errors.Is(err, ErrNoJSONObject))

	_, err = ExtractObject("{not json}")
	assert.True(t, errors.Is(err, ErrNoJSONObject))
}
