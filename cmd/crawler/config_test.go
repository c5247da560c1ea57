package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opdsgrab/internal/types"
)

func TestParseLanguages(t *testing.T) {
	langs, err := parseLanguages(" en:English, fr:French ,")
	require.NoError(t, err)
	assert.Equal(t, []types.Language{
		{Code: "en", Name: "English"},
		{Code: "fr", Name: "French"},
	}, langs)
}

func TestParseLanguagesInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		",",
		"en",
		"en:",
		":English",
		"e n:English",
		"en:English,en:Anglais",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := parseLanguages(s)
			assert.Error(t, err)
		})
	}
}
