package demo

import (
	"testing"

	"github.com/dekarrin/llmctl/internal/toktrie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrammarValidates(t *testing.T) {
	g := Grammar()
	require.NoError(t, g.Validate())
}

func TestVocabBuildsByteLevelTrieWithEOS(t *testing.T) {
	trie, eosID, err := Vocab()
	require.NoError(t, err)
	require.NotNil(t, trie)

	assert.Equal(t, 257, trie.V())

	tb, err := trie.TokenBytes(toktrie.TokenId('a'))
	require.NoError(t, err)
	assert.Equal(t, []byte{'a'}, tb)

	assert.Equal(t, int(eosID), trie.V()-1)
}
