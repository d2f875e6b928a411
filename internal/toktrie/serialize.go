package toktrie

import (
	"fmt"
	"os"

	"github.com/dekarrin/rezi"
)

// vocabMagic identifies the on-disk vocabulary binary format (§6, "Vocabulary
// binary format").
const vocabMagic = "TOKTRIE1"

// VocabArtifact is the serializable form of a vocabulary: magic, V,
// MAX_TOKEN_LEN, and the (token_id, byte_string, special-kind) table in id
// order. The trie itself is always rebuilt from this on load; there are no
// on-disk pointers.
type VocabArtifact struct {
	MaxTokenLen int
	Tokens      []TokenInfo
}

// MarshalBinary implements encoding.BinaryMarshaler using rezi, the way
// persisted game state is marshaled elsewhere in this codebase family.
func (a VocabArtifact) MarshalBinary() ([]byte, error) {
	var out []byte

	enc := func(v interface{}) error {
		b, err := rezi.Enc(v)
		if err != nil {
			return err
		}
		out = append(out, b...)
		return nil
	}

	if err := enc(vocabMagic); err != nil {
		return nil, fmt.Errorf("encode magic: %w", err)
	}
	if err := enc(a.MaxTokenLen); err != nil {
		return nil, fmt.Errorf("encode max_token_len: %w", err)
	}
	if err := enc(len(a.Tokens)); err != nil {
		return nil, fmt.Errorf("encode token count: %w", err)
	}
	for i, tok := range a.Tokens {
		if err := enc(tok.Bytes); err != nil {
			return nil, fmt.Errorf("encode token %d bytes: %w", i, err)
		}
		if err := enc(int(tok.Special)); err != nil {
			return nil, fmt.Errorf("encode token %d special kind: %w", i, err)
		}
	}
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using rezi.
func (a *VocabArtifact) UnmarshalBinary(data []byte) error {
	var offset int

	dec := func(v interface{}) error {
		n, err := rezi.Dec(data[offset:], v)
		if err != nil {
			return err
		}
		offset += n
		return nil
	}

	var magic string
	if err := dec(&magic); err != nil {
		return fmt.Errorf("decode magic: %w", err)
	}
	if magic != vocabMagic {
		return fmt.Errorf("not a toktrie vocabulary artifact (bad magic %q)", magic)
	}
	if err := dec(&a.MaxTokenLen); err != nil {
		return fmt.Errorf("decode max_token_len: %w", err)
	}
	var n int
	if err := dec(&n); err != nil {
		return fmt.Errorf("decode token count: %w", err)
	}
	a.Tokens = make([]TokenInfo, n)
	for i := 0; i < n; i++ {
		if err := dec(&a.Tokens[i].Bytes); err != nil {
			return fmt.Errorf("decode token %d bytes: %w", i, err)
		}
		var special int
		if err := dec(&special); err != nil {
			return fmt.Errorf("decode token %d special kind: %w", i, err)
		}
		a.Tokens[i].Special = SpecialKind(special)
	}
	return nil
}

// Encode serializes the trie's vocabulary to the binary format described in
// §6.
func (t *TokTrie) Encode() ([]byte, error) {
	art := VocabArtifact{MaxTokenLen: t.maxTokenLen, Tokens: t.tokens}
	return rezi.EncBinary(art), nil
}

// Decode rebuilds a TokTrie from bytes produced by Encode.
func Decode(data []byte) (*TokTrie, error) {
	var art VocabArtifact
	if _, err := rezi.DecBinary(data, &art); err != nil {
		return nil, fmt.Errorf("decode vocab artifact: %w", err)
	}
	return Build(art.Tokens, art.MaxTokenLen)
}

// LoadFile reads a serialized vocabulary artifact from path and builds a
// TokTrie from it.
func LoadFile(path string) (*TokTrie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocab file %q: %w", path, err)
	}
	return Decode(data)
}

// SaveFile writes the trie's vocabulary artifact to path.
func (t *TokTrie) SaveFile(path string) error {
	data, err := t.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write vocab file %q: %w", path, err)
	}
	return nil
}
