package transformer

import (
	"errors"
	"fmt"
)

// Sentinel tokens.
const (
	StartToken = "<start>"
	EndToken   = "<end>"
)

// ErrInvalidVocabulary is wrapped by NewVocabulary when the token list is
// unusable.
var ErrInvalidVocabulary = errors.New("transformer: invalid vocabulary")

// DefaultTokens is the built-in vocabulary walked by the toy model.
var DefaultTokens = []string{
	StartToken, "The", "quick", "brown", "fox", "jumps", "over", "lazy", "dog", ".", EndToken,
}

// Vocabulary is a fixed, ordered token list. It is immutable once built.
type Vocabulary struct {
	tokens []string
	index  map[string]int
}

// NewVocabulary validates tokens: start sentinel first, end sentinel last,
// no duplicates.
func NewVocabulary(tokens ...string) (*Vocabulary, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: need at least the two sentinels, got %d tokens", ErrInvalidVocabulary, len(tokens))
	}
	if tokens[0] != StartToken {
		return nil, fmt.Errorf("%w: first token must be %s, got %q", ErrInvalidVocabulary, StartToken, tokens[0])
	}
	if tokens[len(tokens)-1] != EndToken {
		return nil, fmt.Errorf("%w: last token must be %s, got %q", ErrInvalidVocabulary, EndToken, tokens[len(tokens)-1])
	}

	v := &Vocabulary{
		tokens: make([]string, len(tokens)),
		index:  make(map[string]int, len(tokens)),
	}
	copy(v.tokens, tokens)
	for i, tok := range tokens {
		if _, dup := v.index[tok]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", ErrInvalidVocabulary, tok)
		}
		v.index[tok] = i
	}
	return v, nil
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(DefaultTokens...)
	if err != nil {
		panic(err) // DefaultTokens is a package constant
	}
	return v
}

// Len returns the number of tokens including sentinels.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// Tokens returns a copy of the ordered token list.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// Index returns the position of tok, or -1 if it is not in the vocabulary.
func (v *Vocabulary) Index(tok string) int {
	if i, ok := v.index[tok]; ok {
		return i
	}
	return -1
}

// Next is the toy "model": a stateless lookup of the token that follows the
// last one in seq. The end sentinel, unknown tokens and anything at or past
// the second-to-last position all predict EndToken.
func (v *Vocabulary) Next(seq []string) string {
	if len(seq) == 0 {
		return EndToken
	}
	last := seq[len(seq)-1]
	i := v.Index(last)
	if i == -1 || last == EndToken {
		return EndToken
	}
	if i >= len(v.tokens)-2 {
		return EndToken
	}
	return v.tokens[i+1]
}
