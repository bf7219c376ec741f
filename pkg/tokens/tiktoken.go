package tokens

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tiktoken counts tokens with a BPE encoding. The encoding is loaded once at
// construction; tiktoken-go fetches rank files on first use unless an offline
// loader has been registered with tiktoken.SetBpeLoader.
type Tiktoken struct {
	name     string
	encoding *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding (e.g. "cl100k_base").
func NewTiktoken(name string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", name, err)
	}
	return &Tiktoken{name: name, encoding: enc}, nil
}

// Name returns the encoding name.
func (t *Tiktoken) Name() string {
	return t.name
}

// Estimate returns the exact BPE token count for text.
func (t *Tiktoken) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}
