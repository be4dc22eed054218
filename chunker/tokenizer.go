package chunker

import (
	"fmt"

	"github.com/calenlabs/ragbook/core"
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer converts text to a token stream and back. Decoding any prefix of
// an encoded stream must yield a prefix of the original text, which is what
// lets the chunker slice windows out of the stream without losing bytes.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// tiktokenEncoding is the BPE encoding used for chunk sizing.
const tiktokenEncoding = "cl100k_base"

// Tiktoken is a Tokenizer backed by the cl100k_base BPE encoding.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken loads the cl100k_base encoding.
func NewTiktoken() (*Tiktoken, error) {
	encoding, err := tiktoken.GetEncoding(tiktokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s encoding: %v", core.ErrConfig, tiktokenEncoding, err)
	}
	return &Tiktoken{encoding: encoding}, nil
}

// Encode converts text into BPE tokens.
func (t *Tiktoken) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Decode converts BPE tokens back into text.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}
