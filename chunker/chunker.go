package chunker

import (
	"path/filepath"

	"github.com/calenlabs/ragbook/core"
)

// Chunker produces overlapping fixed-size token windows over a document.
// Chunk i+1 begins (chunkSize - overlap) tokens after chunk i begins, every
// token of the document is covered, and a trailing remainder shorter than
// the chunk size is still emitted as the final chunk.
type Chunker struct {
	tokenizer Tokenizer
	chunkSize int
	overlap   int
}

// New creates a chunker. Fails with a config error when the overlap is not
// strictly smaller than the chunk size, since the window could never advance.
func New(tokenizer Tokenizer, chunkSize, overlap int) (*Chunker, error) {
	if err := core.ValidateChunking(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Chunker{
		tokenizer: tokenizer,
		chunkSize: chunkSize,
		overlap:   overlap,
	}, nil
}

// Chunk splits a document into its ordered sequence of chunks.
// An empty document yields no chunks. Each chunk carries the markdown
// heading in effect at its start token, its token span, and a record ID
// derived deterministically from (document source, ordinal).
func (c *Chunker) Chunk(doc core.Document) []core.Chunk {
	tokens := c.tokenizer.Encode(doc.Content)
	if len(tokens) == 0 {
		return nil
	}

	marks := scanSections(doc.Content)
	offsets := c.byteOffsets(tokens)

	filename := doc.Filename
	if filename == "" {
		filename = filepath.Base(doc.Source)
	}

	var chunks []core.Chunk
	step := c.chunkSize - c.overlap
	for start, ordinal := 0, 0; ; start, ordinal = start+step, ordinal+1 {
		end := min(start+c.chunkSize, len(tokens))

		chunks = append(chunks, core.Chunk{
			Id:           core.ChunkID(doc.Source, ordinal),
			Source:       doc.Source,
			Filename:     filename,
			Section:      sectionAt(marks, offsets[start]),
			Ordinal:      ordinal,
			Text:         c.tokenizer.Decode(tokens[start:end]),
			TokenCount:   end - start,
			StartToken:   start,
			EndToken:     end,
			Continuation: ordinal > 0,
		})

		// Stop once a window reaches the end of the document; a further
		// window would only repeat text already covered.
		if end == len(tokens) {
			return chunks
		}
	}
}

// ChunkSize returns the configured window size in tokens.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap in tokens.
func (c *Chunker) Overlap() int { return c.overlap }

// byteOffsets returns, for each token index, the byte offset in the
// original text where that token starts. Tokens decode to byte sequences
// whose concatenation is the original text, so per-token decoding gives
// exact offsets.
func (c *Chunker) byteOffsets(tokens []int) []int {
	offsets := make([]int, len(tokens)+1)
	for i, token := range tokens {
		offsets[i+1] = offsets[i] + len(c.tokenizer.Decode([]int{token}))
	}
	return offsets
}
