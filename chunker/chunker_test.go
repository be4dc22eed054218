package chunker

import (
	"strings"
	"testing"

	"github.com/calenlabs/ragbook/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runeTokenizer treats every rune as one token. It satisfies the prefix
// property exactly, which makes window arithmetic easy to assert on.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		runes[i] = rune(tok)
	}
	return string(runes)
}

func mustChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := New(runeTokenizer{}, size, overlap)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		c, err := New(runeTokenizer{}, 500, 150)
		require.NoError(t, err)
		assert.NotNil(t, c)
		assert.Equal(t, 500, c.ChunkSize())
		assert.Equal(t, 150, c.Overlap())
	})

	t.Run("overlap equal to chunk size", func(t *testing.T) {
		_, err := New(runeTokenizer{}, 100, 100)
		assert.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("overlap larger than chunk size", func(t *testing.T) {
		_, err := New(runeTokenizer{}, 100, 200)
		assert.ErrorIs(t, err, core.ErrConfig)
	})
}

func TestChunk_WindowArithmetic(t *testing.T) {
	// 1200-token document, chunk_size=500, overlap=150: windows are
	// [0,500) [350,850) [700,1200) and the third window reaches the end,
	// so exactly 3 chunks come out.
	c := mustChunker(t, 500, 150)
	doc := core.Document{Source: "docs/ch1.md", Content: strings.Repeat("a", 1200)}

	chunks := c.Chunk(doc)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].StartToken)
	assert.Equal(t, 500, chunks[0].EndToken)
	assert.Equal(t, 350, chunks[1].StartToken)
	assert.Equal(t, 850, chunks[1].EndToken)
	assert.Equal(t, 700, chunks[2].StartToken)
	assert.Equal(t, 1200, chunks[2].EndToken)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Ordinal)
		assert.Equal(t, i > 0, chunk.Continuation)
		assert.Equal(t, chunk.EndToken-chunk.StartToken, chunk.TokenCount)
		assert.Equal(t, core.ChunkID(doc.Source, i), chunk.Id)
	}
}

func TestChunk_ShortDocument(t *testing.T) {
	c := mustChunker(t, 500, 150)
	doc := core.Document{Source: "docs/ch2.md", Content: strings.Repeat("b", 400)}

	chunks := c.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, 400, chunks[0].TokenCount)
	assert.False(t, chunks[0].Continuation)
}

func TestChunk_TrailingRemainderEmitted(t *testing.T) {
	// 600 tokens with size 500, overlap 150: [0,500) then the 250-token
	// remainder [350,600) is still emitted, not dropped.
	c := mustChunker(t, 500, 150)
	doc := core.Document{Source: "docs/ch3.md", Content: strings.Repeat("c", 600)}

	chunks := c.Chunk(doc)
	require.Len(t, chunks, 2)
	assert.Equal(t, 250, chunks[1].TokenCount)
	assert.Equal(t, 600, chunks[1].EndToken)
}

func TestChunk_EmptyDocument(t *testing.T) {
	c := mustChunker(t, 500, 150)
	assert.Empty(t, c.Chunk(core.Document{Source: "docs/empty.md"}))
}

func TestChunk_Reconstruction(t *testing.T) {
	// Concatenating chunk texts with the declared overlap removed must
	// reproduce the document exactly: no loss, no duplication.
	tests := []struct {
		name      string
		length    int
		chunkSize int
		overlap   int
	}{
		{"even windows", 1000, 100, 20},
		{"remainder window", 1037, 100, 33},
		{"zero overlap", 512, 128, 0},
		{"single window", 80, 100, 10},
		{"overlap almost size", 300, 10, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustChunker(t, tt.chunkSize, tt.overlap)

			var content strings.Builder
			for i := 0; i < tt.length; i++ {
				content.WriteByte(byte('a' + i%26))
			}
			doc := core.Document{Source: "docs/r.md", Content: content.String()}

			chunks := c.Chunk(doc)
			require.NotEmpty(t, chunks)

			var rebuilt strings.Builder
			for i, chunk := range chunks {
				text := chunk.Text
				if i > 0 {
					text = string([]rune(text)[tt.overlap:])
				}
				rebuilt.WriteString(text)
			}
			assert.Equal(t, doc.Content, rebuilt.String())
		})
	}
}

func TestChunk_SectionAttribution(t *testing.T) {
	content := "intro text before any heading\n" +
		"# Kinematics\n" +
		strings.Repeat("k", 50) + "\n" +
		"## Inverse Kinematics\n" +
		strings.Repeat("i", 50) + "\n"

	c := mustChunker(t, 40, 10)
	chunks := c.Chunk(core.Document{Source: "docs/kin.md", Content: content})
	require.NotEmpty(t, chunks)

	assert.Equal(t, "Introduction", chunks[0].Section)
	assert.Equal(t, "Inverse Kinematics", chunks[len(chunks)-1].Section)

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		seen[chunk.Section] = true
	}
	assert.True(t, seen["Kinematics"])
}

func TestChunk_Deterministic(t *testing.T) {
	c := mustChunker(t, 50, 10)
	doc := core.Document{Source: "docs/det.md", Content: strings.Repeat("xyz ", 100)}

	first := c.Chunk(doc)
	second := c.Chunk(doc)
	assert.Equal(t, first, second)
}

func TestScanSections(t *testing.T) {
	t.Run("no headings", func(t *testing.T) {
		assert.Empty(t, scanSections("plain text\nmore text"))
		assert.Equal(t, "Introduction", sectionAt(nil, 0))
	})

	t.Run("heading levels and offsets", func(t *testing.T) {
		content := "before\n# One\nbody\n### Three\ntail"
		marks := scanSections(content)
		require.Len(t, marks, 2)
		assert.Equal(t, "One", marks[0].heading)
		assert.Equal(t, "Three", marks[1].heading)

		assert.Equal(t, "Introduction", sectionAt(marks, 0))
		assert.Equal(t, "One", sectionAt(marks, marks[0].offset))
		assert.Equal(t, "Three", sectionAt(marks, len(content)-1))
	})

	t.Run("bare hash line ignored", func(t *testing.T) {
		assert.Empty(t, scanSections("#\ntext\n##   \n"))
	})
}
