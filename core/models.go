package core

import (
	"encoding/binary"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for embedding records.
// It is generated deterministically from chunk provenance so that
// re-ingesting the same corpus produces the same identifiers.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces the identical ID.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the record ID for a chunk from its owning document and
// ordinal position. The NUL separator keeps "a" + "11" distinct from "a1" + "1".
func ChunkID(source string, ordinal int) ID {
	return IDFromContent(source + "\x00" + strconv.Itoa(ordinal))
}

// Document is a named unit of source text read from the corpus.
// Immutable once read; its lifecycle is bounded to one ingestion run.
type Document struct {
	Source   string // path identifying the document within the corpus
	Filename string // base name, kept separately for citations
	Content  string
}

// Chunk is a contiguous, token-bounded window of a document's text.
type Chunk struct {
	Id           ID
	Source       string
	Filename     string
	Section      string // heading in effect at the chunk's start token
	Ordinal      int    // position of the chunk within its document
	Text         string
	TokenCount   int
	StartToken   int
	EndToken     int
	Continuation bool // true for every window after the first
}

// Payload carries the chunk attributes stored alongside a vector.
// It holds everything needed to reconstruct a citation without a
// secondary lookup, and is the JSON document persisted by the store.
type Payload struct {
	Text         string `json:"text"`
	Source       string `json:"source"`
	Filename     string `json:"filename"`
	Section      string `json:"section"`
	Ordinal      int    `json:"chunk_id"`
	TokenCount   int    `json:"token_count"`
	StartToken   int    `json:"start_token"`
	EndToken     int    `json:"end_token"`
	Continuation bool   `json:"is_continuation"`
}

// Payload converts a chunk into its stored payload form.
func (c *Chunk) Payload() Payload {
	return Payload{
		Text:         c.Text,
		Source:       c.Source,
		Filename:     c.Filename,
		Section:      c.Section,
		Ordinal:      c.Ordinal,
		TokenCount:   c.TokenCount,
		StartToken:   c.StartToken,
		EndToken:     c.EndToken,
		Continuation: c.Continuation,
	}
}

// Record is a (vector, payload) pair stored in the vector index.
type Record struct {
	Id      ID
	Vector  []float32
	Payload Payload
}

// Hit is one retrieval result: a stored payload and its similarity score.
type Hit struct {
	Payload Payload
	Score   float32
}

// Query is one user request. SelectedText is optional; its presence
// deterministically selects the answering mode.
type Query struct {
	Question     string `json:"question"`
	SelectedText string `json:"selectedText,omitempty"`
}

// Mode tags which answering path produced a response.
type Mode string

const (
	// ModeNormalRAG retrieves context by similarity search before generation.
	ModeNormalRAG Mode = "normal_rag"
	// ModeSelectedText uses caller-supplied text as context, bypassing retrieval.
	ModeSelectedText Mode = "selected_text"
)

// Source is one citation attached to an answer.
type Source struct {
	Source    string  `json:"source"`
	ChunkText string  `json:"chunk_text"`
	Score     float32 `json:"score"`
	Section   string  `json:"section"`
}

// Answer is the orchestrator's output for a single query.
type Answer struct {
	Answer         string   `json:"answer"`
	Mode           Mode     `json:"mode"`
	Sources        []Source `json:"sources"`
	ResponseTimeMS int64    `json:"response_time_ms"`
}
