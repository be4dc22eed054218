package query

import (
	"strings"

	"github.com/calenlabs/ragbook/core"
)

// Mode is the answering path chosen for a request. It is a closed set:
// exactly NormalMode or SelectedTextMode.
type Mode interface {
	Tag() core.Mode
	question() string
}

// NormalMode retrieves context from the vector store before generation.
type NormalMode struct {
	Question string
}

// SelectedTextMode answers about a caller-supplied excerpt; retrieval is
// bypassed entirely.
type SelectedTextMode struct {
	Question string
	Excerpt  string
}

func (m NormalMode) Tag() core.Mode       { return core.ModeNormalRAG }
func (m NormalMode) question() string     { return m.Question }
func (m SelectedTextMode) Tag() core.Mode { return core.ModeSelectedText }
func (m SelectedTextMode) question() string {
	return m.Question
}

// SelectMode chooses the answering mode for a query. The rule is
// deterministic: a selectedText value that is non-empty after trimming
// whitespace selects SelectedTextMode, anything else selects NormalMode.
func SelectMode(q core.Query) Mode {
	excerpt := strings.TrimSpace(q.SelectedText)
	if excerpt != "" {
		return SelectedTextMode{Question: q.Question, Excerpt: excerpt}
	}
	return NormalMode{Question: q.Question}
}
