package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calenlabs/ragbook/ai"
	"github.com/calenlabs/ragbook/ai/mock"
	"github.com/calenlabs/ragbook/core"
	"github.com/calenlabs/ragbook/vectorstore"
)

// fakeStore returns canned hits and records search calls.
type fakeStore struct {
	mu          sync.Mutex
	hits        []core.Hit
	searchErr   error
	searchCalls int
	lastTopK    int
}

var _ vectorstore.Store = (*fakeStore)(nil)

func (f *fakeStore) EnsureCollection(context.Context, string, int) error { return nil }
func (f *fakeStore) DeleteCollection(context.Context, string) error      { return nil }
func (f *fakeStore) Upsert(context.Context, string, []core.Record) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ string, _ []float32, topK int) ([]core.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastTopK = topK
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeStore) Info(context.Context, string) (*vectorstore.CollectionInfo, error) {
	return nil, vectorstore.ErrCollectionNotFound
}

func (f *fakeStore) Close() error { return nil }

func hit(source, section, text string, score float32) core.Hit {
	return core.Hit{
		Payload: core.Payload{
			Text:    text,
			Source:  source,
			Section: section,
		},
		Score: score,
	}
}

func newTestOrchestrator(t *testing.T, store vectorstore.Store, opts ...Option) (*Orchestrator, *mock.Provider) {
	t.Helper()
	provider := mock.NewProvider().(*mock.Provider)
	o, err := NewOrchestrator(provider, store, "docs", opts...)
	require.NoError(t, err)
	return o, provider
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name  string
		query core.Query
		want  core.Mode
	}{
		{"no selected text", core.Query{Question: "q"}, core.ModeNormalRAG},
		{"whitespace selected text", core.Query{Question: "q", SelectedText: "  \n\t "}, core.ModeNormalRAG},
		{"selected text present", core.Query{Question: "q", SelectedText: "an excerpt"}, core.ModeSelectedText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMode(tt.query).Tag())
		})
	}

	t.Run("excerpt is trimmed", func(t *testing.T) {
		mode := SelectMode(core.Query{Question: "q", SelectedText: "  text  "})
		selected, ok := mode.(SelectedTextMode)
		require.True(t, ok)
		assert.Equal(t, "text", selected.Excerpt)
	})
}

func TestNewOrchestrator_Validation(t *testing.T) {
	provider := mock.NewProvider()
	store := &fakeStore{}

	_, err := NewOrchestrator(nil, store, "docs")
	assert.ErrorIs(t, err, ErrProviderRequired)

	_, err = NewOrchestrator(provider, nil, "docs")
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewOrchestrator(provider, store, "")
	assert.ErrorIs(t, err, ErrCollectionRequired)

	_, err = NewOrchestrator(provider, store, "docs", WithTopK(0))
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestAnswer_ValidationBeforeProviderCalls(t *testing.T) {
	store := &fakeStore{}
	o, provider := newTestOrchestrator(t, store)

	tests := []string{"", "   ", "\n\t"}
	for _, question := range tests {
		_, err := o.Answer(context.Background(), core.Query{Question: question})
		assert.ErrorIs(t, err, core.ErrValidation)
	}

	assert.Equal(t, 0, provider.GetEmbedder().CallCount())
	assert.Equal(t, 0, provider.GetGenerator().CallCount())
	assert.Equal(t, 0, store.searchCalls)
}

func TestAnswer_NormalMode(t *testing.T) {
	store := &fakeStore{hits: []core.Hit{
		hit("ch1/intro.md", "Introduction", "robots are machines", 0.91),
		hit("ch2/sensors.md", "Sensors", "lidar measures distance", 0.84),
	}}
	o, provider := newTestOrchestrator(t, store)

	answer, err := o.Answer(context.Background(), core.Query{Question: "what is a robot?"})
	require.NoError(t, err)

	assert.Equal(t, core.ModeNormalRAG, answer.Mode)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "ch1/intro.md", answer.Sources[0].Source)
	assert.Equal(t, "Introduction", answer.Sources[0].Section)
	assert.Equal(t, float32(0.91), answer.Sources[0].Score)
	assert.Equal(t, "ch2/sensors.md", answer.Sources[1].Source)
	assert.NotEmpty(t, answer.Answer)
	assert.GreaterOrEqual(t, answer.ResponseTimeMS, int64(0))

	// Retrieval uses the query task hint and the configured topK.
	assert.Equal(t, ai.TaskQuery, provider.GetEmbedder().LastTask())
	assert.Equal(t, defaultTopK, store.lastTopK)

	// The prompt carries the context blocks and the question.
	prompt := provider.GetGenerator().LastPrompt()
	assert.Contains(t, prompt, "Context:")
	assert.Contains(t, prompt, "[ch1/intro.md - Introduction]\nrobots are machines")
	assert.Contains(t, prompt, "Question:\nwhat is a robot?")
	assert.NotContains(t, prompt, "Highlighted Text:")
}

func TestAnswer_SelectedTextMode(t *testing.T) {
	store := &fakeStore{hits: []core.Hit{
		hit("ch1/intro.md", "Introduction", "should not be retrieved", 0.9),
	}}
	o, provider := newTestOrchestrator(t, store)

	answer, err := o.Answer(context.Background(), core.Query{
		Question:     "explain this passage",
		SelectedText: "  inverse kinematics maps pose to joint angles  ",
	})
	require.NoError(t, err)

	assert.Equal(t, core.ModeSelectedText, answer.Mode)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources, "selected text answers carry no citations")

	// Retrieval is bypassed entirely.
	assert.Equal(t, 0, store.searchCalls)
	assert.Equal(t, 0, provider.GetEmbedder().CallCount())

	prompt := provider.GetGenerator().LastPrompt()
	assert.Contains(t, prompt, "Highlighted Text:\ninverse kinematics maps pose to joint angles")
	assert.NotContains(t, prompt, "Context:")
}

func TestAnswer_RelevanceFloor(t *testing.T) {
	t.Run("drops hits below floor", func(t *testing.T) {
		store := &fakeStore{hits: []core.Hit{
			hit("keep.md", "A", "kept text", 0.8),
			hit("drop.md", "B", "dropped text", 0.2),
		}}
		o, provider := newTestOrchestrator(t, store, WithRelevanceFloor(0.5))

		answer, err := o.Answer(context.Background(), core.Query{Question: "q"})
		require.NoError(t, err)

		require.Len(t, answer.Sources, 1)
		assert.Equal(t, "keep.md", answer.Sources[0].Source)
		assert.NotContains(t, provider.GetGenerator().LastPrompt(), "dropped text")
	})

	t.Run("nothing above floor still answers", func(t *testing.T) {
		store := &fakeStore{hits: []core.Hit{
			hit("weak.md", "A", "barely related", 0.1),
		}}
		o, provider := newTestOrchestrator(t, store, WithRelevanceFloor(0.5))

		answer, err := o.Answer(context.Background(), core.Query{Question: "q"})
		require.NoError(t, err)

		assert.NotNil(t, answer.Sources)
		assert.Empty(t, answer.Sources)
		assert.Equal(t, 1, provider.GetGenerator().CallCount(), "generation still runs")
		assert.NotContains(t, provider.GetGenerator().LastPrompt(), "barely related")
	})

	t.Run("empty retrieval still answers", func(t *testing.T) {
		store := &fakeStore{}
		o, provider := newTestOrchestrator(t, store)

		answer, err := o.Answer(context.Background(), core.Query{Question: "q"})
		require.NoError(t, err)

		assert.Empty(t, answer.Sources)
		assert.Equal(t, 1, provider.GetGenerator().CallCount())
	})
}

func TestAnswer_CitationShaping(t *testing.T) {
	longText := strings.Repeat("x", 300)
	store := &fakeStore{hits: []core.Hit{
		hit("a.md", "S", longText, 0.87654),
	}}
	o, _ := newTestOrchestrator(t, store)

	answer, err := o.Answer(context.Background(), core.Query{Question: "q"})
	require.NoError(t, err)

	require.Len(t, answer.Sources, 1)
	assert.Len(t, []rune(answer.Sources[0].ChunkText), 200)
	assert.Equal(t, float32(0.877), answer.Sources[0].Score)
}

func TestAnswer_MaxContextLength(t *testing.T) {
	store := &fakeStore{hits: []core.Hit{
		hit("a.md", "S", strings.Repeat("long context ", 500), 0.9),
	}}
	o, provider := newTestOrchestrator(t, store, WithMaxContextLength(100))

	_, err := o.Answer(context.Background(), core.Query{Question: "q"})
	require.NoError(t, err)

	assert.LessOrEqual(t, len([]rune(provider.GetGenerator().LastPrompt())), 100)
}

func TestAnswer_ErrorPassthrough(t *testing.T) {
	t.Run("search failure", func(t *testing.T) {
		store := &fakeStore{searchErr: errors.New("store down")}
		o, provider := newTestOrchestrator(t, store)

		_, err := o.Answer(context.Background(), core.Query{Question: "q"})
		assert.ErrorIs(t, err, store.searchErr)
		assert.Equal(t, 0, provider.GetGenerator().CallCount())
	})

	t.Run("embedding failure", func(t *testing.T) {
		store := &fakeStore{}
		o, provider := newTestOrchestrator(t, store)

		boom := errors.New("embedder down")
		provider.GetEmbedder().EmbedTextsFunc = func(context.Context, []string, ai.Task) ([][]float32, error) {
			return nil, boom
		}

		_, err := o.Answer(context.Background(), core.Query{Question: "q"})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, store.searchCalls)
	})

	t.Run("generation failure", func(t *testing.T) {
		store := &fakeStore{hits: []core.Hit{hit("a.md", "S", "text", 0.9)}}
		o, provider := newTestOrchestrator(t, store)

		boom := errors.New("generator down")
		provider.GetGenerator().GenerateFunc = func(context.Context, string) (string, error) {
			return "", boom
		}

		_, err := o.Answer(context.Background(), core.Query{Question: "q"})
		assert.ErrorIs(t, err, boom)
	})
}

// recordingMonitor captures every callback for assertions.
type recordingMonitor struct {
	started   string
	mode      core.Mode
	retrieved int
	kept      int
	generated string
	finished  *core.Answer
	elapsed   time.Duration
}

var _ Monitor = (*recordingMonitor)(nil)

func (r *recordingMonitor) Start(question string) { r.started = question }
func (r *recordingMonitor) ModeSelected(mode core.Mode) {
	r.mode = mode
}
func (r *recordingMonitor) AfterRetrieval(hits []core.Hit, kept int) {
	r.retrieved = len(hits)
	r.kept = kept
}
func (r *recordingMonitor) AfterGeneration(answer string, elapsed time.Duration) {
	r.generated = answer
	r.elapsed = elapsed
}
func (r *recordingMonitor) Finish(answer *core.Answer) { r.finished = answer }

func TestAnswerWithMonitor(t *testing.T) {
	store := &fakeStore{hits: []core.Hit{
		hit("a.md", "S", "strong", 0.9),
		hit("b.md", "S", "weak", 0.1),
	}}
	o, _ := newTestOrchestrator(t, store, WithRelevanceFloor(0.5))

	monitor := &recordingMonitor{}
	answer, err := o.AnswerWithMonitor(context.Background(), core.Query{Question: "q"}, monitor)
	require.NoError(t, err)

	assert.Equal(t, "q", monitor.started)
	assert.Equal(t, core.ModeNormalRAG, monitor.mode)
	assert.Equal(t, 2, monitor.retrieved)
	assert.Equal(t, 1, monitor.kept)
	assert.NotEmpty(t, monitor.generated)
	assert.Same(t, answer, monitor.finished)
}
