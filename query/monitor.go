package query

import (
	"time"

	"github.com/calenlabs/ragbook/core"
)

// Monitor provides hooks to observe the answering process.
// Implement this interface to track intermediate steps during a query.
type Monitor interface {
	Start(question string)
	ModeSelected(mode core.Mode)
	AfterRetrieval(hits []core.Hit, kept int)
	AfterGeneration(answer string, elapsed time.Duration)
	Finish(answer *core.Answer)
}

// noopMonitor is a no-op implementation of Monitor.
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                            {}
func (n *noopMonitor) ModeSelected(_ core.Mode)                  {}
func (n *noopMonitor) AfterRetrieval(_ []core.Hit, _ int)        {}
func (n *noopMonitor) AfterGeneration(_ string, _ time.Duration) {}
func (n *noopMonitor) Finish(_ *core.Answer)                     {}
