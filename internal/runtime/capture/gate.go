package capture

import "sync"

// Policy decides what happens to a final transcript that arrives while a
// generation request is outstanding.
type Policy int

const (
	// DiscardWhileBusy drops the transcript.
	DiscardWhileBusy Policy = iota
	// DeferWhileBusy holds the latest transcript until the caller takes it.
	DeferWhileBusy
)

// Verdict is the gate's answer for one offered transcript.
type Verdict int

const (
	Deliver Verdict = iota
	Discarded
	Deferred
)

func (v Verdict) String() string {
	switch v {
	case Deliver:
		return "deliver"
	case Discarded:
		return "discarded"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Busy reports whether a generation request is in flight.
type Busy interface {
	InFlight() bool
}

// Gate applies a Policy to final transcripts. It keeps at most one deferred value.
type Gate struct {
	busy   Busy
	policy Policy

	mu       sync.Mutex
	deferred string
	held     bool
}

// NewGate returns a gate consulting busy.
func NewGate(busy Busy, policy Policy) *Gate {
	return &Gate{busy: busy, policy: policy}
}

// Offer classifies text. A Deliver verdict means the caller should submit it now.
func (g *Gate) Offer(text string) Verdict {
	if g.busy == nil || !g.busy.InFlight() {
		return Deliver
	}
	if g.policy != DeferWhileBusy {
		return Discarded
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deferred = text
	g.held = true
	return Deferred
}

// TakeDeferred returns the held transcript once nothing is in flight.
func (g *Gate) TakeDeferred() (string, bool) {
	if g.busy != nil && g.busy.InFlight() {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return "", false
	}
	text := g.deferred
	g.deferred = ""
	g.held = false
	return text, true
}
