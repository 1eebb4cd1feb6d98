package chat

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ai-tutor/internal/render"
)

// ReconcilerState tracks one in-flight assistant turn on the client
// side of the channel.
type ReconcilerState int

const (
	StateEmpty ReconcilerState = iota
	StateStreaming
	StateFinalizing
	StateFinalized
)

// Container is one rendered assistant turn. PlaceholderID is transient;
// TurnID is zero until the finalize notification re-anchors it.
type Container struct {
	PlaceholderID string
	TurnID        int64
	HTML          string
	Format        render.Format
}

func (c *Container) durable() bool { return c.TurnID != 0 }

// ReconcilerConfig tunes the render pacing. Chunk sizes differ per
// format because HTML deltas carry markup overhead per visible char.
type ReconcilerConfig struct {
	MarkdownChunk int
	HTMLChunk     int
	Tick          time.Duration
	IdleFlush     time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		MarkdownChunk: 24,
		HTMLChunk:     128,
		Tick:          60 * time.Millisecond,
		IdleFlush:     300 * time.Millisecond,
	}
}

// Reconciler assembles streamed deltas into rendered containers and
// later re-anchors them to durable turn identifiers. Deltas go into a
// raw buffer; Tick moves bounded chunks into the visible buffer and
// re-renders it through the same pipeline used at persistence time, so
// the stream preview approximates the final rendering.
type Reconciler struct {
	mu  sync.Mutex
	cfg ReconcilerConfig

	state      ReconcilerState
	containers []*Container
	active     *Container

	raw       string
	visible   string
	lastDelta time.Time
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.MarkdownChunk <= 0 || cfg.HTMLChunk <= 0 {
		cfg = DefaultReconcilerConfig()
	}
	return &Reconciler{cfg: cfg}
}

func (r *Reconciler) State() ReconcilerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Containers returns the rendered turns in creation order.
func (r *Reconciler) Containers() []*Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Container, len(r.containers))
	copy(out, r.containers)
	return out
}

// AppendDelta buffers one streamed fragment. The first delta of a turn
// creates a container under a transient placeholder id. An HTML format
// hint switches the container to HTML for the rest of the turn; the
// format never reverts to markdown mid-turn.
func (r *Reconciler) AppendDelta(text string, format render.Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateEmpty || r.state == StateFinalized {
		r.active = &Container{
			PlaceholderID: uuid.NewString(),
			Format:        render.FormatMarkdown,
		}
		r.containers = append(r.containers, r.active)
		r.raw = ""
		r.visible = ""
		r.state = StateStreaming
	}
	if format == render.FormatHTML {
		r.active.Format = render.FormatHTML
	}
	r.raw += text
	r.lastDelta = time.Now()
}

// Tick moves one chunk from the raw buffer to the visible buffer and
// re-renders. If no delta has arrived within the idle window the whole
// remainder is flushed, so a stalled producer still yields a complete
// render.
func (r *Reconciler) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateStreaming || r.active == nil {
		return
	}
	if now.Sub(r.lastDelta) >= r.cfg.IdleFlush {
		r.drainLocked()
		return
	}
	chunk := r.cfg.MarkdownChunk
	if r.active.Format == render.FormatHTML {
		chunk = r.cfg.HTMLChunk
	}
	if len(r.raw) < chunk {
		chunk = len(r.raw)
	}
	// Never cut a rune in half: the intermediate render must see valid
	// UTF-8.
	for chunk > 0 && chunk < len(r.raw) && !utf8.RuneStart(r.raw[chunk]) {
		chunk--
	}
	if chunk == 0 {
		return
	}
	r.visible += r.raw[:chunk]
	r.raw = r.raw[chunk:]
	r.active.HTML = render.HTML(r.visible)
}

// FinishStream drains any remaining buffered text in one final pass.
func (r *Reconciler) FinishStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateStreaming {
		return
	}
	r.drainLocked()
	r.state = StateFinalizing
}

func (r *Reconciler) drainLocked() {
	if r.raw != "" {
		r.visible += r.raw
		r.raw = ""
	}
	if r.active != nil {
		r.active.HTML = render.HTML(r.visible)
	}
}

// Finalize re-anchors the active container to the durable turn id. If
// no container is currently the active placeholder it falls back to the
// most recent container lacking a durable id. Returns false when no
// container could adopt the id.
func (r *Reconciler) Finalize(turnID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.active
	if target == nil || target.durable() {
		target = nil
		for i := len(r.containers) - 1; i >= 0; i-- {
			if !r.containers[i].durable() {
				target = r.containers[i]
				break
			}
		}
	}
	if target == nil {
		return false
	}
	target.TurnID = turnID
	target.PlaceholderID = ""
	r.active = nil
	r.state = StateFinalized
	return true
}

// Run drives Tick on a wall-clock ticker until done is closed.
func (r *Reconciler) Run(done <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			r.Tick(now)
		}
	}
}
