package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bubblewire/bubblewire/internal/bubble"
	"github.com/bubblewire/bubblewire/internal/llm"
	"github.com/bubblewire/bubblewire/internal/prompts"
	"github.com/bubblewire/bubblewire/internal/validate"
)

// DefaultRetryBackoff is the fixed pause before the single retry of the
// initial stream creation.
const DefaultRetryBackoff = 500 * time.Millisecond

// SurveySource provides the externally owned survey contract for a session.
// Fetched once per request, before validation; read-only to the pipeline.
type SurveySource interface {
	ActiveSurveyContext(ctx context.Context, sessionID string) (*validate.SurveyQuestionContext, error)
}

// BubbleSink receives each emitted bubble for storage. The pipeline invokes
// it fire-and-forget; implementations log their own failures.
type BubbleSink interface {
	SaveBubble(sessionID string, b bubble.Bubble)
}

// Options tune one Pipeline instance.
type Options struct {
	PaceInterval time.Duration
	RetryBackoff time.Duration
	Phrases      validate.PhrasePolicy
}

// Pipeline is the streaming orchestration core: one instance per process,
// one run per conversational turn, no shared mutable state across runs.
type Pipeline struct {
	backend llm.Client
	surveys SurveySource
	sink    BubbleSink

	mu   sync.RWMutex
	opts Options
}

func NewPipeline(backend llm.Client, surveys SurveySource, sink BubbleSink, opts Options) *Pipeline {
	normalizeOptions(&opts)
	return &Pipeline{backend: backend, surveys: surveys, sink: sink, opts: opts}
}

func normalizeOptions(opts *Options) {
	if opts.PaceInterval == 0 {
		opts.PaceInterval = DefaultPaceInterval
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if len(opts.Phrases.Enumerated) == 0 && len(opts.Phrases.YesNo) == 0 && len(opts.Phrases.HelpMenu) == 0 {
		opts.Phrases = validate.DefaultPhrasePolicy()
	}
}

// SetOptions replaces the tuning at runtime (config hot reload). Runs already
// in flight keep the options they started with.
func (p *Pipeline) SetOptions(opts Options) {
	normalizeOptions(&opts)
	p.mu.Lock()
	p.opts = opts
	p.mu.Unlock()
}

func (p *Pipeline) options() Options {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opts
}

// GenerateRequest is the inbound call contract for one turn.
type GenerateRequest struct {
	UserMessage string
	SessionID   string
	History     []llm.Message
	System      string
	Config      llm.GenerationConfig
}

// Generate starts one run and returns its event channel. The channel closes
// after the terminal complete event, after a fatal error event, or as soon as
// ctx ends. Stream creation happens inside the run: a transient failure is
// retried once, a second failure surfaces as an error event.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)
	go p.run(ctx, req, out)
	return out
}

func (p *Pipeline) openStream(ctx context.Context, req GenerateRequest) (<-chan llm.Delta, error) {
	llmReq := p.backendRequest(req, req.UserMessage)
	deltas, err := p.backend.CreateStream(ctx, llmReq)
	if err == nil {
		return deltas, nil
	}
	slog.Warn("stream creation failed, retrying once", "sessionId", req.SessionID, "error", err)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.options().RetryBackoff):
	}
	return p.backend.CreateStream(ctx, llmReq)
}

func (p *Pipeline) backendRequest(req GenerateRequest, userMessage string) llm.Request {
	system := req.System
	if system == "" {
		system = prompts.System()
	}
	return llm.Request{
		System:      system,
		History:     req.History,
		UserMessage: userMessage,
		Config:      req.Config,
	}
}

func (p *Pipeline) run(ctx context.Context, req GenerateRequest, out chan<- StreamEvent) {
	defer close(out)

	log := slog.With("runId", uuid.NewString(), "sessionId", req.SessionID)
	opts := p.options()
	pacer := &Pacer{Interval: opts.PaceInterval}
	acc := &Accumulator{}
	detector := &Detector{}
	emitted := 0

	// Safety net: the caller must never see a raw panic, only a well-formed
	// apology followed by the completion marker.
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic recovered", "panic", r)
			select {
			case out <- BubbleEvent(bubble.Text(apologyText)):
				select {
				case out <- CompleteEvent():
				case <-ctx.Done():
				}
			case <-ctx.Done():
			}
		}
	}()

	emit := func(b bubble.Bubble) bool {
		if err := pacer.Wait(ctx); err != nil {
			return false
		}
		select {
		case out <- BubbleEvent(b):
			pacer.Mark()
			if p.sink != nil {
				saved := b
				go p.sink.SaveBubble(req.SessionID, saved)
			}
			return true
		case <-ctx.Done():
			return false
		}
	}

	deltas, err := p.openStream(ctx, req)
	if err != nil {
		// Both creation attempts failed; the run ends with a fatal error
		// event instead of a complete marker.
		log.Error("stream creation failed permanently", "error", err)
		select {
		case out <- ErrorEvent(err.Error()):
		case <-ctx.Done():
		}
		return
	}

streaming:
	for delta := range deltas {
		if ctx.Err() != nil {
			go drain(deltas)
			return
		}
		switch delta.Type {
		case "text":
			acc.Append(delta.Text)
		case "error":
			// Mid-stream failure is non-fatal: finalize with whatever
			// arrived; salvage covers the rest.
			log.Warn("backend stream error", "error", delta.Err)
			go drain(deltas)
			break streaming
		default:
			continue
		}

		if !detector.Should(delta.Text, acc.Snapshot()) {
			continue
		}
		candidates, settled := ParseBestEffort(acc.Snapshot())
		if candidates == nil {
			continue
		}
		if !settled && len(candidates) > 0 {
			// The final element may close only because the repair pass
			// closed it; treat it as still in flight.
			candidates = candidates[:len(candidates)-1]
		}
		for emitted < len(candidates) {
			next := candidates[emitted]
			// Choice bubbles are deferred to finalization wholesale: a
			// partially streamed options array can classify complete too
			// early. Holding later bubbles back too keeps indices
			// strictly increasing with no gaps.
			if next.MessageType.IsChoice() {
				break
			}
			if !bubble.IsComplete(next) {
				break
			}
			if !emit(next) {
				return
			}
			emitted++
		}
	}

	if ctx.Err() != nil {
		return
	}

	doc, err := ParseAuthoritative(acc.Snapshot())
	if err != nil {
		log.Warn("authoritative parse failed, salvaging", "error", err, "buffered", acc.Len())
		doc = Salvage(acc.Snapshot())
	} else {
		doc = p.validated(ctx, req, doc, log)
	}

	for i := emitted; i < len(doc.Bubbles); i++ {
		if !emit(doc.Bubbles[i]) {
			return
		}
	}

	select {
	case out <- CompleteEvent():
	case <-ctx.Done():
	}
}

// drain keeps the upstream producer from blocking on an abandoned channel.
func drain(deltas <-chan llm.Delta) {
	for range deltas {
	}
}
