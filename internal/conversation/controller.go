// Package conversation coordinates the spoken turn-taking loop: segmented
// listening, transcription, reply generation, playback, and barge-in.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/speech"
)

type eventKind int

const (
	evSpeechStarted eventKind = iota + 1
	evSegment
	evSegmentEmpty
	evTranscript
	evReply
	evPlaybackStarted
	evPlaybackEnded
	evPlaybackError
	evResumed
	evListenerError
)

// event is one item on the controller's serialized queue. Every async callback
// posts here; only the Run loop consumes, so handlers never race.
type event struct {
	kind    eventKind
	seq     int
	segment audio.Segment
	text    string
	err     error
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State          fsm.State
	SessionID      string
	Turns          int
	LastTranscript string
	LastReply      string
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Snapshot is the externally visible conversation state.
type Snapshot struct {
	State          fsm.State
	SessionID      string
	Turns          int
	LastTranscript string
	LastReply      string
}

// noopIndicator preserves conversation flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ConversationStarted(context.Context)    {}
func (noopIndicator) ConversationStopped(context.Context)    {}
func (noopIndicator) ShowTranscript(context.Context, string) {}
func (noopIndicator) ShowReply(context.Context, string)      {}
func (noopIndicator) ShowError(context.Context, string)      {}

// ControllerConfig carries conversation controller construction parameters.
type ControllerConfig struct {
	Logger      *slog.Logger
	Transcriber Transcriber
	Generator   Generator
	Indicator   indicator.Controller
	NewListener ListenerFactory
	NewSpeaker  SpeakerFactory
	ResumeDelay time.Duration
	Once        bool
}

// Controller owns one conversation lifecycle. All turn-taking decisions run on
// a single goroutine inside Run; Handle and Snapshot are safe from any
// goroutine.
type Controller struct {
	logger      *slog.Logger
	transcriber Transcriber
	generator   Generator
	indicator   indicator.Controller
	newListener ListenerFactory
	newSpeaker  SpeakerFactory
	resumeDelay time.Duration
	once        bool
	sessionID   string

	events       chan event
	stopRequests chan struct{}
	closed       chan struct{}

	mu             sync.RWMutex
	state          fsm.State
	turns          int
	lastTranscript string
	lastReply      string

	// Loop-owned fields, never touched outside Run.
	speaker   Speaker
	pending   *audio.Segment
	cycleOpen bool
	finished  bool
}

// NewController constructs a conversation controller with safe default
// fallbacks for optional collaborators.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ind := cfg.Indicator
	if ind == nil {
		ind = noopIndicator{}
	}
	resumeDelay := cfg.ResumeDelay
	if resumeDelay <= 0 {
		resumeDelay = 5 * time.Second
	}

	return &Controller{
		logger:       logger,
		transcriber:  cfg.Transcriber,
		generator:    cfg.Generator,
		indicator:    ind,
		newListener:  cfg.NewListener,
		newSpeaker:   cfg.NewSpeaker,
		resumeDelay:  resumeDelay,
		once:         cfg.Once,
		sessionID:    uuid.NewString(),
		events:       make(chan event, 16),
		stopRequests: make(chan struct{}, 1),
		closed:       make(chan struct{}),
		state:        fsm.StateIdle,
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the externally visible conversation state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		State:          c.state,
		SessionID:      c.sessionID,
		Turns:          c.turns,
		LastTranscript: c.lastTranscript,
		LastReply:      c.lastReply,
	}
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(ev fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, ev)
	if err != nil {
		return err
	}
	if next != c.state {
		c.logger.Debug("state change",
			slog.String("session_id", c.sessionID),
			slog.String("from", string(c.state)),
			slog.String("to", string(next)),
			slog.String("event", string(ev)))
	}
	c.state = next
	return nil
}

// Run executes one conversation lifecycle from start to stop or failure.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{SessionID: c.sessionID, StartedAt: time.Now()}

	if c.transcriber == nil || c.generator == nil || c.newListener == nil || c.newSpeaker == nil {
		result.Err = errors.New("conversation controller missing required wiring")
		result.State = c.State()
		result.FinishedAt = time.Now()
		return result
	}

	if err := c.transition(fsm.EventStart); err != nil {
		result.State = c.State()
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}

	c.indicator.ConversationStarted(ctx)
	c.logger.Info("conversation started", slog.String("session_id", c.sessionID))

	c.speaker = c.newSpeaker(speech.Events{
		OnStarted: func() { c.post(event{kind: evPlaybackStarted}) },
		OnEnded:   func() { c.post(event{kind: evPlaybackEnded}) },
		OnError:   func(err error) { c.post(event{kind: evPlaybackError, err: err}) },
		OnResumed: func() { c.post(event{kind: evResumed}) },
	})

	listener := c.newListener(audio.SegmentHooks{
		OnSegmentStart: func(seq int) { c.post(event{kind: evSpeechStarted, seq: seq}) },
		OnSegment:      func(segment audio.Segment) { c.post(event{kind: evSegment, segment: segment}) },
		OnEmpty:        func(seq int) { c.post(event{kind: evSegmentEmpty, seq: seq}) },
		OnError:        func(err error) { c.post(event{kind: evListenerError, err: err}) },
	})

	listenerErr := make(chan error, 1)
	go func() { listenerErr <- listener.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			c.shutdown(listener)
			result.Err = ctx.Err()
			return c.fill(result)
		case err := <-listenerErr:
			listenerErr = nil
			if err != nil {
				c.indicator.ShowError(context.Background(), "Microphone unavailable")
				c.logger.Error("listener failed",
					slog.String("session_id", c.sessionID),
					slog.String("error", err.Error()))
				c.shutdown(listener)
				result.Err = err
				return c.fill(result)
			}
		case <-c.stopRequests:
			c.shutdown(listener)
			return c.fill(result)
		case ev := <-c.events:
			c.dispatch(ctx, ev)
			if c.finished {
				c.shutdown(listener)
				return c.fill(result)
			}
		}
	}
}

// fill stamps the shared fields into a finished result.
func (c *Controller) fill(result Result) Result {
	snap := c.Snapshot()
	result.State = snap.State
	result.Turns = snap.Turns
	result.LastTranscript = snap.LastTranscript
	result.LastReply = snap.LastReply
	result.FinishedAt = time.Now()
	return result
}

// post delivers one event to the Run loop, dropping it once the loop has
// exited so straggling callbacks never block.
func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

// dispatch handles one serialized event. It runs only on the Run goroutine.
func (c *Controller) dispatch(ctx context.Context, ev event) {
	switch ev.kind {
	case evSpeechStarted:
		c.handleSpeechStarted()
	case evSegment:
		c.handleSegment(ctx, ev.segment)
	case evListenerError:
		c.indicator.ShowError(context.Background(), "Microphone unavailable")
		c.logger.Error("capture failed",
			slog.String("session_id", c.sessionID),
			slog.String("error", ev.err.Error()))
		c.finished = true
	case evSegmentEmpty:
		c.indicator.ShowError(context.Background(), "No audio captured")
		c.logger.Warn("empty segment",
			slog.String("session_id", c.sessionID),
			slog.Int("seq", ev.seq),
			slog.String("error", audio.ErrEmptyAudio.Error()))
		if c.State() == fsm.StateListening {
			_ = c.transition(fsm.EventSegmentEmpty)
		}
	case evTranscript:
		c.handleTranscript(ctx, ev.text, ev.err)
	case evReply:
		c.handleReply(ctx, ev.text, ev.err)
	case evPlaybackStarted:
		// Playback start needs no transition; the reply event already moved
		// the machine to speaking.
	case evPlaybackEnded:
		if err := c.transition(fsm.EventPlaybackDone); err == nil {
			c.endCycle(ctx)
		}
	case evPlaybackError:
		msg := "Speech playback failed"
		if ev.err != nil {
			c.logger.Error("playback failed",
				slog.String("session_id", c.sessionID),
				slog.String("error", ev.err.Error()))
		}
		c.indicator.ShowError(context.Background(), msg)
		if err := c.transition(fsm.EventPlaybackFailed); err == nil {
			c.endCycle(ctx)
		}
	case evResumed:
		_ = c.transition(fsm.EventResume)
	}
}

// handleSpeechStarted pauses playback on barge-in and arms the resume timer.
// Every fresh barge-in supersedes a pending resume.
func (c *Controller) handleSpeechStarted() {
	switch c.State() {
	case fsm.StateSpeaking:
		c.speaker.Pause()
		c.speaker.ResumeAfter(c.resumeDelay)
		_ = c.transition(fsm.EventBargeIn)
		c.logger.Info("barge-in", slog.String("session_id", c.sessionID))
	case fsm.StateSpeakingPaused:
		c.speaker.ResumeAfter(c.resumeDelay)
		_ = c.transition(fsm.EventBargeIn)
	}
}

// handleSegment starts transcription when listening, otherwise parks the
// segment. Only the newest parked segment survives.
func (c *Controller) handleSegment(ctx context.Context, segment audio.Segment) {
	if c.State() != fsm.StateListening {
		c.pending = &segment
		return
	}
	c.beginTranscribe(ctx, segment)
}

// beginTranscribe moves to transcribing and runs the transcriber off-loop.
func (c *Controller) beginTranscribe(ctx context.Context, segment audio.Segment) {
	if err := c.transition(fsm.EventSegmentReady); err != nil {
		return
	}
	c.cycleOpen = true
	go func() {
		text, err := c.transcriber.Transcribe(ctx, segment)
		c.post(event{kind: evTranscript, seq: segment.Seq, text: text, err: err})
	}()
}

// handleTranscript routes one transcription outcome.
func (c *Controller) handleTranscript(ctx context.Context, text string, err error) {
	if err != nil {
		c.indicator.ShowError(context.Background(), "Transcription failed")
		c.logger.Error("transcription failed",
			slog.String("session_id", c.sessionID),
			slog.String("error", err.Error()))
		_ = c.transition(fsm.EventTranscriptFailed)
		c.endCycle(ctx)
		return
	}

	if strings.TrimSpace(text) == "" {
		_ = c.transition(fsm.EventTranscriptEmpty)
		c.endCycle(ctx)
		return
	}

	c.mu.Lock()
	c.lastTranscript = text
	c.mu.Unlock()
	c.indicator.ShowTranscript(ctx, text)
	c.logger.Info("transcript",
		slog.String("session_id", c.sessionID),
		slog.Int("chars", len(text)))

	if err := c.transition(fsm.EventTranscript); err != nil {
		return
	}
	go func() {
		reply, genErr := c.generator.Generate(ctx, text)
		c.post(event{kind: evReply, text: reply, err: genErr})
	}()
}

// handleReply routes one generation outcome and starts playback.
func (c *Controller) handleReply(ctx context.Context, reply string, err error) {
	if err != nil {
		c.indicator.ShowError(context.Background(), "Reply generation failed")
		c.logger.Error("generation failed",
			slog.String("session_id", c.sessionID),
			slog.String("error", err.Error()))
		_ = c.transition(fsm.EventReplyFailed)
		c.endCycle(ctx)
		return
	}

	if strings.TrimSpace(reply) == "" {
		_ = c.transition(fsm.EventReplyFailed)
		c.endCycle(ctx)
		return
	}

	c.mu.Lock()
	c.lastReply = reply
	c.turns++
	c.mu.Unlock()
	c.indicator.ShowReply(ctx, reply)
	c.logger.Info("reply",
		slog.String("session_id", c.sessionID),
		slog.Int("chars", len(reply)))

	if err := c.transition(fsm.EventReply); err != nil {
		return
	}
	if !c.speaker.Speak(reply) {
		_ = c.transition(fsm.EventPlaybackDone)
		c.endCycle(ctx)
	}
}

// endCycle closes one utterance cycle: back to listening, drain any parked
// segment, and finish the run when operating in single-exchange mode.
func (c *Controller) endCycle(ctx context.Context) {
	wasOpen := c.cycleOpen
	c.cycleOpen = false
	if c.once && wasOpen {
		c.finished = true
		return
	}
	c.drainPending(ctx)
}

// drainPending promotes the newest parked segment once listening again.
func (c *Controller) drainPending(ctx context.Context) {
	if c.pending == nil || c.State() != fsm.StateListening {
		return
	}
	segment := *c.pending
	c.pending = nil
	c.beginTranscribe(ctx, segment)
}

// shutdown tears the lifecycle down in a fixed order: silence playback, stop
// capture, seal the event queue, reset the machine, notify.
func (c *Controller) shutdown(listener Listener) {
	c.speaker.Cancel()
	listener.Stop()
	close(c.closed)
	_ = c.transition(fsm.EventStop)

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	c.indicator.ConversationStopped(cleanupCtx)
	c.logger.Info("conversation stopped",
		slog.String("session_id", c.sessionID),
		slog.Int("turns", c.Snapshot().Turns))
}

// Handle serves IPC commands for the active conversation.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		snap := c.Snapshot()
		return ipc.Response{
			OK:         true,
			State:      string(snap.State),
			Message:    "status",
			Transcript: snap.LastTranscript,
			Reply:      snap.LastReply,
		}
	case "stop":
		state := c.State()
		if state == fsm.StateIdle {
			return ipc.Response{OK: false, State: string(state), Error: "no conversation in progress"}
		}
		select {
		case c.stopRequests <- struct{}{}:
			return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
		default:
			return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
		}
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}
