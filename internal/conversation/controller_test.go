package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/speech"
)

type fakeListener struct {
	runErr error

	mu      sync.Mutex
	hooks   audio.SegmentHooks
	stopped bool
	stopCh  chan struct{}
}

func (l *fakeListener) Run(ctx context.Context) error {
	if l.runErr != nil {
		return l.runErr
	}
	select {
	case <-ctx.Done():
	case <-l.stopCh:
	}
	return nil
}

func (l *fakeListener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.stopCh)
}

func (l *fakeListener) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

type fakeSpeaker struct {
	mu      sync.Mutex
	events  speech.Events
	spoken  []string
	pauses  int
	resumes []time.Duration
	cancels int
	refuse  bool
}

func (s *fakeSpeaker) Speak(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return !s.refuse
}

func (s *fakeSpeaker) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
}

func (s *fakeSpeaker) ResumeAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes = append(s.resumes, d)
}

func (s *fakeSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *fakeSpeaker) Events() speech.Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

func (s *fakeSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *fakeSpeaker) Pauses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses
}

func (s *fakeSpeaker) Resumes() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.resumes...)
}

type fakeIndicator struct {
	mu      sync.Mutex
	started int
	stopped int
	errors  []string
}

func (f *fakeIndicator) ConversationStarted(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeIndicator) ConversationStopped(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeIndicator) ShowTranscript(context.Context, string) {}
func (f *fakeIndicator) ShowReply(context.Context, string)      {}

func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
}

func (f *fakeIndicator) Errors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errors...)
}

func (f *fakeIndicator) Counts() (started, stopped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

type harness struct {
	ctrl     *Controller
	listener *fakeListener
	speaker  *fakeSpeaker
	ind      *fakeIndicator
	results  chan Result
	cancel   context.CancelFunc
}

type harnessConfig struct {
	transcribe func(ctx context.Context, segment audio.Segment) (string, error)
	generate   func(ctx context.Context, text string) (string, error)
	once       bool
	refuse     bool
}

func startHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()

	if cfg.transcribe == nil {
		cfg.transcribe = func(context.Context, audio.Segment) (string, error) {
			return "hello there", nil
		}
	}
	if cfg.generate == nil {
		cfg.generate = func(_ context.Context, text string) (string, error) {
			return "reply to " + text, nil
		}
	}

	listener := &fakeListener{stopCh: make(chan struct{})}
	speaker := &fakeSpeaker{refuse: cfg.refuse}
	ind := &fakeIndicator{}

	ctrl := NewController(ControllerConfig{
		Transcriber: TranscribeFunc(cfg.transcribe),
		Generator:   GenerateFunc(cfg.generate),
		Indicator:   ind,
		NewListener: func(hooks audio.SegmentHooks) Listener {
			listener.mu.Lock()
			listener.hooks = hooks
			listener.mu.Unlock()
			return listener
		},
		NewSpeaker: func(events speech.Events) Speaker {
			speaker.mu.Lock()
			speaker.events = events
			speaker.mu.Unlock()
			return speaker
		},
		ResumeDelay: 40 * time.Millisecond,
		Once:        cfg.once,
	})

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan Result, 1)
	go func() { results <- ctrl.Run(ctx) }()

	h := &harness{ctrl: ctrl, listener: listener, speaker: speaker, ind: ind, results: results, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		select {
		case <-results:
		case <-time.After(2 * time.Second):
		}
	})

	h.waitState(t, fsm.StateListening)
	return h
}

func (h *harness) hooks() audio.SegmentHooks {
	h.listener.mu.Lock()
	defer h.listener.mu.Unlock()
	return h.listener.hooks
}

func (h *harness) waitState(t *testing.T, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.ctrl.State() == want
	}, 2*time.Second, 2*time.Millisecond, "waiting for state %s, at %s", want, h.ctrl.State())
}

func (h *harness) result(t *testing.T) Result {
	t.Helper()
	select {
	case result := <-h.results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
		return Result{}
	}
}

func segment(seq int) audio.Segment {
	return audio.Segment{Seq: seq, WAV: []byte{1, 2, 3, 4}, MIME: audio.SegmentMIME}
}

func TestControllerFullExchange(t *testing.T) {
	h := startHarness(t, harnessConfig{})

	h.hooks().OnSegment(segment(1))
	h.waitState(t, fsm.StateSpeaking)
	require.Equal(t, []string{"reply to hello there"}, h.speaker.Spoken())

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, status.OK)
	require.Equal(t, "hello there", status.Transcript)
	require.Equal(t, "reply to hello there", status.Reply)

	h.speaker.Events().OnEnded()
	h.waitState(t, fsm.StateListening)

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)

	result := h.result(t)
	require.NoError(t, result.Err)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, 1, result.Turns)
	require.Equal(t, "hello there", result.LastTranscript)
	require.Equal(t, "reply to hello there", result.LastReply)
	require.NotEmpty(t, result.SessionID)
	require.True(t, h.listener.Stopped())

	started, stopped := h.ind.Counts()
	require.Equal(t, 1, started)
	require.Equal(t, 1, stopped)
}

func TestControllerBargeInPausesAndResumes(t *testing.T) {
	h := startHarness(t, harnessConfig{})

	h.hooks().OnSegment(segment(1))
	h.waitState(t, fsm.StateSpeaking)

	h.hooks().OnSegmentStart(2)
	h.waitState(t, fsm.StateSpeakingPaused)
	require.Equal(t, 1, h.speaker.Pauses())
	require.Equal(t, []time.Duration{40 * time.Millisecond}, h.speaker.Resumes())

	// A fresh barge-in while paused re-arms the resume timer without a
	// second pause.
	h.hooks().OnSegmentStart(3)
	require.Eventually(t, func() bool {
		return len(h.speaker.Resumes()) == 2
	}, 2*time.Second, 2*time.Millisecond)
	require.Equal(t, 1, h.speaker.Pauses())
	require.Equal(t, fsm.StateSpeakingPaused, h.ctrl.State())

	h.speaker.Events().OnResumed()
	h.waitState(t, fsm.StateSpeaking)
}

func TestControllerPendingSegmentLatestWins(t *testing.T) {
	var mu sync.Mutex
	var seqs []int
	h := startHarness(t, harnessConfig{
		transcribe: func(_ context.Context, seg audio.Segment) (string, error) {
			mu.Lock()
			seqs = append(seqs, seg.Seq)
			mu.Unlock()
			return "turn", nil
		},
	})

	h.hooks().OnSegment(segment(1))
	h.waitState(t, fsm.StateSpeaking)

	// Parked while speaking; only the newest survives.
	h.hooks().OnSegment(segment(2))
	h.hooks().OnSegment(segment(3))

	h.speaker.Events().OnEnded()
	h.waitState(t, fsm.StateSpeaking)

	mu.Lock()
	got := append([]int(nil), seqs...)
	mu.Unlock()
	require.Equal(t, []int{1, 3}, got)
}

func TestControllerEmptyTranscriptReturnsToListening(t *testing.T) {
	transcribed := make(chan struct{}, 4)
	calls := make(chan string, 4)
	h := startHarness(t, harnessConfig{
		transcribe: func(context.Context, audio.Segment) (string, error) {
			transcribed <- struct{}{}
			return "   ", nil
		},
		generate: func(_ context.Context, text string) (string, error) {
			calls <- text
			return "never", nil
		},
	})

	h.hooks().OnSegment(segment(1))
	select {
	case <-transcribed:
	case <-time.After(2 * time.Second):
		t.Fatal("transcriber was not invoked")
	}
	h.waitState(t, fsm.StateListening)
	require.Never(t, func() bool {
		return h.ctrl.State() != fsm.StateListening || len(calls) > 0
	}, 100*time.Millisecond, 5*time.Millisecond)
	require.Empty(t, h.speaker.Spoken())
}

func TestControllerTranscriptionFailure(t *testing.T) {
	h := startHarness(t, harnessConfig{
		transcribe: func(context.Context, audio.Segment) (string, error) {
			return "", errors.New("upstream 500")
		},
	})

	h.hooks().OnSegment(segment(1))
	h.waitState(t, fsm.StateListening)
	require.Eventually(t, func() bool {
		errs := h.ind.Errors()
		return len(errs) == 1 && errs[0] == "Transcription failed"
	}, 2*time.Second, 2*time.Millisecond)
	require.Empty(t, h.speaker.Spoken())
}

func TestControllerGenerationFailure(t *testing.T) {
	h := startHarness(t, harnessConfig{
		generate: func(context.Context, string) (string, error) {
			return "", errors.New("rate limited")
		},
	})

	h.hooks().OnSegment(segment(1))
	h.waitState(t, fsm.StateListening)
	require.Eventually(t, func() bool {
		errs := h.ind.Errors()
		return len(errs) == 1 && errs[0] == "Reply generation failed"
	}, 2*time.Second, 2*time.Millisecond)
	require.Empty(t, h.speaker.Spoken())
}

func TestControllerBlankReplySkipsPlayback(t *testing.T) {
	generated := make(chan struct{}, 4)
	h := startHarness(t, harnessConfig{
		generate: func(context.Context, string) (string, error) {
			generated <- struct{}{}
			return "  ", nil
		},
	})

	h.hooks().OnSegment(segment(1))
	select {
	case <-generated:
	case <-time.After(2 * time.Second):
		t.Fatal("generator was not invoked")
	}
	h.waitState(t, fsm.StateListening)
	require.Never(t, func() bool {
		return h.ctrl.State() != fsm.StateListening || len(h.speaker.Spoken()) > 0
	}, 100*time.Millisecond, 5*time.Millisecond)
	require.Empty(t, h.ind.Errors())
}

func TestControllerPlaybackFailure(t *testing.T) {
	h := startHarness(t, harnessConfig{})

	h.hooks().OnSegment(segment(1))
	h.waitState(t, fsm.StateSpeaking)

	h.speaker.Events().OnError(errors.New("stream died"))
	h.waitState(t, fsm.StateListening)
	require.Equal(t, []string{"Speech playback failed"}, h.ind.Errors())
}

func TestControllerEmptySegmentKeepsListening(t *testing.T) {
	h := startHarness(t, harnessConfig{})

	h.hooks().OnEmpty(1)
	h.hooks().OnEmpty(2)

	require.Eventually(t, func() bool {
		return len(h.ind.Errors()) == 2
	}, 2*time.Second, 2*time.Millisecond)
	require.Equal(t, []string{"No audio captured", "No audio captured"}, h.ind.Errors())
	require.Never(t, func() bool {
		return h.ctrl.State() != fsm.StateListening
	}, 100*time.Millisecond, 5*time.Millisecond)
	require.Empty(t, h.speaker.Spoken())
}

func TestControllerListenerFailureEndsRun(t *testing.T) {
	listener := &fakeListener{
		stopCh: make(chan struct{}),
		runErr: audio.ErrMicrophoneUnavailable,
	}
	speaker := &fakeSpeaker{}
	ind := &fakeIndicator{}

	ctrl := NewController(ControllerConfig{
		Transcriber: TranscribeFunc(func(context.Context, audio.Segment) (string, error) { return "", nil }),
		Generator:   GenerateFunc(func(context.Context, string) (string, error) { return "", nil }),
		Indicator:   ind,
		NewListener: func(audio.SegmentHooks) Listener { return listener },
		NewSpeaker: func(events speech.Events) Speaker {
			speaker.events = events
			return speaker
		},
	})

	result := ctrl.Run(context.Background())
	require.ErrorIs(t, result.Err, audio.ErrMicrophoneUnavailable)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, []string{"Microphone unavailable"}, ind.Errors())
}

func TestControllerOnceStopsAfterFirstExchange(t *testing.T) {
	h := startHarness(t, harnessConfig{once: true})

	h.hooks().OnSegment(segment(1))
	h.waitState(t, fsm.StateSpeaking)
	h.speaker.Events().OnEnded()

	result := h.result(t)
	require.NoError(t, result.Err)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, 1, result.Turns)
}

func TestControllerContextCancellation(t *testing.T) {
	h := startHarness(t, harnessConfig{})

	h.cancel()
	result := h.result(t)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.Equal(t, fsm.StateIdle, result.State)
}

func TestControllerHandleRejectsUnknownCommand(t *testing.T) {
	h := startHarness(t, harnessConfig{})

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: "bogus"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestControllerStopWhenIdle(t *testing.T) {
	ctrl := NewController(ControllerConfig{})
	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.False(t, resp.OK)
	require.Equal(t, "no conversation in progress", resp.Error)
}

func TestControllerMissingWiring(t *testing.T) {
	ctrl := NewController(ControllerConfig{})
	result := ctrl.Run(context.Background())
	require.Error(t, result.Err)
	require.Equal(t, fsm.StateIdle, result.State)
}
