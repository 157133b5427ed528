package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// SampleRate is the capture rate for every segment sent to transcription.
	SampleRate = 16000

	// SegmentMIME is the container type attached to emitted segments.
	SegmentMIME = "audio/wav"
)

var (
	// ErrMicrophoneUnavailable reports that no capture stream could be opened
	// or that an open stream died mid-run.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")

	// ErrEmptyAudio reports a segment window that produced no PCM at all.
	ErrEmptyAudio = errors.New("segment contained no audio")
)

// Segment is one fixed-duration capture window packaged for transcription.
type Segment struct {
	Seq  int
	WAV  []byte
	MIME string
}

// SegmentHooks receive segmenter lifecycle callbacks. All callbacks fire from
// the segmenter's own goroutine; nil hooks are skipped.
type SegmentHooks struct {
	// OnSegmentStart fires the moment a new capture window opens, before any
	// audio has been read. This is the listener's speech-started signal.
	OnSegmentStart func(seq int)
	OnSegment      func(segment Segment)
	OnEmpty        func(seq int)
	OnError        func(err error)
}

// captureStream abstracts Capture for tests.
type captureStream interface {
	Chunks() <-chan []byte
	Stop() error
}

// captureDialer opens a capture stream for the selected device.
type captureDialer func(ctx context.Context, device Device) (captureStream, error)

// Segmenter slices one continuous capture stream into fixed-duration segments.
// The device is opened once and held for the life of the run so consecutive
// windows are gapless.
type Segmenter struct {
	device   Device
	duration time.Duration
	once     bool
	hooks    SegmentHooks
	dial     captureDialer

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	capture captureStream
}

// SegmenterConfig carries segmenter construction parameters.
type SegmenterConfig struct {
	Device   Device
	Duration time.Duration
	Once     bool
	Hooks    SegmentHooks
}

// NewSegmenter builds a segmenter over live Pulse capture.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	return newSegmenter(cfg, func(ctx context.Context, device Device) (captureStream, error) {
		return StartCapture(ctx, device)
	})
}

func newSegmenter(cfg SegmenterConfig, dial captureDialer) *Segmenter {
	duration := cfg.Duration
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return &Segmenter{
		device:   cfg.Device,
		duration: duration,
		once:     cfg.Once,
		hooks:    cfg.Hooks,
		dial:     dial,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run opens the device and emits segments until Stop or context cancellation.
// It returns the dial error immediately when the device cannot be opened.
func (s *Segmenter) Run(ctx context.Context) error {
	capture, err := s.dial(ctx, s.device)
	if err != nil {
		close(s.doneCh)
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = capture.Stop()
		close(s.doneCh)
		return nil
	}
	s.capture = capture
	s.mu.Unlock()

	go s.loop(ctx, capture)
	return nil
}

// Done is closed when the segment loop has fully exited.
func (s *Segmenter) Done() <-chan struct{} {
	return s.doneCh
}

// Stop halts capture and the segment loop. Safe to call more than once.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	capture := s.capture
	s.mu.Unlock()

	if capture != nil {
		_ = capture.Stop()
	}
}

func (s *Segmenter) loop(ctx context.Context, capture captureStream) {
	defer close(s.doneCh)
	defer func() { _ = capture.Stop() }()

	seq := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		seq++
		if s.hooks.OnSegmentStart != nil {
			s.hooks.OnSegmentStart(seq)
		}

		pcm, ok := s.collectWindow(ctx, capture)
		if !ok {
			return
		}

		if len(pcm) == 0 {
			if s.hooks.OnEmpty != nil {
				s.hooks.OnEmpty(seq)
			}
		} else if s.hooks.OnSegment != nil {
			s.hooks.OnSegment(Segment{
				Seq:  seq,
				WAV:  EncodeWAV(pcm, SampleRate, 1),
				MIME: SegmentMIME,
			})
		}

		if s.once {
			return
		}
	}
}

// collectWindow accumulates PCM for one segment duration. It returns ok=false
// when the run should end: stop requested, context done, or the capture stream
// closed underneath us.
func (s *Segmenter) collectWindow(ctx context.Context, capture captureStream) ([]byte, bool) {
	timer := time.NewTimer(s.duration)
	defer timer.Stop()

	var pcm []byte
	for {
		select {
		case <-s.stopCh:
			return nil, false
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
			return pcm, true
		case chunk, open := <-capture.Chunks():
			if !open {
				// Distinguish our own Stop from the stream dying.
				select {
				case <-s.stopCh:
					return nil, false
				default:
				}
				if s.hooks.OnError != nil {
					s.hooks.OnError(fmt.Errorf("%w: capture stream closed", ErrMicrophoneUnavailable))
				}
				return nil, false
			}
			pcm = append(pcm, chunk...)
		}
	}
}
