package conversation

import (
	"context"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/speech"
)

// Transcriber turns one captured segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, segment audio.Segment) (string, error)
}

// TranscribeFunc adapts a function to the Transcriber interface.
type TranscribeFunc func(ctx context.Context, segment audio.Segment) (string, error)

func (f TranscribeFunc) Transcribe(ctx context.Context, segment audio.Segment) (string, error) {
	return f(ctx, segment)
}

// Generator produces the assistant reply for one user turn.
type Generator interface {
	Generate(ctx context.Context, userText string) (string, error)
}

// GenerateFunc adapts a function to the Generator interface.
type GenerateFunc func(ctx context.Context, userText string) (string, error)

func (f GenerateFunc) Generate(ctx context.Context, userText string) (string, error) {
	return f(ctx, userText)
}

// Speaker is the controller-facing subset of playback behavior.
type Speaker interface {
	Speak(text string) bool
	Pause()
	ResumeAfter(d time.Duration)
	Cancel()
}

// Listener emits segment lifecycle callbacks until stopped.
type Listener interface {
	Run(ctx context.Context) error
	Stop()
}

// ListenerFactory builds a listener wired to the controller's hooks.
type ListenerFactory func(hooks audio.SegmentHooks) Listener

// SpeakerFactory builds a speaker wired to the controller's events.
type SpeakerFactory func(events speech.Events) Speaker

// PulseListenerFactory runs segmented capture against a live Pulse device.
func PulseListenerFactory(device audio.Device, duration time.Duration) ListenerFactory {
	return func(hooks audio.SegmentHooks) Listener {
		return audio.NewSegmenter(audio.SegmenterConfig{
			Device:   device,
			Duration: duration,
			Hooks:    hooks,
		})
	}
}

// PlayerSpeakerFactory builds the real player over synth and sink.
func PlayerSpeakerFactory(synth speech.Synthesizer, sink speech.Sink) SpeakerFactory {
	return func(events speech.Events) Speaker {
		return speech.NewPlayer(synth, sink, events)
	}
}
