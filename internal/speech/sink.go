package speech

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/parley/internal/audio"
)

// Sink plays one PCM utterance to the output device. Play blocks until the
// samples are drained or ctx is cancelled. While paused reports true the sink
// holds position and emits silence, so resuming continues mid-utterance.
type Sink interface {
	Play(ctx context.Context, pcm audio.PCM, paused func() bool) error
}

// PulseSink plays utterances on the default Pulse output.
type PulseSink struct{}

// NewPulseSink returns a sink over the default Pulse playback device.
func NewPulseSink() *PulseSink {
	return &PulseSink{}
}

// Play streams samples through a mono playback stream at the utterance's own
// sample rate. Cancellation ends the stream at the next reader callback.
func (s *PulseSink) Play(ctx context.Context, pcm audio.PCM, paused func() bool) error {
	samples := monoSamples(pcm)
	if len(samples) == 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parley"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		select {
		case <-ctx.Done():
			return 0, pulse.EndOfData
		default:
		}

		if paused != nil && paused() {
			// Hold position and feed silence so the stream stays alive.
			for i := range buf {
				buf[i] = 0
			}
			return len(buf), nil
		}

		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(pcm.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("parley reply"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play utterance stream: %w", err)
	}
	return nil
}

// monoSamples converts s16le bytes to int16 samples, averaging stereo pairs.
func monoSamples(pcm audio.PCM) []int16 {
	frames := len(pcm.Data) / 2
	if frames == 0 {
		return nil
	}

	raw := make([]int16, frames)
	for i := 0; i < frames; i++ {
		raw[i] = int16(binary.LittleEndian.Uint16(pcm.Data[i*2 : i*2+2]))
	}

	if pcm.Channels <= 1 {
		return raw
	}

	out := make([]int16, 0, frames/pcm.Channels)
	for i := 0; i+pcm.Channels <= len(raw); i += pcm.Channels {
		sum := 0
		for c := 0; c < pcm.Channels; c++ {
			sum += int(raw[i+c])
		}
		out = append(out, int16(sum/pcm.Channels))
	}
	return out
}
