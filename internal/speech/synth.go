// Package speech turns reply text into audible playback with pause, resume,
// and cancel controls.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
)

// DefaultSynthArgv invokes espeak-ng writing a WAV stream to stdout, reading
// the utterance text from stdin.
var DefaultSynthArgv = []string{"espeak-ng", "--stdout", "-v", "en-us", "-s", "175"}

// Synthesizer renders text to PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio.PCM, error)
}

// ExecSynthesizer shells out to a local TTS engine. The engine must accept
// text on stdin and emit a WAV container on stdout.
type ExecSynthesizer struct {
	argv    []string
	timeout time.Duration
}

// NewExecSynthesizer builds an exec-backed synthesizer. Empty argv selects
// the espeak-ng default.
func NewExecSynthesizer(argv []string) *ExecSynthesizer {
	if len(argv) == 0 {
		argv = DefaultSynthArgv
	}
	return &ExecSynthesizer{argv: argv, timeout: 30 * time.Second}
}

// Synthesize runs the engine once and decodes its WAV output.
func (s *ExecSynthesizer) Synthesize(ctx context.Context, text string) (audio.PCM, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return audio.PCM{}, fmt.Errorf("run %s: %w: %s", s.argv[0], err, detail)
		}
		return audio.PCM{}, fmt.Errorf("run %s: %w", s.argv[0], err)
	}

	pcm, err := audio.DecodeWAV(stdout.Bytes())
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode %s output: %w", s.argv[0], err)
	}
	return pcm, nil
}
