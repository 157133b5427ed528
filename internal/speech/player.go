package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrPlayback wraps output-stream failures so callers can classify them
// separately from synthesis errors.
var ErrPlayback = errors.New("speech playback failed")

// Events receive player lifecycle callbacks. Callbacks for an utterance that
// was cancelled or superseded never fire. Nil callbacks are skipped.
type Events struct {
	OnStarted func()
	OnEnded   func()
	OnError   func(err error)
	OnResumed func()
}

// Player speaks one utterance at a time. Starting a new utterance cancels the
// current one. Pause holds playback position; a resume timer set through
// ResumeAfter continues it, and each new ResumeAfter supersedes the last.
type Player struct {
	synth  Synthesizer
	sink   Sink
	events Events

	mu          sync.Mutex
	generation  int
	cancel      context.CancelFunc
	speaking    bool
	paused      bool
	resumeTimer *time.Timer
}

// NewPlayer builds a player over the given synthesizer and sink.
func NewPlayer(synth Synthesizer, sink Sink, events Events) *Player {
	return &Player{synth: synth, sink: sink, events: events}
}

// Speak starts speaking text asynchronously, cancelling any current
// utterance first. Blank text is a no-op and reports false.
func (p *Player) Speak(text string) bool {
	text = strings.TrimSpace(text)

	p.mu.Lock()
	p.cancelLocked()
	if text == "" {
		p.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.speaking = true
	gen := p.generation
	p.mu.Unlock()

	go p.run(ctx, gen, text)
	return true
}

// Pause holds the current utterance in place. No-op when nothing is playing
// or already paused.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.speaking {
		return
	}
	p.paused = true
}

// ResumeAfter arms a timer that resumes the paused utterance after d. Any
// previously armed timer is dropped. No-op when not paused.
func (p *Player) ResumeAfter(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	if !p.paused {
		return
	}
	gen := p.generation
	p.resumeTimer = time.AfterFunc(d, func() { p.resume(gen) })
}

// Cancel stops the current utterance without firing its end events. Safe to
// call when nothing is playing.
func (p *Player) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
}

// Speaking reports whether an utterance is in flight, paused included.
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Paused reports whether the current utterance is held.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) run(ctx context.Context, gen int, text string) {
	pcm, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		p.finish(gen, err)
		return
	}

	p.mu.Lock()
	current := gen == p.generation
	onStarted := p.events.OnStarted
	p.mu.Unlock()
	if !current {
		return
	}
	if onStarted != nil {
		onStarted()
	}

	err = p.sink.Play(ctx, pcm, func() bool { return p.pausedFor(gen) })
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	p.finish(gen, err)
}

// finish resets player state and fires OnEnded or OnError, unless the
// utterance was superseded in the meantime.
func (p *Player) finish(gen int, err error) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.speaking = false
	p.paused = false
	p.stopTimerLocked()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	onEnded := p.events.OnEnded
	onError := p.events.OnError
	p.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if onEnded != nil {
		onEnded()
	}
}

func (p *Player) resume(gen int) {
	p.mu.Lock()
	if gen != p.generation || !p.paused {
		p.mu.Unlock()
		return
	}
	p.paused = false
	p.resumeTimer = nil
	onResumed := p.events.OnResumed
	p.mu.Unlock()

	if onResumed != nil {
		onResumed()
	}
}

func (p *Player) pausedFor(gen int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.generation && p.paused
}

// cancelLocked tears down the current utterance and bumps the generation so
// its pending callbacks are suppressed. Callers hold p.mu.
func (p *Player) cancelLocked() {
	p.stopTimerLocked()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.speaking = false
	p.paused = false
	p.generation++
}

func (p *Player) stopTimerLocked() {
	if p.resumeTimer != nil {
		p.resumeTimer.Stop()
		p.resumeTimer = nil
	}
}
