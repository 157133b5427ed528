// Package indicator handles desktop notifications and audio cue playback.
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/config"
)

// notifyTimeout bounds routine notification dispatch.
const notifyTimeout = 400 * time.Millisecond

// Controller is the conversation-facing indicator contract.
type Controller interface {
	ConversationStarted(context.Context)
	ConversationStopped(context.Context)
	ShowTranscript(context.Context, string)
	ShowReply(context.Context, string)
	ShowError(context.Context, string)
}

// Notifier dispatches desktop notifications through a configurable command
// and plays synthesized audio cues.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	soundMu sync.Mutex
}

// NewNotifier creates an indicator controller from config.
func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ConversationStarted signals listening start and emits the start cue.
func (n *Notifier) ConversationStarted(ctx context.Context) {
	n.playCue(cueStart)
	n.notify(ctx, n.messages.started, "")
}

// ConversationStopped signals session end and emits the stop cue.
func (n *Notifier) ConversationStopped(ctx context.Context) {
	n.playCue(cueStop)
	n.notify(ctx, n.messages.stopped, "")
}

// ShowTranscript surfaces what the assistant heard.
func (n *Notifier) ShowTranscript(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	n.notify(ctx, n.messages.heard, text)
}

// ShowReply surfaces the assistant's reply text alongside playback.
func (n *Notifier) ShowReply(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	n.notify(ctx, n.messages.replied, text)
}

// ShowError displays an error notification and emits the error cue. Error
// dispatch gets the configured longer timeout so failure toasts are not
// dropped on a slow notification daemon.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(cueError)
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeout()
	if timeout <= 0 {
		timeout = notifyTimeout
	}
	n.notifyWithTimeout(ctx, n.messages.errorTitle, text, timeout)
}

// notify runs the configured notify command with summary and optional body.
func (n *Notifier) notify(ctx context.Context, summary string, body string) {
	n.notifyWithTimeout(ctx, summary, body, notifyTimeout)
}

func (n *Notifier) notifyWithTimeout(ctx context.Context, summary string, body string, timeout time.Duration) {
	if !n.cfg.Enable || len(n.cfg.NotifyCmd.Argv) == 0 {
		return
	}

	argv := append(append([]string(nil), n.cfg.NotifyCmd.Argv...), summary)
	if body != "" {
		argv = append(argv, body)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			err = fmt.Errorf("%w (%s)", err, detail)
		}
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
