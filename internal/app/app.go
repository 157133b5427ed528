// Package app wires CLI commands to the conversation runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/chat"
	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/conversation"
	"github.com/rbright/parley/internal/credential"
	"github.com/rbright/parley/internal/doctor"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/speech"
	"github.com/rbright/parley/internal/version"
	"github.com/rbright/parley/internal/whisper"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("parley"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("parley"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	// A .env in the working directory supplies OPENAI_API_KEY without
	// shell exports. Missing file is not an error.
	_ = godotenv.Load()

	if parsed.Command == cli.CommandKey {
		return r.commandKey(ctx, parsed)
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandStart:
		return r.commandStart(ctx, cfgLoaded.Config, parsed.Once, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandKey(ctx context.Context, parsed cli.Parsed) int {
	switch parsed.KeyAction {
	case "set":
		if err := credential.Save(parsed.KeyValue); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, "API key saved")
		return 0
	case "show":
		key, err := credential.Resolve()
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, credential.Redact(key))
		return 0
	case "clear":
		if err := credential.Clear(); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		// A running conversation keeps using its in-memory key, so stop it.
		if socketPath, pathErr := ipc.RuntimeSocketPath(); pathErr == nil {
			if _, handled, fwdErr := tryForward(ctx, socketPath, "stop"); handled && fwdErr == nil {
				fmt.Fprintln(r.Stdout, "active conversation stopped")
			}
		}
		fmt.Fprintln(r.Stdout, "API key cleared")
		return 0
	default:
		fmt.Fprintf(r.Stderr, "error: unknown key action %q\n", parsed.KeyAction)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		if resp.Transcript != "" {
			fmt.Fprintf(r.Stdout, "heard: %s\n", resp.Transcript)
		}
		if resp.Reply != "" {
			fmt.Fprintf(r.Stdout, "reply: %s\n", resp.Reply)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active conversation\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandStart(ctx context.Context, cfg config.Config, once bool, logger *slog.Logger) int {
	apiKey, err := credential.Resolve()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("credential missing", "error", err.Error())
		return 1
	}

	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("device selection failed", "error", err.Error())
		return 1
	}
	if selection.Warning != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", selection.Warning)
		logger.Warn("device selection", "warning", selection.Warning)
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a conversation is already active; use `parley stop` first")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	transcriber := whisper.New(whisper.Config{
		Endpoint: cfg.Transcribe.Endpoint,
		Model:    cfg.Transcribe.Model,
		APIKey:   apiKey,
	})
	generator := chat.New(chat.Config{
		Endpoint:     cfg.Generate.Endpoint,
		Model:        cfg.Generate.Model,
		APIKey:       apiKey,
		SystemPrompt: cfg.Generate.SystemPrompt,
		MaxTokens:    cfg.Generate.MaxTokens,
		Temperature:  cfg.Generate.Temperature,
	})
	indicatorCtl := indicator.NewNotifier(cfg.Indicator, logger)
	synth := speech.NewExecSynthesizer(cfg.Speech.Synth.Argv)
	sink := speech.NewPulseSink()

	controller := conversation.NewController(conversation.ControllerConfig{
		Logger:      logger,
		Transcriber: transcriber,
		Generator:   generator,
		Indicator:   indicatorCtl,
		NewListener: conversation.PulseListenerFactory(selection.Device, cfg.SegmentDuration()),
		NewSpeaker:  conversation.PlayerSpeakerFactory(synth, sink),
		ResumeDelay: cfg.ResumeDelay(),
		Once:        once,
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logConversationResult(logger, result)

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if strings.TrimSpace(result.LastReply) != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(result.LastReply))
	}
	fmt.Fprintf(r.Stdout, "conversation ended (%d turns)\n", result.Turns)

	return 0
}

func logConversationResult(logger *slog.Logger, result conversation.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"session_id", result.SessionID,
		"turns", result.Turns,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"transcript_length", len(result.LastTranscript),
		"reply_length", len(result.LastReply),
	}

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		logger.Error("conversation failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("conversation complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
