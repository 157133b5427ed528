package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/config"
)

func TestNotifierDispatchesNotifyCommand(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "notify-args.log")
	cfg := stubNotifyConfig(t, argsFile)

	notify := NewNotifier(cfg, nil)
	notify.ConversationStarted(context.Background())
	notify.ShowTranscript(context.Background(), "hello there")
	notify.ShowReply(context.Background(), "hi, how can I help?")
	notify.ShowError(context.Background(), "transcription failed")
	notify.ConversationStopped(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "-a parley Listening…", lines[0])
	require.Equal(t, "-a parley You said hello there", lines[1])
	require.Equal(t, "-a parley Assistant hi, how can I help?", lines[2])
	require.Equal(t, "-a parley Conversation error transcription failed", lines[3])
	require.Equal(t, "-a parley Conversation ended", lines[4])
}

func TestNotifierSkipsBlankTranscriptAndReply(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "notify-args.log")
	cfg := stubNotifyConfig(t, argsFile)

	notify := NewNotifier(cfg, nil)
	notify.ShowTranscript(context.Background(), "   ")
	notify.ShowReply(context.Background(), "")

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func TestNotifierShowErrorFallsBackToDefaultText(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "notify-args.log")
	cfg := stubNotifyConfig(t, argsFile)

	notify := NewNotifier(cfg, nil)
	notify.ShowError(context.Background(), "  ")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "-a parley Conversation error Something went wrong\n", string(data))
}

func TestNotifierDisabledSkipsDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "notify-args.log")
	cfg := stubNotifyConfig(t, argsFile)
	cfg.Enable = false

	notify := NewNotifier(cfg, nil)
	notify.ConversationStarted(context.Background())
	notify.ShowError(context.Background(), "ignored")

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

// stubNotifyConfig installs a notify-send stand-in that appends its args to
// argsFile, and returns indicator config wired to it with sound disabled.
func stubNotifyConfig(t *testing.T, argsFile string) config.IndicatorConfig {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "notify-stub")
	script := "#!/usr/bin/env bash\nset -euo pipefail\nprintf '%s\\n' \"$*\" >> \"" + argsFile + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	cfg := config.Default().Indicator
	cfg.Enable = true
	cfg.SoundEnable = false
	cfg.NotifyCmd = config.CommandConfig{
		Raw:  path + " -a parley",
		Argv: []string{path, "-a", "parley"},
	}
	return cfg
}
