package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandKey     Command = "key"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandStart:   {},
	CommandStop:    {},
	CommandStatus:  {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandKey:     {},
	CommandVersion: {},
	CommandHelp:    {},
}

var keyActions = map[string]struct{}{
	"set":   {},
	"show":  {},
	"clear": {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Once       bool
	ShowHelp   bool

	// KeyAction and KeyValue are set when Command is "key".
	KeyAction string
	KeyValue  string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--once":
			parsed.Once = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			if cmd == CommandKey {
				rest := args[i+1:]
				if len(rest) == 0 {
					return Parsed{}, errors.New("key requires an action: set, show, or clear")
				}
				action := rest[0]
				if _, ok := keyActions[action]; !ok {
					return Parsed{}, fmt.Errorf("unknown key action: %s", action)
				}
				parsed.KeyAction = action
				rest = rest[1:]

				if action == "set" {
					if len(rest) == 0 {
						return Parsed{}, errors.New("key set requires a value")
					}
					parsed.KeyValue = rest[0]
					rest = rest[1:]
				}
				if len(rest) != 0 {
					return Parsed{}, fmt.Errorf("unexpected arguments after key %s", action)
				}
				return parsed, nil
			}

			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--once] <command>

Commands:
  start     Start a conversation session (listens until stopped)
  stop      Stop the active conversation session
  status    Print current state, last transcript, and last reply
  devices   List available input devices
  doctor    Run configuration and environment checks
  key       Manage the OpenAI API key (set <value> | show | clear)
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parley/config.jsonc)
  --once          With start: run a single listen/reply exchange, then exit
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
