// Package cli parses hark command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandPause   Command = "pause"
	CommandResume  Command = "resume"
	CommandStatus  Command = "status"
	CommandHealth  Command = "health"
	CommandDrain   Command = "drain"
	CommandPush    Command = "push"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// validCommands maps each command to whether its remaining arguments form a text payload.
var validCommands = map[Command]bool{
	CommandServe:   false,
	CommandStart:   false,
	CommandStop:    false,
	CommandPause:   false,
	CommandResume:  false,
	CommandStatus:  false,
	CommandHealth:  false,
	CommandDrain:   false,
	CommandPush:    true,
	CommandDoctor:  false,
	CommandVersion: false,
	CommandHelp:    false,
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Text is the joined payload for push.
	Text string
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
			takesText, ok := validCommands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if takesText {
				parsed.Text = strings.TrimSpace(strings.Join(rest, " "))
				if parsed.Text == "" {
					return Parsed{}, fmt.Errorf("%s requires text", arg)
				}
				return parsed, nil
			}
			if len(rest) != 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  serve        Run the listening daemon in the foreground
  start        Start continuous listening
  stop         Stop listening
  pause        Pause capture; buffered audio is discarded on resume
  resume       Resume capture
  status       Print daemon state
  health       Query the gRPC health endpoint
  drain        Print and clear queued utterances
  push TEXT    Queue a message as if it were recognized
  doctor       Run configuration and environment checks
  version      Print version information
  help         Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/hark/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
