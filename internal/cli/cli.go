// Package cli parses elora command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandPractice  Command = "practice"
	CommandStart     Command = "start"
	CommandStop      Command = "stop"
	CommandStatus    Command = "status"
	CommandNarration Command = "narration"
	CommandServe     Command = "serve"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandPractice:  {},
	CommandStart:     {},
	CommandStop:      {},
	CommandStatus:    {},
	CommandNarration: {},
	CommandServe:     {},
	CommandDevices:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

// Parsed is the normalized invocation.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// Practice overrides. MaxSeconds is -1 when unset.
	Phrase     string
	MaxSeconds int
	SkipCheck  bool
	Immediate  bool

	// Narration is the requested state for `narration start|stop`.
	Narration bool
}

// Parse accepts flags anywhere and exactly one command, plus the
// start|stop argument of `narration`.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true, MaxSeconds: -1}
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			return parsed, nil
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
			return parsed, nil
		case "--config", "--phrase", "--max-seconds":
			i++
			if i >= len(args) {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			if err := parsed.setValue(arg, args[i]); err != nil {
				return Parsed{}, err
			}
		case "--skip-check":
			parsed.SkipCheck = true
		case "--immediate":
			parsed.Immediate = true
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			positional = append(positional, arg)
		}
	}

	if len(positional) == 0 {
		return parsed, nil
	}

	cmd := Command(positional[0])
	if _, ok := validCommands[cmd]; !ok {
		return Parsed{}, fmt.Errorf("unknown command: %s", positional[0])
	}
	parsed.Command = cmd
	parsed.ShowHelp = cmd == CommandHelp
	rest := positional[1:]

	if cmd == CommandNarration {
		if len(rest) != 1 {
			return Parsed{}, errors.New("narration requires start or stop")
		}
		switch rest[0] {
		case "start":
			parsed.Narration = true
		case "stop":
			parsed.Narration = false
		default:
			return Parsed{}, fmt.Errorf("narration requires start or stop, got %q", rest[0])
		}
		return parsed, nil
	}
	if len(rest) > 0 {
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", positional[0])
	}
	return parsed, nil
}

func (p *Parsed) setValue(flag string, value string) error {
	switch flag {
	case "--config":
		p.ConfigPath = value
	case "--phrase":
		p.Phrase = strings.TrimSpace(value)
		if p.Phrase == "" {
			return errors.New("--phrase must not be empty")
		}
	case "--max-seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("--max-seconds must be a non-negative integer, got %q", value)
		}
		p.MaxSeconds = n
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [flags] <command>

Commands:
  practice          Record attempts at a phrase until one is accepted
  start             Begin a new attempt in the running practice session
  stop              Stop the active attempt
  status            Print current state
  narration start   Mark narration as playing (blocks recording)
  narration stop    Mark narration as finished (starts cooldown)
  serve             Run the websocket practice server
  devices           List available input devices
  doctor            Run configuration and environment checks
  version           Print version information
  help              Show this help

Flags:
  --config PATH       Config file path (default: $XDG_CONFIG_HOME/elora/config.yaml)
  --phrase TEXT       Target phrase (overrides practice.phrase)
  --max-seconds N     Recording cap in seconds, 0 for none
  --skip-check        Accept any clear speech without pronunciation scoring
  --immediate         Allow overlapping pronunciation checks
  -h, --help          Show help
  --version           Show version
`, binaryName)
}
