package flagparse

import "fmt"

// Command defines the action selected on the command line.
type Command int

const (
	None Command = iota
	Run
	Version
	InitConfig
)

func (c Command) String() string {
	switch c {
	case None:
		return "none"
	case Run:
		return "run"
	case Version:
		return "version"
	case InitConfig:
		return "init-config"
	default:
		return fmt.Sprintf("unknown_command(%d)", int(c))
	}
}
