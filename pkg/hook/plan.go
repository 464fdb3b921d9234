package hook

type Plan struct {
	Enabled bool

	Pre  []string
	Post []string

	// Env is the environment the commands run with, including the run
	// context variables the orchestrator injects.
	Env []string

	// Global Flags
	DryRun   bool
	FailFast bool
}
