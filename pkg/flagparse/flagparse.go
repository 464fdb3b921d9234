package flagparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oraops/backup-run/pkg/buildinfo"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered" (nil)
// and "registered but not set by user" (non-nil pointer to zero value).
type cliFlags struct {
	// Global
	LogLevel *string
	DryRun   *bool
	Config   *string

	// Run
	Instance *string
	Kind     *string
	Compress *bool
	Channels *int
	KeepPlan *bool

	// Actions
	Version    *bool
	InitConfig *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'info', 'warn', 'error'.")
	f.DryRun = fs.Bool("dry-run", false, "Resolve the environment and print the plan without running anything.")
	f.Config = fs.String("config", "", "Path to the configuration file.")
}

func registerRunFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Instance = fs.String("instance", "", "Name of the database instance to back up. (Required)")
	f.Kind = fs.String("kind", "", "Backup kind: 'full', 'incremental', or 'logonly'. (Required)")
	f.Compress = fs.Bool("compress", false, "Produce compressed backupsets.")
	f.Channels = fs.Int("channels", 0, "Number of parallel engine channels.")
	f.KeepPlan = fs.Bool("keep-plan", false, "Keep the generated plan file after the run.")
}

func registerActionFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Version = fs.Bool("version", false, "Print the application version and exit.")
	f.InitConfig = fs.Bool("init-config", false, "Write a commented default configuration file and exit.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the
// selected command and a map of the flags the user explicitly set.
func Parse(args []string) (Command, map[string]interface{}, error) {
	f := &cliFlags{}

	fs := flag.NewFlagSet(buildinfo.Name, flag.ContinueOnError)
	registerGlobalFlags(fs, f)
	registerRunFlags(fs, f)
	registerActionFlags(fs, f)

	fs.Usage = func() {
		printUsage(fs)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return None, nil, nil
		}
		return None, nil, err
	}

	flagMap := flagsToMap(fs, f)

	switch {
	case *f.Version:
		return Version, flagMap, nil
	case *f.InitConfig:
		return InitConfig, flagMap, nil
	default:
		return Run, flagMap, nil
	}
}

// flagsToMap creates a map of the flags that were explicitly set by the
// user, along with their values. This map is used to selectively override
// the base configuration.
func flagsToMap(fs *flag.FlagSet, f *cliFlags) map[string]interface{} {
	usedFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { usedFlags[fl.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "config", f.Config)

	addIfUsed(flagMap, usedFlags, "instance", f.Instance)
	addIfUsed(flagMap, usedFlags, "kind", f.Kind)
	addIfUsed(flagMap, usedFlags, "compress", f.Compress)
	addIfUsed(flagMap, usedFlags, "channels", f.Channels)
	addIfUsed(flagMap, usedFlags, "keep-plan", f.KeepPlan)

	return flagMap
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]interface{}, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// printUsage prints the help message.
func printUsage(fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "Database backup orchestration for RMAN-managed instances.\n\n")
	fmt.Fprintf(fs.Output(), "Usage: %s -instance <name> -kind <full|incremental|logonly> [flags]\n\n", execName)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}
