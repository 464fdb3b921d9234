// Package oratab resolves instance names to installation home directories
// using the host's oratab-style lookup table.
//
// The table is a plain text file of colon-separated entries:
//
//	name:homeDirectory:autostartFlag
//
// Lines starting with '#' and blank lines are skipped. The resolver is a
// pure read; it never creates or repairs the table.
package oratab

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when the table has no usable entry for the
// instance. An entry pointing at a home directory that does not exist on
// disk counts as unusable, so stale table lines fail the same way as
// missing ones.
var ErrNotFound = errors.New("no usable lookup table entry")

// Entry is one parsed lookup table line.
type Entry struct {
	Instance  string
	HomeDir   string
	AutoStart bool
}

// Resolve returns the home directory recorded for instance.
// The first matching entry wins; duplicates further down are ignored.
func Resolve(tablePath, instance string) (string, error) {
	entries, err := parseTable(tablePath)
	if err != nil {
		return "", err
	}

	for _, e := range entries {
		if e.Instance != instance {
			continue
		}
		info, statErr := os.Stat(e.HomeDir)
		if statErr != nil || !info.IsDir() {
			return "", fmt.Errorf("entry for instance %q points at missing home %q: %w", instance, e.HomeDir, ErrNotFound)
		}
		return e.HomeDir, nil
	}

	return "", fmt.Errorf("instance %q not listed in %s: %w", instance, tablePath, ErrNotFound)
}

func parseTable(tablePath string) ([]Entry, error) {
	f, err := os.Open(tablePath)
	if err != nil {
		return nil, fmt.Errorf("could not open lookup table %s: %w", tablePath, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < 2 {
			continue // malformed line, not ours to repair
		}

		name := strings.TrimSpace(fields[0])
		home := strings.TrimSpace(fields[1])
		if name == "" || home == "" {
			continue
		}

		autoStart := false
		if len(fields) >= 3 {
			autoStart = strings.EqualFold(strings.TrimSpace(fields[2]), "Y")
		}

		entries = append(entries, Entry{Instance: name, HomeDir: home, AutoStart: autoStart})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read lookup table %s: %w", tablePath, err)
	}

	return entries, nil
}
