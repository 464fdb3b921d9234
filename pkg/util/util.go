package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Permission constants for file and directory modes.
const (
	// UserWritableDirPerms represents the standard permissions for newly created directories (rwxr-xr-x).
	UserWritableDirPerms os.FileMode = 0755
	// UserWritableFilePerms represents the standard permissions for newly created files (rw-r--r--).
	UserWritableFilePerms os.FileMode = 0644
)

// sizeUnits maps the single-letter size suffixes accepted in piece-size
// specs to their byte multipliers.
var sizeUnits = map[byte]int64{
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSizeSpec parses a piece-size spec like "100G" or "512M" into bytes.
// A bare number is taken as bytes. The suffix is case-insensitive and the
// spec is rejected if anything else trails the number.
func ParseSizeSpec(spec string) (int64, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return 0, fmt.Errorf("empty size spec")
	}

	mult := int64(1)
	last := s[len(s)-1]
	if last < '0' || last > '9' {
		m, ok := sizeUnits[last&^0x20] // fold to upper case
		if !ok {
			return 0, fmt.Errorf("size spec %q: unknown unit %q", spec, string(last))
		}
		mult = m
		s = s[:len(s)-1]
	}

	if s == "" {
		return 0, fmt.Errorf("size spec %q: missing number", spec)
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("size spec %q: invalid character %q", spec, string(c))
		}
		n = n*10 + int64(c-'0')
	}
	if n <= 0 {
		return 0, fmt.Errorf("size spec %q: must be positive", spec)
	}
	return n * mult, nil
}

// ExpandPath expands the tilde (~) prefix in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil // No tilde, return as-is.
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}

	// Replace the tilde with the home directory.
	return filepath.Join(home, path[1:]), nil
}

// InvertMap takes a map[K]V and returns a map[V]K.
// It's a generic helper for creating reverse lookup maps for enums.
func InvertMap[K comparable, V comparable](m map[K]V) map[V]K {
	inv := make(map[V]K, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}
