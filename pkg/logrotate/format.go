package logrotate

import (
	"fmt"

	"github.com/oraops/backup-run/pkg/util"
)

// Format represents the compression format for aged log artifacts.
type Format string

const (
	Gzip Format = "gzip"
	Zstd Format = "zstd"
)

var formatToString = map[Format]string{
	Gzip: "gzip",
	Zstd: "zstd",
}

var stringToFormat map[string]Format

func init() {
	// Inverting the map at runtime ensures formatToString is fully loaded
	stringToFormat = util.InvertMap(formatToString)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_compression_format(%s)", string(f))
}

// Suffix returns the file name suffix the format produces.
func (f Format) Suffix() string {
	if f == Zstd {
		return ".zst"
	}
	return ".gz"
}

func ParseFormat(s string) (Format, error) {
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid compression format: %q. Must be 'gzip' or 'zstd'", s)
}
