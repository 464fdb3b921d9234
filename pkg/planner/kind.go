package planner

import (
	"fmt"

	"github.com/oraops/backup-run/pkg/util"
)

// Kind represents the kind of backup a run performs.
type Kind int

// Constants for Kind, acting as an enum.
const (
	Full Kind = iota
	Incremental
	LogOnly
)

var kindToString = map[Kind]string{
	Full:        "full",
	Incremental: "incremental",
	LogOnly:     "logonly",
}
var stringToKind = map[string]Kind{}

func init() {
	stringToKind = util.InvertMap(kindToString)
}

// String returns the string representation of a Kind. It doubles as the
// kind segment of artifact file names, so it is always lower case.
func (k Kind) String() string {
	if str, ok := kindToString[k]; ok {
		return str
	}
	return fmt.Sprintf("unknown_backup_kind(%d)", k)
}

// ParseKind parses a string and returns the corresponding Kind.
func ParseKind(s string) (Kind, error) {
	if kind, ok := stringToKind[s]; ok {
		return kind, nil
	}
	return 0, fmt.Errorf("invalid backup kind: %q. Must be 'full', 'incremental' or 'logonly'", s)
}
