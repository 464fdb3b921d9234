// Package classify turns raw engine output into a deduplicated error report.
//
// The engine's exit code alone is a poor verdict: some failures exit zero
// and some benign runs exit non-zero. What the wrapper scripts always did,
// and what this package keeps doing, is scan the combined output for the
// two error code families (engine-internal ORA- and tool-specific RMAN-)
// and treat the scan result as the outcome of record.
package classify

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/oraops/backup-run/pkg/util"
)

// maxContextBytes caps the stored first-seen line so a pathological log
// line cannot balloon the report.
const maxContextBytes = 512

// codePattern matches both error code families: a short alphabetic prefix
// and a fixed-width five digit suffix. The trailing boundary rejects
// overlong runs of digits.
var codePattern = regexp.MustCompile(`\b(?:ORA|RMAN)-[0-9]{5}\b`)

// Record summarizes every occurrence of one error code in a log.
type Record struct {
	Code         string
	Count        int
	FirstContext string
	Description  string
	Remedy       string
	Known        bool
}

// Scan reads the combined output log and returns one record per distinct
// error code, ordered by first appearance, with exact occurrence counts.
// The log is opened read-only and never modified, so a scan can be repeated
// on an old log at any time.
func Scan(logPath string) ([]Record, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("could not open log for classification: %w", err)
	}
	defer f.Close()

	return scan(f)
}

func scan(r io.Reader) ([]Record, error) {
	var records []Record
	index := make(map[string]int) // code -> position in records

	reader := bufio.NewReader(r)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			for _, code := range codePattern.FindAllString(line, -1) {
				if i, seen := index[code]; seen {
					records[i].Count++
					continue
				}

				entry, known := lookupCode(code)
				records = append(records, Record{
					Code:         code,
					Count:        1,
					FirstContext: trimContext(line),
					Description:  entry.Description,
					Remedy:       entry.Remedy,
					Known:        known,
				})
				index[code] = len(records) - 1
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return records, nil
			}
			// Partial results are still valid results. The caller decides
			// whether a short read is worth a warning.
			return records, fmt.Errorf("log read stopped early: %w", readErr)
		}
	}
}

// trimContext strips the line ending and caps the stored context.
func trimContext(line string) string {
	line = strings.TrimRight(line, "\r\n")
	if len(line) > maxContextBytes {
		return line[:maxContextBytes]
	}
	return line
}

// WriteReport writes the classification companion file. An empty file means
// the scanned log was clean.
func WriteReport(path string, records []Record) error {
	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (count %d)\n", rec.Code, rec.Count)
		fmt.Fprintf(&b, "  description: %s\n", rec.Description)
		fmt.Fprintf(&b, "  remedy: %s\n", rec.Remedy)
		fmt.Fprintf(&b, "  first seen: %s\n", rec.FirstContext)
	}

	if err := os.WriteFile(path, []byte(b.String()), util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("could not write classification report: %w", err)
	}
	return nil
}
