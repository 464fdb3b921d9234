// Package planner builds engine command plans.
//
// A plan is an ordered list of typed directives. Building never touches the
// filesystem or the clock: for a fixed job, options and date tag the
// rendered text is byte-identical, which is what makes dry runs trustworthy
// and same-day reruns safe to compare.
package planner

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrInvalidParallelism is returned when a plan is requested with no channels.
var ErrInvalidParallelism = errors.New("channel parallelism must be at least 1")

// Piece name prefixes inside the per-day output directory. The engine
// expands %d to the instance name, %T to its own date stamp and %U to a
// token unique per piece, so the rendered plan itself stays deterministic.
const (
	databasePrefix    = "db_%d_%T_%U"
	archivelogPrefix  = "arc_%d_%T_%U"
	controlfilePrefix = "ctl_%d_%T_%U"
	spfilePrefix      = "spf_%d_%T_%U"
)

// Job describes one requested backup run.
type Job struct {
	Instance    string
	Kind        Kind
	Compress    bool
	RequestedAt time.Time
}

// Options carries the engine tunables a plan depends on.
type Options struct {
	BaseDirectory string
	Channels      int
	MaxPieceSize  string
}

// Plan is an ordered list of directives plus the framing they render with.
type Plan struct {
	// RunBlock wraps the directives in a run { } block. Channel allocation
	// is only legal inside one; the retention statements are only legal
	// outside one.
	RunBlock   bool
	Directives []Directive
}

// Render produces the final engine script text. This is the single place
// directives become text.
func (p *Plan) Render() string {
	var b strings.Builder
	if p.RunBlock {
		b.WriteString("run {\n")
		for _, d := range p.Directives {
			b.WriteString("  ")
			b.WriteString(d.Text())
			b.WriteByte('\n')
		}
		b.WriteString("}\n")
		return b.String()
	}

	for _, d := range p.Directives {
		b.WriteString(d.Text())
		b.WriteByte('\n')
	}
	return b.String()
}

// OutputDir is the day-partitioned directory a plan writes its pieces
// into. Exposed so the caller can create it before handing the plan to
// the engine, which does not create missing format directories itself.
func OutputDir(baseDirectory, instance, dateTag string) string {
	return path.Join(baseDirectory, instance, dateTag)
}

// BuildBackupPlan assembles the directive sequence for one run: channel
// allocations, the kind's backup directives, then channel releases in
// allocation order.
func BuildBackupPlan(job Job, opts Options, dateTag string) (*Plan, error) {
	if opts.Channels < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidParallelism, opts.Channels)
	}
	if job.Instance == "" {
		return nil, errors.New("job has no instance name")
	}
	if dateTag == "" {
		return nil, errors.New("empty date tag")
	}

	outDir := OutputDir(opts.BaseDirectory, job.Instance, dateTag)
	directives := make([]Directive, 0, 2*opts.Channels+3)

	for i := 1; i <= opts.Channels; i++ {
		directives = append(directives, AllocateChannel{
			Name:         fmt.Sprintf("ch%d", i),
			MaxPieceSize: opts.MaxPieceSize,
		})
	}

	switch job.Kind {
	case Full:
		directives = append(directives,
			BackupDatabase{Level: 0, Compressed: job.Compress, Format: path.Join(outDir, databasePrefix)},
			BackupControlfile{Format: path.Join(outDir, controlfilePrefix)},
			BackupSpfile{Format: path.Join(outDir, spfilePrefix)},
		)
	case Incremental:
		directives = append(directives,
			BackupDatabase{Level: 1, Compressed: job.Compress, Format: path.Join(outDir, databasePrefix)},
			BackupControlfile{Format: path.Join(outDir, controlfilePrefix)},
			BackupSpfile{Format: path.Join(outDir, spfilePrefix)},
		)
	case LogOnly:
		directives = append(directives,
			BackupArchivedLogs{Compressed: job.Compress, Format: path.Join(outDir, archivelogPrefix)},
		)
	default:
		return nil, fmt.Errorf("unsupported backup kind: %s", job.Kind)
	}

	for i := 1; i <= opts.Channels; i++ {
		directives = append(directives, ReleaseChannel{Name: fmt.Sprintf("ch%d", i)})
	}

	return &Plan{RunBlock: true, Directives: directives}, nil
}

// BuildRetentionPlan assembles the standalone statements that age out
// obsolete backups under a recovery window.
func BuildRetentionPlan(recoveryWindowDays int) (*Plan, error) {
	if recoveryWindowDays < 1 {
		return nil, fmt.Errorf("recovery window must be at least 1 day, got %d", recoveryWindowDays)
	}

	return &Plan{
		RunBlock: false,
		Directives: []Directive{
			ConfigureRetentionWindow{Days: recoveryWindowDays},
			ReportObsolete{},
			DeleteObsolete{},
		},
	}, nil
}
