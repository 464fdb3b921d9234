// Package logrotate ages out the artifacts that backup runs accumulate.
// Old logs are compressed in place, old archives are removed. A sweep is
// housekeeping: it reports everything that went wrong but is never allowed
// to fail the run that triggered it.
package logrotate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/oraops/backup-run/pkg/hints"
	"github.com/oraops/backup-run/pkg/metrics"
	"github.com/oraops/backup-run/pkg/plog"
)

// defaultWorkers bounds parallel compression when the caller does not.
const defaultWorkers = 4

// compressibleSuffixes are the run artifacts a sweep will compress. Plan
// files kept via keepPlanFiles stay readable as written.
var compressibleSuffixes = []string{".log", ".err"}

// archiveSuffixes cover both formats so switching the configured format
// never orphans archives produced under the old one.
var archiveSuffixes = []string{".gz", ".zst"}

// Options controls the two sweep horizons. A horizon of zero or less
// disables its phase.
type Options struct {
	CompressAfterDays int
	DeleteAfterDays   int
	Format            Format
	Workers           int
}

// Rotator sweeps a log directory.
type Rotator struct {
	opts    Options
	metrics metrics.Metrics
}

// NewRotator creates a Rotator. A nil metrics sink disables counting.
func NewRotator(opts Options, m metrics.Metrics) *Rotator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if m == nil {
		m = &metrics.NoopMetrics{}
	}
	return &Rotator{opts: opts, metrics: m}
}

// Sweep compresses aged logs and deletes aged archives under dir. All
// failures are collected and returned together; callers treat the result
// as a warning.
func (r *Rotator) Sweep(ctx context.Context, dir string) error {
	if r.opts.CompressAfterDays <= 0 && r.opts.DeleteAfterDays <= 0 {
		return hints.New("log lifecycle management is disabled")
	}

	var merr *multierror.Error
	if r.opts.CompressAfterDays > 0 {
		if err := r.compressAged(ctx, dir); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if r.opts.DeleteAfterDays > 0 {
		if err := r.deleteAged(ctx, dir); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

func (r *Rotator) compressAged(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("could not read log directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -r.opts.CompressAfterDays)

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	var mu sync.Mutex
	var merr *multierror.Error

	for _, entry := range entries {
		if entry.IsDir() || !hasSuffixIn(entry.Name(), compressibleSuffixes) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			mu.Lock()
			merr = multierror.Append(merr, err)
			mu.Unlock()
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		src := filepath.Join(dir, entry.Name())
		modTime := info.ModTime()
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := r.compressOne(src, modTime); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
				return nil
			}
			r.metrics.AddLogsCompressed(1)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

// compressOne writes src compressed next to it, stamps the archive with
// the source modtime so the delete horizon keeps counting from when the
// log was written, then removes the source.
func (r *Rotator) compressOne(src string, modTime time.Time) (retErr error) {
	srcF, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", src, err)
	}
	defer srcF.Close()

	tmpF, err := os.CreateTemp(filepath.Dir(src), "backup-run-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp archive for %s: %w", src, err)
	}
	tempPath := tmpF.Name()
	defer func() {
		if retErr != nil {
			tmpF.Close()
			os.Remove(tempPath)
		}
	}()

	if err := r.encode(tmpF, srcF); err != nil {
		return fmt.Errorf("could not compress %s: %w", src, err)
	}
	if err := tmpF.Close(); err != nil {
		return fmt.Errorf("could not close temp archive for %s: %w", src, err)
	}
	if err := os.Chtimes(tempPath, modTime, modTime); err != nil {
		return fmt.Errorf("could not stamp archive for %s: %w", src, err)
	}

	dst := src + r.opts.Format.Suffix()
	if err := os.Rename(tempPath, dst); err != nil {
		return fmt.Errorf("could not rename temp archive to %s: %w", dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("could not remove compressed source %s: %w", src, err)
	}

	plog.Debug("Compressed aged log", "source", src, "archive", dst)
	return nil
}

func (r *Rotator) encode(w io.Writer, src io.Reader) (retErr error) {
	var compressedWriter io.WriteCloser
	if r.opts.Format == Zstd {
		zstdWriter, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	} else {
		pgzipWriter, err := pgzip.NewWriterLevel(w, pgzip.DefaultCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	}

	defer func() {
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
	}()

	_, err := io.Copy(compressedWriter, src)
	return err
}

func (r *Rotator) deleteAged(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("could not read log directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -r.opts.DeleteAfterDays)
	var merr *multierror.Error

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			merr = multierror.Append(merr, err)
			break
		}
		if entry.IsDir() || !hasSuffixIn(entry.Name(), archiveSuffixes) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		r.metrics.AddLogsDeleted(1)
		plog.Debug("Deleted aged archive", "path", path)
	}
	return merr.ErrorOrNil()
}

func hasSuffixIn(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
