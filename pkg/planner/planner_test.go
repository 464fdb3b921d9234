package planner_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oraops/backup-run/pkg/planner"
)

func testOptions() planner.Options {
	return planner.Options{
		BaseDirectory: "/backup",
		Channels:      2,
		MaxPieceSize:  "100G",
	}
}

func TestBuildBackupPlan(t *testing.T) {
	tests := []struct {
		name        string
		job         planner.Job
		optsMod     func(*planner.Options)
		expectError bool
		wantErrIs   error
		validate    func(*testing.T, *planner.Plan)
	}{
		{
			name: "full backup with compression",
			job:  planner.Job{Instance: "ORCL", Kind: planner.Full, Compress: true},
			validate: func(t *testing.T, p *planner.Plan) {
				if !p.RunBlock {
					t.Error("backup plan should render inside a run block")
				}
				// 2 allocates + database + controlfile + spfile + 2 releases
				if len(p.Directives) != 7 {
					t.Fatalf("expected 7 directives, got %d", len(p.Directives))
				}

				wantOrder := []string{
					"allocate channel ch1 device type disk maxpiecesize 100G;",
					"allocate channel ch2 device type disk maxpiecesize 100G;",
					"backup as compressed backupset incremental level 0 database format '/backup/ORCL/2025-11-06/db_%d_%T_%U';",
					"backup current controlfile format '/backup/ORCL/2025-11-06/ctl_%d_%T_%U';",
					"backup spfile format '/backup/ORCL/2025-11-06/spf_%d_%T_%U';",
					"release channel ch1;",
					"release channel ch2;",
				}
				for i, want := range wantOrder {
					if got := p.Directives[i].Text(); got != want {
						t.Errorf("directive %d = %q, want %q", i, got, want)
					}
				}
			},
		},
		{
			name: "incremental uses level 1",
			job:  planner.Job{Instance: "ORCL", Kind: planner.Incremental},
			validate: func(t *testing.T, p *planner.Plan) {
				text := p.Render()
				if !strings.Contains(text, "incremental level 1 database") {
					t.Errorf("incremental plan should back up at level 1, got:\n%s", text)
				}
				if strings.Contains(text, "compressed") {
					t.Errorf("uncompressed job must not render a compressed backupset, got:\n%s", text)
				}
				if !strings.Contains(text, "backup current controlfile") || !strings.Contains(text, "backup spfile") {
					t.Errorf("incremental plan should keep the companion directives, got:\n%s", text)
				}
			},
		},
		{
			name: "logonly backs up unarchived logs only",
			job:  planner.Job{Instance: "ORCL", Kind: planner.LogOnly},
			validate: func(t *testing.T, p *planner.Plan) {
				// 2 allocates + archivelog + 2 releases
				if len(p.Directives) != 5 {
					t.Fatalf("expected 5 directives, got %d", len(p.Directives))
				}
				text := p.Render()
				if !strings.Contains(text, "archivelog all not backed up") {
					t.Errorf("logonly plan must target logs not yet backed up, got:\n%s", text)
				}
				if strings.Contains(text, "database format") || strings.Contains(text, "controlfile") {
					t.Errorf("logonly plan must not back up datafiles, got:\n%s", text)
				}
			},
		},
		{
			name: "single channel",
			job:  planner.Job{Instance: "ORCL", Kind: planner.Full},
			optsMod: func(o *planner.Options) {
				o.Channels = 1
			},
			validate: func(t *testing.T, p *planner.Plan) {
				text := p.Render()
				if strings.Contains(text, "ch2") {
					t.Errorf("single channel plan mentions ch2:\n%s", text)
				}
				if strings.Count(text, "allocate channel") != 1 || strings.Count(text, "release channel") != 1 {
					t.Errorf("expected one allocate and one release, got:\n%s", text)
				}
			},
		},
		{
			name: "no piece size limit omits the clause",
			job:  planner.Job{Instance: "ORCL", Kind: planner.Full},
			optsMod: func(o *planner.Options) {
				o.MaxPieceSize = ""
			},
			validate: func(t *testing.T, p *planner.Plan) {
				if strings.Contains(p.Render(), "maxpiecesize") {
					t.Errorf("plan without a piece size limit must not render one:\n%s", p.Render())
				}
			},
		},
		{
			name:        "zero channels",
			job:         planner.Job{Instance: "ORCL", Kind: planner.Full},
			optsMod:     func(o *planner.Options) { o.Channels = 0 },
			expectError: true,
			wantErrIs:   planner.ErrInvalidParallelism,
		},
		{
			name:        "negative channels",
			job:         planner.Job{Instance: "ORCL", Kind: planner.Full},
			optsMod:     func(o *planner.Options) { o.Channels = -3 },
			expectError: true,
			wantErrIs:   planner.ErrInvalidParallelism,
		},
		{
			name:        "missing instance",
			job:         planner.Job{Kind: planner.Full},
			expectError: true,
		},
		{
			name:        "unknown kind",
			job:         planner.Job{Instance: "ORCL", Kind: planner.Kind(99)},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			if tt.optsMod != nil {
				tt.optsMod(&opts)
			}

			plan, err := planner.BuildBackupPlan(tt.job, opts, "2025-11-06")
			if tt.expectError {
				if err == nil {
					t.Fatal("expected an error, got a plan")
				}
				if tt.wantErrIs != nil && !errors.Is(err, tt.wantErrIs) {
					t.Errorf("error = %v, want %v in chain", err, tt.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, plan)
			}
		})
	}
}

// TestRenderDeterminism verifies that rendering is a pure function of the
// plan inputs.
func TestRenderDeterminism(t *testing.T) {
	job := planner.Job{
		Instance:    "ORCL",
		Kind:        planner.Full,
		Compress:    true,
		RequestedAt: time.Now(),
	}

	first, err := planner.BuildBackupPlan(job, testOptions(), "2025-11-06")
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	// A later build of the same job must render the identical bytes.
	job.RequestedAt = job.RequestedAt.Add(3 * time.Hour)
	second, err := planner.BuildBackupPlan(job, testOptions(), "2025-11-06")
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}

	if first.Render() != second.Render() {
		t.Errorf("renders differ:\n--- first ---\n%s\n--- second ---\n%s", first.Render(), second.Render())
	}
}

func TestRenderRunBlockFraming(t *testing.T) {
	plan, err := planner.BuildBackupPlan(planner.Job{Instance: "ORCL", Kind: planner.Full}, testOptions(), "2025-11-06")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	text := plan.Render()
	if !strings.HasPrefix(text, "run {\n") {
		t.Errorf("rendered plan should open a run block, got:\n%s", text)
	}
	if !strings.HasSuffix(text, "}\n") {
		t.Errorf("rendered plan should close the run block, got:\n%s", text)
	}
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if line == "run {" || line == "}" {
			continue
		}
		if !strings.HasPrefix(line, "  ") {
			t.Errorf("directive line not indented inside run block: %q", line)
		}
		if !strings.HasSuffix(line, ";") {
			t.Errorf("directive line not terminated: %q", line)
		}
	}
}

func TestBuildRetentionPlan(t *testing.T) {
	plan, err := planner.BuildRetentionPlan(14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.RunBlock {
		t.Error("retention statements must render standalone, not inside a run block")
	}
	if len(plan.Directives) != 3 {
		t.Fatalf("expected 3 retention statements, got %d", len(plan.Directives))
	}

	want := "configure retention policy to recovery window of 14 days;\n" +
		"report obsolete;\n" +
		"delete noprompt obsolete;\n"
	if got := plan.Render(); got != want {
		t.Errorf("retention plan rendered as:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildRetentionPlanRejectsDegenerateWindow(t *testing.T) {
	for _, days := range []int{0, -7} {
		if _, err := planner.BuildRetentionPlan(days); err == nil {
			t.Errorf("BuildRetentionPlan(%d) should fail", days)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    planner.Kind
		wantErr bool
	}{
		{input: "full", want: planner.Full},
		{input: "incremental", want: planner.Incremental},
		{input: "logonly", want: planner.LogOnly},
		{input: "Full", wantErr: true},
		{input: "archive", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := planner.ParseKind(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKind(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKind(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.String() != tt.input {
				t.Errorf("Kind.String() = %q, want round-trip of %q", got.String(), tt.input)
			}
		})
	}
}
