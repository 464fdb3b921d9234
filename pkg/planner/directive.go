package planner

import "fmt"

// Directive is a single engine statement. Directives are assembled as typed
// records and only become text in the plan's final rendering step, so a plan
// can be inspected and tested without string matching.
type Directive interface {
	Text() string
}

// AllocateChannel opens one parallel I/O channel on the disk device.
type AllocateChannel struct {
	Name         string
	MaxPieceSize string
}

func (d AllocateChannel) Text() string {
	if d.MaxPieceSize != "" {
		return fmt.Sprintf("allocate channel %s device type disk maxpiecesize %s;", d.Name, d.MaxPieceSize)
	}
	return fmt.Sprintf("allocate channel %s device type disk;", d.Name)
}

// BackupDatabase backs up all datafiles at the given incremental level.
// Level 0 is the full baseline, level 1 captures changes since the last
// lower-level backup.
type BackupDatabase struct {
	Level      int
	Compressed bool
	Format     string
}

func (d BackupDatabase) Text() string {
	return fmt.Sprintf("backup %s incremental level %d database format '%s';", backupSet(d.Compressed), d.Level, d.Format)
}

// BackupArchivedLogs backs up the archived transaction logs that have not
// been captured by an earlier backup.
type BackupArchivedLogs struct {
	Compressed bool
	Format     string
}

func (d BackupArchivedLogs) Text() string {
	return fmt.Sprintf("backup %s archivelog all not backed up format '%s';", backupSet(d.Compressed), d.Format)
}

// BackupControlfile snapshots the current controlfile.
type BackupControlfile struct {
	Format string
}

func (d BackupControlfile) Text() string {
	return fmt.Sprintf("backup current controlfile format '%s';", d.Format)
}

// BackupSpfile snapshots the server parameter file.
type BackupSpfile struct {
	Format string
}

func (d BackupSpfile) Text() string {
	return fmt.Sprintf("backup spfile format '%s';", d.Format)
}

// ReleaseChannel closes a previously allocated channel.
type ReleaseChannel struct {
	Name string
}

func (d ReleaseChannel) Text() string {
	return fmt.Sprintf("release channel %s;", d.Name)
}

// ConfigureRetentionWindow sets the recovery window the engine keeps
// backups for.
type ConfigureRetentionWindow struct {
	Days int
}

func (d ConfigureRetentionWindow) Text() string {
	return fmt.Sprintf("configure retention policy to recovery window of %d days;", d.Days)
}

// ReportObsolete lists the backups that fell out of the retention window.
type ReportObsolete struct{}

func (d ReportObsolete) Text() string {
	return "report obsolete;"
}

// DeleteObsolete removes the backups that fell out of the retention window
// without prompting.
type DeleteObsolete struct{}

func (d DeleteObsolete) Text() string {
	return "delete noprompt obsolete;"
}

func backupSet(compressed bool) string {
	if compressed {
		return "as compressed backupset"
	}
	return "as backupset"
}
