package classify

// Entry carries what is known about one error code.
type Entry struct {
	Description string
	Remedy      string
}

const genericRemedy = "unmapped code, consult the vendor error reference"

// lookupCode resolves a code against the static map. Unlisted codes still
// get a usable entry so the report never has holes.
func lookupCode(code string) (Entry, bool) {
	entry, known := codeMap[code]
	if !known {
		entry = Entry{Description: "unrecognized error code", Remedy: genericRemedy}
	}
	return entry, known
}

// codeMap holds the codes the old wrapper scripts had accumulated remedies
// for over the years. It is deliberately small: the point is a first hint
// for the on-call DBA, not a copy of the vendor manual.
var codeMap = map[string]Entry{
	// Engine-internal family.
	"ORA-00257": {
		Description: "archiver error, log archiving is stuck",
		Remedy:      "free space in the archive destination or raise its quota, then retry",
	},
	"ORA-01031": {
		Description: "insufficient privileges",
		Remedy:      "run as the instance owner with sysdba rights",
	},
	"ORA-01034": {
		Description: "instance not available",
		Remedy:      "start the instance before backing it up",
	},
	"ORA-03113": {
		Description: "end-of-file on communication channel",
		Remedy:      "instance or session died mid-run, check the alert log",
	},
	"ORA-03114": {
		Description: "not connected to the instance",
		Remedy:      "session was lost, check the alert log and retry",
	},
	"ORA-19502": {
		Description: "write error on backup piece",
		Remedy:      "check free space and filesystem health under the base directory",
	},
	"ORA-19504": {
		Description: "failed to create backup piece file",
		Remedy:      "check permissions and free space under the base directory",
	},
	"ORA-19511": {
		Description: "error reported by the media management layer",
		Remedy:      "inspect the media manager's own log for the underlying fault",
	},
	"ORA-19625": {
		Description: "error identifying a file during backup",
		Remedy:      "a datafile or log vanished mid-run, crosscheck and retry",
	},
	"ORA-19809": {
		Description: "recovery area space limit exceeded",
		Remedy:      "raise the recovery area quota or delete obsolete backups",
	},
	"ORA-27037": {
		Description: "unable to obtain file status",
		Remedy:      "a referenced file is missing on disk, crosscheck the catalog",
	},
	"ORA-27072": {
		Description: "file I/O error",
		Remedy:      "check the storage layer under the base directory",
	},

	// Tool-specific family.
	"RMAN-00569": {
		Description: "error message stack marker",
		Remedy:      "see the adjacent error lines for the actual fault",
	},
	"RMAN-00571": {
		Description: "error message stack delimiter",
		Remedy:      "see the adjacent error lines for the actual fault",
	},
	"RMAN-03002": {
		Description: "a top-level command failed",
		Remedy:      "the codes that follow name the underlying cause",
	},
	"RMAN-03009": {
		Description: "a command failed on a channel",
		Remedy:      "the codes that follow name the underlying cause",
	},
	"RMAN-06023": {
		Description: "no backup found for a datafile",
		Remedy:      "take a new full backup before relying on restores",
	},
	"RMAN-06059": {
		Description: "expected archived log not found",
		Remedy:      "crosscheck archivelog and decide whether to catalog or skip it",
	},
	"RMAN-08137": {
		Description: "archived log not deleted, still needed by a standby",
		Remedy:      "usually harmless, verify the standby is applying logs",
	},
	"RMAN-10038": {
		Description: "channel session terminated unexpectedly",
		Remedy:      "check the instance alert log for the killed session",
	},
	"RMAN-20242": {
		Description: "specification matched no archived logs",
		Remedy:      "often benign after log-only runs, verify the log sequence range",
	},
}
