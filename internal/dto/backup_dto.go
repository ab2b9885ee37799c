package dto

// BackupInfo describes one stored backup archive.
type BackupInfo struct {
	Name         string `json:"name"`
	SizeBytes    int64  `json:"size_bytes"`
	CreatedLocal string `json:"created_local"`
}

// RestoreResult reports what a restore touched.
type RestoreResult struct {
	Database        string `json:"database"`
	UploadsRestored int    `json:"uploads_restored"`
}

// PurgeResult reports what a factory reset removed.
type PurgeResult struct {
	UploadsRemoved int  `json:"uploads_removed"`
	DatabaseReset  bool `json:"db_reset"`
}

// ConfirmRequest guards destructive backup operations; the exact
// confirmation word is operation-specific (RESTORE, RESET).
type ConfirmRequest struct {
	Confirm string `json:"confirm" validate:"required"`
}
