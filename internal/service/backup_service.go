package service

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/observability"
	"github.com/examdesk/examdesk-api/internal/timeutil"
)

var (
	// ErrBackupNotFound indicates the named archive does not exist.
	ErrBackupNotFound = errors.New("backup not found")
	// ErrBackupNameInvalid indicates a name that is not a plain .zip filename.
	ErrBackupNameInvalid = errors.New("invalid backup name")
	// ErrBackupUnsupported indicates the database backend cannot be archived.
	ErrBackupUnsupported = errors.New("backups require a sqlite database")
	// ErrManifestInvalid indicates the archive manifest failed validation.
	ErrManifestInvalid = errors.New("backup manifest is invalid")
)

const manifestName = "manifest.json"

// manifestSchema pins the shape of manifest.json inside an archive.
const manifestSchema = `{
  "type": "object",
  "required": ["version", "created_at", "database"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "created_at": {"type": "string"},
    "database": {"type": "string", "pattern": "^db/[^/]+$"},
    "db_backend": {"type": "string"},
    "upload_folder": {"type": "string"},
    "uploads": {"type": "integer", "minimum": 0}
  }
}`

type backupManifest struct {
	Version      int    `json:"version"`
	CreatedAt    string `json:"created_at"`
	Database     string `json:"database"`
	DBBackend    string `json:"db_backend,omitempty"`
	UploadFolder string `json:"upload_folder,omitempty"`
	Uploads      int    `json:"uploads"`
}

// BackupService creates, restores and lists zip archives of the database
// and uploaded files. It also performs the factory reset.
type BackupService interface {
	Create(ctx context.Context, actor Actor) (dto.BackupInfo, error)
	List(ctx context.Context, actor Actor) ([]dto.BackupInfo, error)
	ArchivePath(name string) (string, error)
	Restore(ctx context.Context, actor Actor, name string) (dto.RestoreResult, error)
	RestoreUpload(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.RestoreResult, error)
	Purge(ctx context.Context, actor Actor) (dto.PurgeResult, error)
}

type backupService struct {
	db        *gorm.DB
	dbPath    string
	uploadDir string
	backupDir string
	schema    *jsonschema.Schema
	reseed    func(context.Context) error
	logger    zerolog.Logger
	now       func() time.Time
}

// NewBackupService builds a new backup service. dbPath is the sqlite file
// path, or empty when the backend is not sqlite. reseed repopulates the
// default accounts after a factory reset and may be nil.
func NewBackupService(db *gorm.DB, dbPath, uploadDir, backupDir string, reseed func(context.Context) error, logger zerolog.Logger) BackupService {
	return &backupService{
		db:        db,
		dbPath:    dbPath,
		uploadDir: uploadDir,
		backupDir: backupDir,
		schema:    jsonschema.MustCompileString(manifestName, manifestSchema),
		reseed:    reseed,
		logger:    logger.With().Str("component", "backup_service").Logger(),
		now:       time.Now,
	}
}

func (s *backupService) Create(ctx context.Context, actor Actor) (dto.BackupInfo, error) {
	if s.dbPath == "" {
		return dto.BackupInfo{}, ErrBackupUnsupported
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return dto.BackupInfo{}, err
	}

	// VACUUM INTO yields a consistent snapshot without locking writers out.
	snapshot := filepath.Join(s.backupDir, fmt.Sprintf(".snapshot-%d.db", s.now().UnixNano()))
	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", snapshot).Error; err != nil {
		return dto.BackupInfo{}, fmt.Errorf("snapshot database: %w", err)
	}
	defer os.Remove(snapshot)

	name := "exam_backup_" + s.now().UTC().Format("20060102150405") + ".zip"
	archivePath := filepath.Join(s.backupDir, name)
	out, err := os.Create(archivePath)
	if err != nil {
		return dto.BackupInfo{}, err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	dbEntry := "db/" + filepath.Base(s.dbPath)
	if err := addFileToZip(zw, snapshot, dbEntry); err != nil {
		zw.Close()
		os.Remove(archivePath)
		return dto.BackupInfo{}, err
	}

	uploads := 0
	err = filepath.Walk(s.uploadDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.uploadDir, path)
		if err != nil {
			return err
		}
		uploads++
		return addFileToZip(zw, path, "uploads/"+filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		os.Remove(archivePath)
		return dto.BackupInfo{}, err
	}

	manifest := backupManifest{
		Version:      1,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
		Database:     dbEntry,
		DBBackend:    "sqlite",
		UploadFolder: filepath.Base(s.uploadDir),
		Uploads:      uploads,
	}
	encoded, err := json.Marshal(manifest)
	if err != nil {
		zw.Close()
		return dto.BackupInfo{}, err
	}
	entry, err := zw.Create(manifestName)
	if err != nil {
		zw.Close()
		return dto.BackupInfo{}, err
	}
	if _, err := entry.Write(encoded); err != nil {
		zw.Close()
		return dto.BackupInfo{}, err
	}
	if err := zw.Close(); err != nil {
		return dto.BackupInfo{}, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return dto.BackupInfo{}, err
	}

	observability.RecordBackupCreated()
	s.logger.Info().Str("archive", name).Int("uploads", uploads).Uint("admin_id", actor.ID).Msg("backup created")
	return dto.BackupInfo{
		Name:         name,
		SizeBytes:    info.Size(),
		CreatedLocal: timeutil.Format(timeutil.ToLocal(info.ModTime().UTC(), actor.Timezone)),
	}, nil
}

func (s *backupService) List(ctx context.Context, actor Actor) ([]dto.BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []dto.BackupInfo{}, nil
		}
		return nil, err
	}

	backups := make([]dto.BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, dto.BackupInfo{
			Name:         entry.Name(),
			SizeBytes:    info.Size(),
			CreatedLocal: timeutil.Format(timeutil.ToLocal(info.ModTime().UTC(), actor.Timezone)),
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Name > backups[j].Name })
	return backups, nil
}

// ArchivePath validates the name and resolves it inside the backup folder.
func (s *backupService) ArchivePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".zip") {
		return "", ErrBackupNameInvalid
	}
	path := filepath.Join(s.backupDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrBackupNotFound
	}
	return path, nil
}

func (s *backupService) Restore(ctx context.Context, actor Actor, name string) (dto.RestoreResult, error) {
	if s.dbPath == "" {
		return dto.RestoreResult{}, ErrBackupUnsupported
	}
	path, err := s.ArchivePath(name)
	if err != nil {
		return dto.RestoreResult{}, err
	}

	result, err := s.restoreArchive(ctx, path)
	if err != nil {
		return dto.RestoreResult{}, err
	}
	s.logger.Info().Str("archive", name).Int("uploads", result.UploadsRestored).Uint("admin_id", actor.ID).
		Msg("backup restored, restart recommended")
	return result, nil
}

// RestoreUpload restores from an archive sent with the request rather than one
// already present in the backup folder.
func (s *backupService) RestoreUpload(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.RestoreResult, error) {
	if s.dbPath == "" {
		return dto.RestoreResult{}, ErrBackupUnsupported
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".zip") {
		return dto.RestoreResult{}, ErrBackupNameInvalid
	}

	src, err := file.Open()
	if err != nil {
		return dto.RestoreResult{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "restore-*.zip")
	if err != nil {
		return dto.RestoreResult{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return dto.RestoreResult{}, err
	}
	if err := tmp.Close(); err != nil {
		return dto.RestoreResult{}, err
	}

	result, err := s.restoreArchive(ctx, tmp.Name())
	if err != nil {
		return dto.RestoreResult{}, err
	}
	s.logger.Info().Str("archive", file.Filename).Int("uploads", result.UploadsRestored).Uint("admin_id", actor.ID).
		Msg("uploaded backup restored, restart recommended")
	return result, nil
}

func (s *backupService) restoreArchive(ctx context.Context, path string) (dto.RestoreResult, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return dto.RestoreResult{}, fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	manifest, err := s.readManifest(&archive.Reader)
	if err != nil {
		return dto.RestoreResult{}, err
	}

	// Flush pending WAL pages before overwriting the database file.
	if err := s.db.WithContext(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		s.logger.Warn().Err(err).Msg("wal checkpoint failed before restore")
	}

	restored := 0
	dbRestored := false
	for _, file := range archive.File {
		entryName := filepath.ToSlash(file.Name)
		if strings.Contains(entryName, "..") || strings.HasPrefix(entryName, "/") {
			return dto.RestoreResult{}, fmt.Errorf("%w: entry %q escapes the archive", ErrManifestInvalid, file.Name)
		}

		switch {
		case entryName == manifest.Database:
			if err := extractZipFile(file, s.dbPath); err != nil {
				return dto.RestoreResult{}, err
			}
			dbRestored = true
		case uploadEntryRel(entryName) != "":
			target := filepath.Join(s.uploadDir, filepath.FromSlash(uploadEntryRel(entryName)))
			if err := extractZipFile(file, target); err != nil {
				return dto.RestoreResult{}, err
			}
			restored++
		}
	}
	if !dbRestored {
		return dto.RestoreResult{}, fmt.Errorf("%w: archive is missing %s", ErrManifestInvalid, manifest.Database)
	}

	return dto.RestoreResult{Database: filepath.Base(s.dbPath), UploadsRestored: restored}, nil
}

// uploadEntryRel maps an archive entry to its path under the upload folder.
// Older archives stored uploads under static/uploads/; both layouts restore.
func uploadEntryRel(entryName string) string {
	for _, prefix := range []string{"uploads/", "static/uploads/"} {
		if strings.HasPrefix(entryName, prefix) {
			return strings.TrimPrefix(entryName, prefix)
		}
	}
	return ""
}

// Purge wipes all data and reseeds the default accounts. The sqlite file is
// kept in place so live connections stay valid.
func (s *backupService) Purge(ctx context.Context, actor Actor) (dto.PurgeResult, error) {
	migrator := s.db.WithContext(ctx).Migrator()
	for _, model := range models.All() {
		if migrator.HasTable(model) {
			if err := migrator.DropTable(model); err != nil {
				return dto.PurgeResult{}, fmt.Errorf("drop table: %w", err)
			}
		}
	}
	if err := s.db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return dto.PurgeResult{}, fmt.Errorf("recreate schema: %w", err)
	}

	removed := 0
	entries, err := os.ReadDir(s.uploadDir)
	if err == nil {
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(s.uploadDir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if s.reseed != nil {
		if err := s.reseed(ctx); err != nil {
			return dto.PurgeResult{}, fmt.Errorf("reseed defaults: %w", err)
		}
	}

	s.logger.Warn().Uint("admin_id", actor.ID).Int("uploads_removed", removed).Msg("factory reset performed")
	return dto.PurgeResult{UploadsRemoved: removed, DatabaseReset: true}, nil
}

func (s *backupService) readManifest(reader *zip.Reader) (backupManifest, error) {
	var manifest backupManifest
	for _, file := range reader.File {
		if file.Name != manifestName {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return manifest, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return manifest, err
		}

		var payload interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return manifest, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
		}
		if err := s.schema.Validate(payload); err != nil {
			return manifest, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
		}
		if err := json.Unmarshal(raw, &manifest); err != nil {
			return manifest, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
		}
		return manifest, nil
	}
	return manifest, fmt.Errorf("%w: %s missing", ErrManifestInvalid, manifestName)
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}

func extractZipFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
