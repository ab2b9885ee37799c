package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/models"
)

// AuditRepository records and lists audit trail entries: exam deletions and
// raw access logs.
type AuditRepository interface {
	CreateDeletionLog(ctx context.Context, entry *models.ExamDeletionLog) error
	ListDeletionLogs(ctx context.Context, limit int) ([]models.ExamDeletionLog, error)
	CreateAccessLog(ctx context.Context, entry *models.AccessLog) error
	ListAccessLogs(ctx context.Context, limit int) ([]models.AccessLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository instantiates a GORM-backed repository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) CreateDeletionLog(ctx context.Context, entry *models.ExamDeletionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) ListDeletionLogs(ctx context.Context, limit int) ([]models.ExamDeletionLog, error) {
	var entries []models.ExamDeletionLog
	err := r.db.WithContext(ctx).Order("deleted_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *auditRepository) CreateAccessLog(ctx context.Context, entry *models.AccessLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) ListAccessLogs(ctx context.Context, limit int) ([]models.AccessLog, error) {
	var entries []models.AccessLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
