package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/repository"
	"github.com/examdesk/examdesk-api/internal/timeutil"
)

const dashboardCacheKey = "examdesk:admin:dashboard"

// Log view names accepted by Logs.
const (
	LogViewAccess      = "access"
	LogViewApplication = "application"
)

const defaultLogLimit = 200

// AdminDashboardService aggregates the admin landing view and log listings.
type AdminDashboardService interface {
	Dashboard(ctx context.Context, actor Actor) (dto.AdminDashboardResponse, error)
	Logs(ctx context.Context, actor Actor, view string, limit int) (dto.AdminLogsResponse, error)
}

type adminDashboardService struct {
	tenants  repository.TenantRepository
	users    repository.UserRepository
	exams    repository.ExamRepository
	attempts repository.AttemptRepository
	audit    repository.AuditRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewAdminDashboardService builds a new admin dashboard service. The cache
// client may be nil; the dashboard then recomputes on every request.
func NewAdminDashboardService(tenants repository.TenantRepository, users repository.UserRepository, exams repository.ExamRepository, attempts repository.AttemptRepository, audit repository.AuditRepository, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) AdminDashboardService {
	return &adminDashboardService{
		tenants:  tenants,
		users:    users,
		exams:    exams,
		attempts: attempts,
		audit:    audit,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "admin_dashboard_service").Logger(),
	}
}

func (s *adminDashboardService) Dashboard(ctx context.Context, actor Actor) (dto.AdminDashboardResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, dashboardCacheKey).Bytes(); err == nil {
			var resp dto.AdminDashboardResponse
			if json.Unmarshal(cached, &resp) == nil {
				return resp, nil
			}
		}
	}

	tenantCount, err := s.tenants.Count(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	examCount, err := s.exams.CountActive(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	attemptCount, err := s.attempts.Count(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	users, err := s.users.List(ctx, repository.UserFilter{})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	exams, err := s.exams.List(ctx, repository.ExamFilter{OrderByStart: "desc"})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}

	resp := dto.AdminDashboardResponse{
		Stats: dto.DashboardStats{
			Tenants:  tenantCount,
			Users:    userCount,
			Exams:    examCount,
			Attempts: attemptCount,
		},
		Tenants: dto.NewTenantResponseSlice(tenants),
		Users:   dto.NewUserResponseSlice(users),
		Exams:   dto.NewExamResponseSlice(exams, actor.Timezone),
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(resp); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, encoded, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache dashboard")
			}
		}
	}
	return resp, nil
}

func (s *adminDashboardService) Logs(ctx context.Context, actor Actor, view string, limit int) (dto.AdminLogsResponse, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	if view != LogViewAccess {
		view = LogViewApplication
	}
	resp := dto.AdminLogsResponse{View: view}

	if view == LogViewAccess {
		entries, err := s.audit.ListAccessLogs(ctx, limit)
		if err != nil {
			return dto.AdminLogsResponse{}, err
		}
		rows := make([]dto.AccessLogRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, dto.AccessLogRow{
				Time:      timeutil.Format(timeutil.ToLocal(e.CreatedAt, actor.Timezone)),
				IP:        e.IP,
				Path:      e.Path,
				Method:    e.Method,
				UserID:    e.UserID,
				UserAgent: e.UserAgent,
			})
		}
		resp.Access = rows
		return resp, nil
	}

	deletions, err := s.audit.ListDeletionLogs(ctx, limit)
	if err != nil {
		return dto.AdminLogsResponse{}, err
	}
	deletionRows := make([]dto.DeletionLogRow, 0, len(deletions))
	for _, d := range deletions {
		deletionRows = append(deletionRows, dto.DeletionLogRow{
			ExamID:       d.ExamID,
			ExamTitle:    d.ExamTitle,
			InstructorID: d.InstructorID,
			DeletedLocal: timeutil.Format(timeutil.ToLocal(d.DeletedAt, actor.Timezone)),
			Note:         d.Note,
		})
	}
	resp.Deletions = deletionRows

	attempts, err := s.attempts.ListRecent(ctx, limit)
	if err != nil {
		return dto.AdminLogsResponse{}, err
	}
	attemptRows := make([]dto.AttemptLogRow, 0, len(attempts))
	for _, a := range attempts {
		row := dto.AttemptLogRow{
			AttemptID:    a.ID,
			ExamID:       a.ExamID,
			StudentID:    a.StudentID,
			StartedLocal: timeutil.Format(timeutil.ToLocal(a.StartedAt, actor.Timezone)),
			ScorePercent: a.ScorePercent,
		}
		if a.SubmittedAt != nil {
			row.SubmittedLocal = timeutil.Format(timeutil.ToLocal(*a.SubmittedAt, actor.Timezone))
		}
		attemptRows = append(attemptRows, row)
	}
	resp.Attempts = attemptRows
	return resp, nil
}
