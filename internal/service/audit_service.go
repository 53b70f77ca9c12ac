package service

import (
	"context"
	"encoding/json"

	"appgrav/internal/dto"
	"appgrav/internal/model"
	"appgrav/internal/repository"

	"github.com/rs/zerolog/log"
)

// Audit action codes.
const (
	AuditActionLogin     = "LOGIN"
	AuditActionLoginFail = "LOGIN_FAILED"
	AuditActionLockout   = "ACCOUNT_LOCKED"
	AuditActionLogout    = "LOGOUT"
	AuditActionPinChange = "PIN_CHANGE"
	AuditActionCreate    = "CREATE"
	AuditActionUpdate    = "UPDATE"
	AuditActionDelete    = "DELETE"
)

const auditModuleUsers = "users"
const auditModuleAuth = "auth"

// AuditService is the append-only sink for security-relevant events.
type AuditService interface {
	// Record persists one entry synchronously. A failed write never reaches
	// the caller: it is logged and handed to the retry queue.
	Record(ctx context.Context, e *model.AuditLog)
	List(ctx context.Context, q dto.AuditLogQuery) (*dto.AuditLogResponse, error)
}

// auditRetryQueue decouples the sink from the worker package.
type auditRetryQueue interface {
	EnqueueAuditRetry(ctx context.Context, e *model.AuditLog) error
}

type auditService struct {
	repo  repository.AuditRepository
	retry auditRetryQueue // nil disables the retry path
}

func NewAuditService(repo repository.AuditRepository, retry auditRetryQueue) AuditService {
	return &auditService{repo: repo, retry: retry}
}

func (s *auditService) Record(ctx context.Context, e *model.AuditLog) {
	err := s.repo.Create(ctx, e)
	if err == nil {
		return
	}
	log.Error().
		Err(err).
		Str("action", e.Action).
		Str("module", e.Module).
		Msg("audit write failed, enqueueing retry")
	if s.retry == nil {
		return
	}
	if err := s.retry.EnqueueAuditRetry(ctx, e); err != nil {
		log.Error().Err(err).Str("action", e.Action).Msg("audit retry enqueue failed, entry dropped")
	}
}

func (s *auditService) List(ctx context.Context, q dto.AuditLogQuery) (*dto.AuditLogResponse, error) {
	entries, count, err := s.repo.List(ctx, repository.AuditFilter{
		UserID: q.UserID,
		Module: q.Module,
		Action: q.Action,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.AuditLogResponse{Count: count, Data: make([]dto.AuditLogEntry, len(entries))}
	for i, e := range entries {
		entry := dto.AuditLogEntry{
			ID:         e.ID.String(),
			Action:     e.Action,
			Module:     e.Module,
			EntityType: e.EntityType,
			Severity:   e.Severity,
			CreatedAt:  e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if e.UserID != nil {
			id := e.UserID.String()
			entry.UserID = &id
		}
		if e.EntityID != nil {
			id := e.EntityID.String()
			entry.EntityID = &id
		}
		resp.Data[i] = entry
	}
	return resp, nil
}

// snapshot marshals a value for the old/new audit columns; marshal failures
// degrade to null rather than blocking the audit write.
func snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("audit snapshot marshal failed")
		return nil
	}
	return b
}
