package worker

// audit_worker.go
// Re-persists audit entries whose synchronous insert failed. The entry is
// serialized into the job payload, so nothing is lost while the database
// is briefly unavailable.

import (
	"context"
	"encoding/json"

	"appgrav/internal/model"
	"appgrav/internal/repository"

	"github.com/rs/zerolog/log"
)

type AuditWorker struct {
	repo repository.AuditRepository
}

func NewAuditWorker(repo repository.AuditRepository) *AuditWorker {
	return &AuditWorker{repo: repo}
}

// Process inserts the audit entry. An error requeues the job.
func (w *AuditWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var entry model.AuditLog
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Error().Err(err).Msg("audit_worker: invalid payload")
		return nil // unparseable — retrying cannot help
	}
	if err := w.repo.Create(ctx, &entry); err != nil {
		return err
	}
	log.Info().Str("action", entry.Action).Msg("audit_worker: entry persisted on retry")
	return nil
}
