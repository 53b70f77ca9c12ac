package worker

// email_worker.go
// Processes security-alert jobs from QueueAlertEmail.
// Notifies operations when an account is locked after repeated PIN failures.

import (
	"context"
	"encoding/json"
	"fmt"

	"appgrav/internal/infra"

	"github.com/rs/zerolog/log"
)

// LockoutAlertPayload is the job envelope sent to QueueAlertEmail.
type LockoutAlertPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	LockedUntil string `json:"locked_until"` // ISO 8601
}

// EmailWorker sends lockout alerts via SMTP.
type EmailWorker struct {
	mailer  *infra.Mailer
	alertTo string
}

func NewEmailWorker(mailer *infra.Mailer, alertTo string) *EmailWorker {
	return &EmailWorker{mailer: mailer, alertTo: alertTo}
}

// Process sends the alert email. An error requeues the job.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload LockoutAlertPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil // unparseable — retrying cannot help
	}
	if w.mailer == nil || w.alertTo == "" {
		log.Warn().Str("user_id", payload.UserID).Msg("email_worker: SMTP not configured — alert dropped")
		return nil
	}

	subject := fmt.Sprintf("Account locked: %s", payload.DisplayName)
	body := fmt.Sprintf(
		"Account %s (%s) was locked after repeated failed PIN attempts.\nLocked until: %s",
		payload.DisplayName, payload.UserID, payload.LockedUntil,
	)
	if err := w.mailer.SendAlert(w.alertTo, subject, body); err != nil {
		return err
	}
	log.Info().Str("user_id", payload.UserID).Msg("email_worker: lockout alert sent")
	return nil
}
