package jobqueue

import (
	"context"
	"fmt"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/internal/pkg/database"
	"github.com/greenfoldhq/greenfold/internal/pkg/mail"
)

// processNotificationJob writes an in-app notification row for a user.
func (q *Queue) processNotificationJob(ctx context.Context, job *Job) error {
	_ = ctx
	payload, err := NotificationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	if payload.UserID == 0 {
		return fmt.Errorf("notification payload has no user_id")
	}

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database unavailable")
	}

	return models.CreateNotification(db, payload.UserID, payload.Type, payload.Content, payload.ReferenceID)
}

// processMailJob renders a mail template and sends it via SMTP.
func (q *Queue) processMailJob(ctx context.Context, job *Job) error {
	_ = ctx
	payload, err := MailJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid mail payload: %w", err)
	}
	if payload.To == "" {
		return fmt.Errorf("mail payload has no recipient")
	}

	body := mail.RenderTemplate(payload.Template, payload.Data)
	return mail.SendMail(payload.To, payload.Subject, body)
}
