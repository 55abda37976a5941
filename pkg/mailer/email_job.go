package mailer

import (
	"errors"
	"strings"
	"time"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Jobs carry fully rendered content; the worker only delivers.
type EmailJob struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Text     string    `json:"text"`
	QueuedAt time.Time `json:"queued_at"`
}

var ErrInvalidJob = errors.New("mailer: invalid email job")

// Validate rejects jobs that can never be delivered.
func (j EmailJob) Validate() error {
	switch {
	case strings.TrimSpace(j.To) == "":
		return errors.Join(ErrInvalidJob, errors.New("missing recipient"))
	case strings.TrimSpace(j.Subject) == "":
		return errors.Join(ErrInvalidJob, errors.New("missing subject"))
	}
	return nil
}
