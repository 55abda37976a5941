package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Publisher puts a JSON payload on a queue. helpers.RabbitPublisher implements it.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueDispatcher hands mail to the email worker through RabbitMQ. A publish
// failure is a delivery failure.
type QueueDispatcher struct {
	pub Publisher
	now func() time.Time
}

func NewQueueDispatcher(pub Publisher) *QueueDispatcher {
	return &QueueDispatcher{pub: pub, now: time.Now}
}

func (d *QueueDispatcher) Send(ctx context.Context, to, subject, body string) error {
	job := EmailJob{To: to, Subject: subject, Text: body, QueuedAt: d.now().UTC()}
	if err := job.Validate(); err != nil {
		return err
	}
	if err := d.pub.PublishJSON(ctx, job); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// LogDispatcher writes mail to the log instead of sending it. Development only:
// bodies may carry one-time secrets.
type LogDispatcher struct {
	logger *logrus.Logger
}

func NewLogDispatcher(logger *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, to, subject, body string) error {
	d.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("email not sent (log transport)")
	return nil
}
