package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Worker drains EmailJobs from a queue and delivers them. Malformed jobs are
// dropped; send failures are requeued.
type Worker struct {
	Sender      Sender
	Logger      *logrus.Logger
	SendTimeout time.Duration
}

// Handle decodes and delivers one message body. The returned bool reports
// whether a failure is worth retrying.
func (w *Worker) Handle(ctx context.Context, body []byte) (retry bool, err error) {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return false, errors.Join(ErrInvalidJob, err)
	}
	if err := job.Validate(); err != nil {
		return false, err
	}
	timeout := w.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := w.Sender.Send(c, job.To, job.Subject, job.Text); err != nil {
		return true, err
	}
	return false, nil
}

// Run acks, drops or requeues each delivery until msgs closes or ctx ends.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			retry, err := w.Handle(ctx, msg.Body)
			switch {
			case err == nil:
				_ = msg.Ack(false)
			case retry:
				w.Logger.WithError(err).Warn("send failed; requeueing")
				_ = msg.Nack(false, true)
			default:
				w.Logger.WithError(err).Error("dropping bad email job")
				_ = msg.Nack(false, false)
			}
		}
	}
}
