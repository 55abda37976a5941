package application

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/internal/domain/notification"
	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/validation"
)

const maxSubjectLen = 200

// NotificationService forwards ad-hoc admin messages to the dispatcher.
type NotificationService struct {
	mail   notification.Dispatcher
	logger *logrus.Logger
}

func NewNotificationService(mail notification.Dispatcher, logger *logrus.Logger) *NotificationService {
	return &NotificationService{mail: mail, logger: logger}
}

func messageRules() *validation.RuleSet {
	return validation.NewRuleSet().
		Field("to", validation.Required(), validation.Email()).
		Field("subject", validation.Required(), validation.MaxLen(maxSubjectLen)).
		Field("body", validation.Required())
}

func (s *NotificationService) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	subject = strings.TrimSpace(subject)
	if bad := messageRules().Validate(map[string]string{"to": to, "subject": subject, "body": body}); bad != nil {
		return apperror.Validation(bad)
	}
	if err := s.mail.Send(ctx, to, subject, body); err != nil {
		s.logger.WithError(err).WithField("to", to).Warn("notification dispatch failed")
		return apperror.Wrap(err, apperror.KindServiceUnavailable, "could not send the message, try again later")
	}
	return nil
}
