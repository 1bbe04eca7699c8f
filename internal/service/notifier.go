package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"snapfeed/internal/domain"
)

type NotificationKind string

const (
	NotificationResetPassword NotificationKind = "reset_password"
	NotificationVerifyEmail   NotificationKind = "verify_email"
)

// Notifier delivers one-off tokens (password reset, email verification) to a user.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, user domain.User, token string) error
}

// LogNotifier writes tokens to the log. Used until a mail transport exists.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (n LogNotifier) Notify(_ context.Context, kind NotificationKind, user domain.User, token string) error {
	n.Logger.WithFields(logrus.Fields{
		"kind":    kind,
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token,
	}).Info("token issued")
	return nil
}
