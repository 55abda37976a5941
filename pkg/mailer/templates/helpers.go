package templates

import (
	"strconv"
	"time"
)

// Option pattern
type Option func(*EmailData)

func WithName(name string) Option   { return func(d *EmailData) { d.Name = name } }
func WithEmail(email string) Option { return func(d *EmailData) { d.Email = email } }
func WithTime(t time.Time) Option   { return func(d *EmailData) { d.Time = t.UTC() } }

func WithExpiry(at time.Time, ttl time.Duration) Option {
	return func(d *EmailData) {
		d.ExpiresAt = at.UTC()
		d.ExpiresIn = HumanDuration(ttl)
	}
}

func NewEmailData(appName string, opts ...Option) EmailData {
	d := EmailData{AppName: appName}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// NewForgotPasswordData carries the reset link; the link is the only place
// the raw secret appears.
func NewForgotPasswordData(appName, resetURL string, opts ...Option) EmailData {
	d := NewEmailData(appName, opts...)
	d.ResetURL = resetURL
	return d
}

// HumanDuration renders short durations the way mail copy phrases them,
// e.g. "10 min" or "2 h".
func HumanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0 min"
	case d < time.Minute:
		return strconv.Itoa(int(d.Seconds())) + " s"
	case d < time.Hour || d%time.Hour != 0:
		return strconv.Itoa(int(d.Minutes())) + " min"
	default:
		return strconv.Itoa(int(d.Hours())) + " h"
	}
}
