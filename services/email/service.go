// Package emailsvc holds the email providers.
package emailsvc

import (
	"github.com/memoraid/memoraid/core"
)

// NewService returns the provider selected by conf.Email.Provider.
func NewService(logger core.Logger, conf *core.Config) core.EmailService {
	switch conf.Email.Provider {
	case "brevo":
		return NewBrevoService(logger, conf)
	case "sendgrid":
		return NewSendgridService(logger, conf)
	default:
		return NewConsoleService(logger, conf)
	}
}
