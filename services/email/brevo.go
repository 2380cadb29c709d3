package emailsvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/memoraid/memoraid/core"
)

var brevoURL = "https://api.brevo.com/v3/smtp/email"

type (
	brevoAddress struct {
		Name  string `json:"name,omitempty"`
		Email string `json:"email"`
	}

	brevoMessage struct {
		Sender      brevoAddress      `json:"sender"`
		To          []brevoAddress    `json:"to"`
		Subject     string            `json:"subject"`
		HTMLContent string            `json:"htmlContent,omitempty"`
		TextContent string            `json:"textContent,omitempty"`
		TemplateID  int64             `json:"templateId,omitempty"`
		Params      map[string]string `json:"params,omitempty"`
		Tags        []string          `json:"tags,omitempty"`
	}

	brevoService struct {
		key        string
		templateID int64
		sender     brevoAddress
		subjPrefix string
		logger     core.Logger
	}
)

var _ core.EmailService = (*brevoService)(nil)

// NewBrevoService sends through the Brevo transactional API. With a template id configured,
// messages carrying Params are rendered by Brevo instead of locally.
func NewBrevoService(logger core.Logger, conf *core.Config) core.EmailService {
	return &brevoService{
		key:        conf.Email.BrevoAPIKey,
		templateID: conf.Email.BrevoTemplateID,
		sender:     brevoAddress{Name: conf.DefaultFromEmail.Name, Email: conf.DefaultFromEmail.Address},
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc *brevoService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.Send(context.Background(), msg); err != nil {
				svc.logger.Error("sending email", err)
			}
		}()
	}
}

func (svc *brevoService) prepare(msg core.EmailMessage) brevoMessage {
	bm := brevoMessage{
		Sender:  svc.sender,
		Subject: svc.subjPrefix + msg.Subject,
		Tags:    msg.Tags,
	}
	for _, to := range msg.To {
		bm.To = append(bm.To, brevoAddress{Name: to.Name, Email: to.Address})
	}
	if svc.templateID > 0 && len(msg.Params) > 0 {
		bm.TemplateID = svc.templateID
		bm.Params = msg.Params
	} else {
		bm.HTMLContent = msg.HTMLContent
		bm.TextContent = msg.TextContent
	}
	return bm
}

func (svc *brevoService) Send(ctx context.Context, msg *core.EmailMessage) error {
	useTemplate := svc.templateID > 0 && len(msg.Params) > 0
	if !useTemplate {
		if err := msg.Render(); err != nil {
			return errors.Wrap(err, "rendering email")
		}
		if !msg.HasContent() {
			return nil
		}
	}
	if !msg.HasRecipients() {
		return nil
	}

	body, err := json.Marshal(svc.prepare(*msg))
	if err != nil {
		return errors.Wrap(err, "encoding email")
	}
	res, err := rest.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: brevoURL,
		Headers: map[string]string{
			"api-key":      svc.key,
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
		Body: body,
	})
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}
