// Package paymentsvc is the Stripe payments gateway.
package paymentsvc

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/billing"
)

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

var _ billing.Gateway = (*StripeGateway)(nil)

func NewStripeGateway(conf *core.Config) *StripeGateway {
	api := new(client.API)
	api.Init(conf.Billing.StripeSecretKey, nil)
	return &StripeGateway{api: api, webhookSecret: conf.Billing.StripeWebhookSecret}
}

func (gw *StripeGateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(req.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatInt(req.UserID, 10))
	params.AddMetadata("new_plan", req.NewTier)

	sess, err := gw.api.CheckoutSessions.New(params)
	if err != nil {
		return "", errors.Wrap(err, "creating checkout session")
	}
	return sess.URL, nil
}

func (gw *StripeGateway) ParseWebhook(payload []byte, signature string) (billing.Event, error) {
	var (
		evt stripe.Event
		err error
	)
	if gw.webhookSecret != "" {
		evt, err = webhook.ConstructEventWithOptions(payload, signature, gw.webhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
	} else {
		err = json.Unmarshal(payload, &evt)
	}
	if err != nil {
		return billing.Event{}, errors.Wrap(err, "parsing webhook")
	}
	return toEvent(evt)
}

func toEvent(evt stripe.Event) (billing.Event, error) {
	out := billing.Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case billing.EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return billing.Event{}, errors.Wrap(err, "decoding checkout session")
		}
		out.Metadata = sess.Metadata
		out.CustomerEmail = sess.CustomerEmail
		if sess.CustomerDetails != nil && out.CustomerEmail == "" {
			out.CustomerEmail = sess.CustomerDetails.Email
		}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}

	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return billing.Event{}, errors.Wrap(err, "decoding subscription")
		}
		out.SubscriptionID = sub.ID
		out.Metadata = sub.Metadata
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		if sub.CurrentPeriodEnd > 0 {
			out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}
	}
	return out, nil
}
