package billing

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	perrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/user"
)

// Webhook event types
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

var (
	// errors
	ErrUnknownTier      = errors.New("invalid plan")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type (
	CheckoutRequest struct {
		UserID        int64
		CustomerEmail string
		PriceID       string
		NewTier       string
		SuccessURL    string
		CancelURL     string
	}

	// Event is a verified payments provider event, reduced to what we act on.
	Event struct {
		ID   string
		Type string

		// checkout.session.completed
		Metadata       map[string]string
		CustomerID     string
		SubscriptionID string
		CustomerEmail  string

		// customer.subscription.*
		CancelAtPeriodEnd bool
		CurrentPeriodEnd  time.Time
	}

	// Gateway is the payments provider.
	Gateway interface {
		CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (url string, err error)
		// ParseWebhook verifies the signature (when a secret is configured) and decodes the event.
		ParseWebhook(payload []byte, signature string) (Event, error)
	}

	Pricing struct {
		CurrentTier string     `json:"current_tier"`
		CurrentRank int        `json:"current_rank"`
		Tiers       []TierInfo `json:"tiers"`
	}

	Service interface {
		Pricing(usr user.User) Pricing
		Checkout(ctx context.Context, usr user.User, tier string) (string, error)
		HandleWebhook(ctx context.Context, payload []byte, signature string) error
		ApplyDueDowngrades(ctx context.Context, now time.Time) (int, error)
	}

	service struct {
		gateway Gateway
		usrSvc  user.Service
		logger  core.Logger
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(gateway Gateway, usrSvc user.Service, logger core.Logger, conf *core.Config) Service {
	return &service{gateway: gateway, usrSvc: usrSvc, logger: logger, conf: conf}
}

func (svc *service) Pricing(usr user.User) Pricing {
	t := Tier(usr.TierOrFree())
	return Pricing{CurrentTier: t.Name, CurrentRank: t.Rank, Tiers: Tiers}
}

func (svc *service) Checkout(ctx context.Context, usr user.User, tier string) (string, error) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	price := svc.conf.Billing.Prices[tier]
	if price == "" {
		return "", core.NewValidationError(ErrUnknownTier, core.FieldError{Field: "tier", Error: ErrUnknownTier.Error()})
	}

	url, err := svc.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		UserID:        usr.ID,
		CustomerEmail: usr.Email,
		PriceID:       price,
		NewTier:       tier,
		SuccessURL:    svc.conf.FrontendURL("/billing/success"),
		CancelURL:     svc.conf.FrontendURL("/billing/cancel"),
	})
	if err != nil {
		svc.logger.Error("creating checkout session", err, usr)
		return "", core.NewUpstreamError("Something went wrong starting your payment.", err)
	}
	return url, nil
}

func (svc *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := svc.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return core.NewValidationError(ErrInvalidSignature)
	}

	switch evt.Type {
	case EventCheckoutCompleted:
		return svc.checkoutCompleted(ctx, evt)
	case EventSubscriptionUpdated:
		return svc.subscriptionUpdated(ctx, evt)
	case EventSubscriptionDeleted:
		return svc.subscriptionDeleted(ctx, evt)
	default:
		svc.logger.Debug("ignoring payments event", map[string]interface{}{"id": evt.ID, "type": evt.Type})
		return nil
	}
}

func (svc *service) checkoutCompleted(ctx context.Context, evt Event) error {
	newTier := Tier(evt.Metadata["new_plan"]).Name
	uid, err := strconv.ParseInt(evt.Metadata["user_id"], 10, 64)
	if err != nil || newTier == user.TierFree {
		svc.logger.Warn("checkout completed without usable metadata", map[string]interface{}{"id": evt.ID, "metadata": evt.Metadata})
		return nil
	}

	usr, err := svc.usrSvc.GetByID(ctx, uid)
	if err != nil {
		if perrors.Cause(err) == user.ErrNotFound {
			svc.logger.Warn("checkout completed for unknown user", map[string]interface{}{"id": evt.ID, "user_id": uid})
			return nil
		}
		return perrors.Wrap(err, "finding user by ID")
	}

	usr.Tier = newTier
	if evt.CustomerID != "" {
		usr.StripeCustomerID = null.StringFrom(evt.CustomerID)
	}
	if evt.SubscriptionID != "" {
		usr.SubscriptionID = null.StringFrom(evt.SubscriptionID)
	}
	usr.SubscriptionEndDate = null.Time{}
	usr.DowngradeTo = null.String{}
	_, err = svc.usrSvc.Update(ctx, usr)
	return perrors.Wrap(err, "upgrading user")
}

func (svc *service) findSubscriber(ctx context.Context, evt Event) (user.User, bool, error) {
	filters := make([]user.QueryFilter, 0, 2)
	if evt.SubscriptionID != "" {
		filters = append(filters, user.QueryFilter{SubscriptionID: evt.SubscriptionID})
	}
	if evt.CustomerID != "" {
		filters = append(filters, user.QueryFilter{StripeCustomerID: evt.CustomerID})
	}
	for _, filter := range filters {
		users, err := svc.usrSvc.Query(ctx, filter)
		if err != nil {
			return user.User{}, false, perrors.Wrap(err, "querying users")
		}
		if len(users) > 0 {
			return users[0], true, nil
		}
	}
	svc.logger.Warn("payments event for unknown subscriber", map[string]interface{}{"id": evt.ID, "type": evt.Type})
	return user.User{}, false, nil
}

func (svc *service) subscriptionUpdated(ctx context.Context, evt Event) error {
	usr, ok, err := svc.findSubscriber(ctx, evt)
	if err != nil || !ok {
		return err
	}
	if evt.CancelAtPeriodEnd {
		usr.SubscriptionEndDate = null.TimeFrom(evt.CurrentPeriodEnd.UTC())
		usr.DowngradeTo = null.StringFrom(user.TierFree)
	} else {
		usr.SubscriptionEndDate = null.Time{}
		usr.DowngradeTo = null.String{}
	}
	_, err = svc.usrSvc.Update(ctx, usr)
	return perrors.Wrap(err, "updating subscription")
}

func (svc *service) subscriptionDeleted(ctx context.Context, evt Event) error {
	usr, ok, err := svc.findSubscriber(ctx, evt)
	if err != nil || !ok {
		return err
	}
	usr.Tier = user.TierFree
	usr.SubscriptionID = null.String{}
	usr.SubscriptionEndDate = null.Time{}
	usr.DowngradeTo = null.String{}
	_, err = svc.usrSvc.Update(ctx, usr)
	return perrors.Wrap(err, "downgrading user")
}

// ApplyDueDowngrades moves users whose subscription ended to their downgrade tier.
func (svc *service) ApplyDueDowngrades(ctx context.Context, now time.Time) (int, error) {
	users, err := svc.usrSvc.Query(ctx, user.QueryFilter{SubscriptionEndBefore: now})
	if err != nil {
		return 0, perrors.Wrap(err, "querying due downgrades")
	}
	var n int
	for _, usr := range users {
		usr.Tier = Tier(usr.DowngradeTo.String).Name
		usr.SubscriptionEndDate = null.Time{}
		usr.DowngradeTo = null.String{}
		if usr.Tier == user.TierFree {
			usr.SubscriptionID = null.String{}
		}
		if _, err := svc.usrSvc.Update(ctx, usr); err != nil {
			return n, perrors.Wrap(err, "downgrading user")
		}
		n++
	}
	return n, nil
}
