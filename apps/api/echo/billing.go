package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/billing"
	"github.com/memoraid/memoraid/core/user"
)

// maxWebhookSize bounds webhook payloads, Stripe's are well below it.
const maxWebhookSize = 1 << 16

type billingApi struct {
	svc    billing.Service
	usrSvc user.Service
	logger core.Logger
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := billingApi{
		svc:    opts.BillingSvc,
		usrSvc: opts.UserSvc,
		logger: opts.Logger,
	}

	bg := g.Group("/billing")

	// called by the payments provider
	bg.POST("/webhook", api.webhook)

	ag := bg.Group("", jwt, ctxUserMiddleware(api.usrSvc))
	ag.GET("/pricing", api.pricing)
	ag.POST("/checkout/:tier", api.checkout)
}

// Handlers

func (api *billingApi) pricing(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, api.svc.Pricing(usr))
}

func (api *billingApi) checkout(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	url, err := api.svc.Checkout(ctx.Request().Context(), usr, ctx.Param("tier"))
	if err != nil {
		return errors.Wrap(err, "starting checkout")
	}
	return ctx.JSON(http.StatusOK, CheckoutResponse{URL: url})
}

func (api *billingApi) webhook(ctx echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookSize))
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}

	if err := api.svc.HandleWebhook(ctx.Request().Context(), payload, ctx.Request().Header.Get("Stripe-Signature")); err != nil {
		return errors.Wrap(err, "handling webhook")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

type (
	CheckoutResponse struct {
		URL string `json:"url"`
	}

	StatusResponse struct {
		Status string `json:"status"`
	}
)
