package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/user"
)

type newsletterApi struct {
	svc      newsletter.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerNewsletterAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := newsletterApi{
		svc:      opts.NewsletterSvc,
		usrSvc:   opts.UserSvc,
		validate: opts.Validate,
	}

	ng := g.Group("/newsletters", jwt, ctxUserMiddleware(api.usrSvc))
	ng.POST("/preview", api.preview)
	ng.POST("", api.create)
	ng.GET("", api.dashboard)

	// detail endpoints
	ng.GET("/:id", api.retrieve)
	ng.GET("/:id/emails", api.emails)
	ng.PUT("/:id/send-time", api.updateSendTime)
	ng.POST("/:id/deactivate", api.deactivate)
	ng.POST("/:id/toggle", api.toggle)
	ng.DELETE("/:id", api.destroy)
}

// Handlers

func (api *newsletterApi) preview(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data newsletter.DraftRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	draft, err := api.svc.Preview(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "previewing newsletter")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *newsletterApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data newsletter.ConfirmRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	nl, err := api.svc.Confirm(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "confirming newsletter")
	}
	return ctx.JSON(http.StatusCreated, nl)
}

func (api *newsletterApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	dash, err := api.svc.Dashboard(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "loading dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *newsletterApi) retrieve(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	nl, err := api.svc.Get(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "getting newsletter")
	}
	return ctx.JSON(http.StatusOK, nl)
}

func (api *newsletterApi) emails(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	emails, err := api.svc.Emails(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "listing newsletter emails")
	}
	if emails == nil {
		emails = []delivery.Email{}
	}
	return ctx.JSON(http.StatusOK, emails)
}

func (api *newsletterApi) updateSendTime(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data newsletter.UpdateSendTime
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSendTime")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	nl, err := api.svc.UpdateSendTime(ctx.Request().Context(), usr, id, data.SendTime)
	if err != nil {
		return errors.Wrap(err, "updating send time")
	}
	return ctx.JSON(http.StatusOK, nl)
}

func (api *newsletterApi) deactivate(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	nl, err := api.svc.Deactivate(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "deactivating newsletter")
	}
	return ctx.JSON(http.StatusOK, nl)
}

func (api *newsletterApi) toggle(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	nl, err := api.svc.Toggle(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "toggling newsletter")
	}
	return ctx.JSON(http.StatusOK, nl)
}

func (api *newsletterApi) destroy(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting newsletter")
	}
	return ctx.NoContent(http.StatusNoContent)
}
