package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core/review"
)

type reviewApi struct {
	svc      review.Service
	validate *validator.Validate
}

func registerReviewAPI(g *echo.Group, opts *Options) {
	api := reviewApi{svc: opts.ReviewSvc, validate: opts.Validate}

	rg := g.Group("/reviews")
	rg.GET("", api.list)
	rg.POST("", api.create)
}

func (api *reviewApi) list(ctx echo.Context) error {
	revs, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	if revs == nil {
		revs = []review.Review{}
	}
	return ctx.JSON(http.StatusOK, revs)
}

func (api *reviewApi) create(ctx echo.Context) error {
	var data review.NewReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rev, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating review")
	}
	return ctx.JSON(http.StatusCreated, rev)
}
