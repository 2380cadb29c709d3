package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
)

type studyPlanApi struct {
	svc      studyplan.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerStudyPlanAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := studyPlanApi{
		svc:      opts.StudyPlanSvc,
		usrSvc:   opts.UserSvc,
		validate: opts.Validate,
	}

	sg := g.Group("/study-plans", jwt, ctxUserMiddleware(api.usrSvc))
	sg.POST("/extract", api.extract, middleware.BodyLimit("11M"))
	sg.POST("", api.create)
	sg.GET("", api.list)

	// detail endpoints
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/toggle", api.toggle)
	sg.DELETE("/:id", api.destroy)
}

// Handlers

// extract reads the topics of an uploaded syllabus or course material (multipart "file" and "kind").
func (api *studyPlanApi) extract(ctx echo.Context) error {
	var data studyplan.ExtractRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExtractRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	file, filename, err := bindFile(ctx, "file")
	if err != nil {
		return err
	}

	ext, err := api.svc.ExtractTopics(ctx.Request().Context(), file, filename, data.Kind)
	if err != nil {
		return errors.Wrap(err, "extracting topics")
	}
	return ctx.JSON(http.StatusOK, ext)
}

func (api *studyPlanApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data studyplan.NewStudyPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudyPlan")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sp, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating study plan")
	}
	return ctx.JSON(http.StatusCreated, sp)
}

func (api *studyPlanApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	plans, err := api.svc.List(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing study plans")
	}
	if plans == nil {
		plans = []studyplan.Summary{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *studyPlanApi) retrieve(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	detail, err := api.svc.Get(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "getting study plan")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *studyPlanApi) toggle(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	sp, err := api.svc.Toggle(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "toggling study plan")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *studyPlanApi) destroy(ctx echo.Context) error {
	usr, id, err := bindUserAndID(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting study plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}
