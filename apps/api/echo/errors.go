package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
)

var (
	errJWTMissing           = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errJWTInvalid           = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func isNotFound(err error) bool {
	switch err {
	case user.ErrNotFound, newsletter.ErrNotFound, studyplan.ErrNotFound:
		return true
	}
	return false
}

// fieldErrors flattens validation failures into a field -> message map.
func fieldErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	out := make(map[string]string, len(errs))
	for _, vErr := range errs {
		out[vErr.Field()] = vErr.Translate(translator)
	}
	return out
}

// statusFor maps a domain error onto its HTTP status and response payload.
// ok is false when err is unexpected and must be treated as a server error.
func statusFor(cause error, translator ut.Translator) (code int, message interface{}, ok bool) {
	switch e := cause.(type) {
	case *echo.HTTPError:
		if herr, isHTTP := e.Internal.(*echo.HTTPError); isHTTP {
			e = herr
		}
		return e.Code, e.Message, true
	case validator.ValidationErrors:
		return http.StatusBadRequest, fieldErrors(e, translator), true
	case *core.ValidationError:
		if e.Fields == nil {
			return http.StatusBadRequest, e.Error(), true
		}
		flds := make(map[string]string, len(e.Fields))
		for _, f := range e.Fields {
			flds[f.Field] = f.Error
		}
		return http.StatusBadRequest, flds, true
	case *core.ForbiddenError:
		return http.StatusForbidden, e.Message, true
	case *core.UpstreamError:
		return http.StatusBadGateway, e.Message, true
	}
	if isNotFound(cause) {
		return http.StatusNotFound, cause.Error(), true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message, handled := statusFor(errors.Cause(err), translator)
		if !handled {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID, _ = claims.UserID()
				usr.Email = claims.Email
			}
			logger.Error(message.(string), errors.Wrap(err, "unhandled"), usr)

			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}
		if m, isStr := message.(string); isStr {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
