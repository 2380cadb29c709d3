package echoapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/user"
)

// maxUploadSize caps uploaded syllabi and course material.
const maxUploadSize = 10 << 20

var errFileMissing = errors.New("a file is required")

// bindID parses the ":id" path param; anything but a positive integer is not found.
func bindID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// bindUserAndID returns the context user along with the ":id" path param.
func bindUserAndID(ctx echo.Context, svc user.Service) (user.User, int64, error) {
	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return user.User{}, 0, errors.Wrap(err, "getting context user")
	}
	id, err := bindID(ctx)
	return usr, id, err
}

// bindFile reads the multipart file of the given form field.
func bindFile(ctx echo.Context, field string) ([]byte, string, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, "", core.NewValidationError(errFileMissing, core.FieldError{Field: field, Error: errFileMissing.Error()})
		}
		return nil, "", errors.Wrap(err, "reading form file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", errors.Wrap(err, "opening form file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		return nil, "", errors.Wrap(err, "reading form file")
	}
	return data, fh.Filename, nil
}
