package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tuitionbook/core"
)

const (
	msgValidationFailed = "Validation failed"
	msgInternalError    = "Internal server error"
)

var (
	errUnauthenticated = core.NewAuthenticationError("user not authenticated")
	errRefreshExpired  = core.NewAuthorizationError("refresh has expired")
	errForbidden       = core.NewAuthorizationError("permission denied")
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func (s *Server) newAppHTTPErrorHandler(signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		resp := errorResponse{Success: false}
		var code int

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				resp.Message = fmt.Sprint(origErr.Message)
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			resp.Message = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			resp.Message = msgValidationFailed
			resp.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Errors[vErr.Field()] = vErr.Translate(s.translator)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			if len(origErr.Fields) > 0 {
				resp.Message = msgValidationFailed
				resp.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Errors[fErr.Field] = fErr.Error
				}
			} else {
				resp.Message = origErr.Error()
			}
		case *core.AuthorizationError:
			code = http.StatusForbidden
			if origErr.Unauthenticated {
				code = http.StatusUnauthorized
			}
			resp.Message = origErr.Error()
		case *core.NotFoundError:
			code = http.StatusNotFound
			resp.Message = origErr.Error()
		case *core.InvalidStateError:
			code = http.StatusBadRequest
			resp.Message = origErr.Error()
		default: // any other error, including *core.PersistenceError, is a server error
			code = http.StatusInternalServerError
			resp.Message = msgInternalError

			args := []interface{}{errors.Wrap(err, msgInternalError)}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, core.Person{ID: claims.Subject, Name: claims.Name, Email: claims.Email})
			}
			s.logger.Error(msgInternalError, args...)

			if ctx.Echo().Debug {
				resp.Message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
