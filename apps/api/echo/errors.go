package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = echo.Map{"error": origErr.Message}
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if m, ok := origErr.Message.(string); ok {
				message = echo.Map{"error": m}
			} else {
				message = origErr.Message
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = echo.Map{"error": origErr.Error()}
			}
			code = http.StatusBadRequest
		case *classroom.OperationNotAllowedError:
			code = http.StatusForbidden
			message = echo.Map{"payload": origErr.Reason}
		case *classroom.InvalidPayloadError:
			code = http.StatusBadRequest
			message = echo.Map{"payload": origErr.Reason}
		case *classroom.InvalidHierarchyError:
			code = http.StatusBadRequest
			message = echo.Map{"payload": origErr.Reason}
		default:
			switch origErr {
			case classroom.ErrUnauthenticated:
				metrics.AuthzDenials.WithLabelValues("unauthenticated").Inc()
				code = http.StatusUnauthorized
				message = echo.Map{"error": origErr.Error()}
			case classroom.ErrForbidden:
				metrics.AuthzDenials.WithLabelValues("forbidden").Inc()
				code = http.StatusForbidden
				message = echo.Map{"error": origErr.Error()}
			case classroom.ErrNotFound, user.ErrNotFound:
				code = http.StatusNotFound
				message = echo.Map{"error": "not found"}
			case classroom.ErrAmbiguousHierarchy:
				// reported as a routine denial, recorded as a data-integrity anomaly
				metrics.HierarchyAnomalies.Inc()
				logger.Warn("hierarchy anomaly: " + ctx.Request().Method + " " + ctx.Request().RequestURI)
				code = http.StatusNotFound
				message = echo.Map{"error": "not found"}
			case classroom.ErrConflict:
				code = http.StatusConflict
				message = echo.Map{"error": origErr.Error()}
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = echo.Map{"error": msg}

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
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
}
