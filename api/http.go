package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/auth"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/service/booking"
)

// Identity is asserted by the gateway in front of the API; these headers are trusted as given.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderWorkspace = "X-Workspace-ID"
	HeaderActor     = "X-Actor-ID"
	HeaderToken     = "X-Booking-Token"
)

// TokenService mints and checks the signed links sent to contacts.
type TokenService interface {
	Mint(bookingID, workspaceID int64) (string, error)
	Verify(token string, bookingID int64) (*auth.BookingClaims, error)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeError maps err onto the status and public message of its code. Untyped
// errors become 500 without leaking their text.
func writeError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	meta := apperr.MetadataFor(code)
	body := errorBody{Code: string(code), Message: meta.PublicMessage}
	if typed := apperr.As(err); typed != nil && meta.DetailsAllowed {
		body.Message = typed.Message()
		body.Details = typed.Details()
	}
	c.AbortWithStatusJSON(meta.HTTPStatus, gin.H{"error": body})
}

func validationError(message string) error {
	return apperr.New(apperr.CodeValidation, message)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError("invalid " + name)
	}
	return id, nil
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperr.Newf(apperr.CodeValidation, "%s must be RFC 3339", field).
			WithDetails(map[string]string{field: "rfc3339"})
	}
	return t, nil
}

// staffActor reads the staff identity headers.
func staffActor(c *gin.Context) (booking.Actor, bool) {
	actorID := strings.TrimSpace(c.GetHeader(HeaderActor))
	workspaceID, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(HeaderWorkspace)), 10, 64)
	if actorID == "" || err != nil || workspaceID <= 0 {
		return booking.Actor{}, false
	}
	return booking.StaffActor(actorID, workspaceID), true
}

func requireStaff(c *gin.Context) (booking.Actor, bool) {
	actor, ok := staffActor(c)
	if !ok {
		writeError(c, apperr.New(apperr.CodeUnauthorized, "staff identity required"))
	}
	return actor, ok
}

func bookingToken(c *gin.Context) string {
	if token := c.GetHeader(HeaderToken); token != "" {
		return token
	}
	return c.Query("token")
}

// RequestID tags the request context with an id for every log line it produces.
func RequestID(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logg.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func AccessLog(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		ctx := logg.WithFields(c.Request.Context(), map[string]any{
			"method":     c.Request.Method,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(started).Milliseconds(),
		})
		if c.Writer.Status() >= 500 {
			logg.Warn(ctx, "request failed")
			return
		}
		logg.Info(ctx, "request served")
	}
}
