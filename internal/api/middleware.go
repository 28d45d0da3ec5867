package api

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
)

const (
	userKey  = "user"
	tokenKey = "token"
)

// handleErrors renders the last handler error as {code, message} with the matching HTTP status.
func handleErrors(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	e := errors.Convert(c.Errors.Last().Err)
	if e.Code == errors.CodeInternal || e.Code == errors.CodeUnavailable {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", c.Errors.Last().Err,
		)
	}

	c.JSON(e.HTTPStatusCode(), gin.H{
		"code":    e.Code.String(),
		"message": e.Message,
	})
}

// authenticate resolves the bearer token, if any. WebSocket clients pass it as the access_token
// query parameter. A missing or stale token is not an error, and a token that cannot be resolved
// leaves the request anonymous.
func (a *API) authenticate(c *gin.Context) {
	token := bearerToken(c)
	u, err := a.auth.CurrentUser(c.Request.Context(), token)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "api: resolve session failed, continuing anonymously",
			"path", c.FullPath(),
			"error", err,
		)
		u = nil
	}

	c.Set(tokenKey, token)
	if u != nil {
		c.Set(userKey, u)
	}
	c.Next()
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("access_token")
}

func currentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(userKey); ok {
		return v.(*domain.User)
	}
	return nil
}
