package context

import "github.com/gin-gonic/gin"

// RequestIDFromGin reads the request id the logger middleware stored on the
// request context.
func RequestIDFromGin(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	return RequestIDFromContext(c.Request.Context())
}

// ActorFromGin reads the actor pair the session middleware stored on the
// request context. Both values are empty on unauthenticated routes.
func ActorFromGin(c *gin.Context) (string, string) {
	if c == nil || c.Request == nil {
		return "", ""
	}
	return ActorFromContext(c.Request.Context())
}
