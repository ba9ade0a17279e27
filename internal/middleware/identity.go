package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/signaling-relay/internal/models"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"

	identityKey = "identity"
)

// Identity creates middleware that reads the caller identity from the
// X-User-Id and X-User-Name headers. The values are trusted as-is; requests
// missing either header are rejected before any upgrade happens.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.String(http.StatusBadRequest, "Invalid user id")
			c.Abort()
			return
		}

		name := strings.TrimSpace(c.GetHeader(HeaderUserName))
		if name == "" {
			c.String(http.StatusBadRequest, "Invalid user name")
			c.Abort()
			return
		}

		c.Set(identityKey, models.Identity{UserID: userID, DisplayName: name})
		c.Next()
	}
}

// GetIdentity returns the identity stored by Identity.
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}
