package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyUserID    = "user_id"
	ContextKeyValidated = "api_key_validated"
	defaultHeaderName   = "X-API-Key"
)

type APIKeyConfig struct {
	// Keys maps an API key to the user it authenticates.
	Keys       map[string]string
	HeaderName string
	// Optional lets requests without a key through unauthenticated.
	Optional bool
}

type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = defaultHeaderName
	}
	return &APIKey{config: config}
}

func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := extractKey(c, ak.config.HeaderName)

		if apiKey == "" {
			if ak.config.Optional {
				c.Set(ContextKeyValidated, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "API key required via X-API-Key header, api_key query parameter or Authorization: Bearer",
			})
			return
		}

		userID, ok := ak.lookup(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Invalid API key",
			})
			return
		}

		c.Set(ContextKeyValidated, true)
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// lookup compares in constant time against every configured key.
func (ak *APIKey) lookup(apiKey string) (string, bool) {
	var userID string
	found := false
	for key, id := range ak.config.Keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			userID = id
			found = true
		}
	}
	return userID, found
}

func extractKey(c *gin.Context, header string) string {
	if key := c.GetHeader(header); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func RequireAPIKey(keys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{Keys: keys}).Middleware()
}

func OptionalAPIKey(keys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{Keys: keys, Optional: true}).Middleware()
}

// UserIDFromContext returns the user authenticated by the API key, if any.
func UserIDFromContext(c *gin.Context) (string, bool) {
	id, ok := c.Get(ContextKeyUserID)
	if !ok {
		return "", false
	}
	s, ok := id.(string)
	return s, ok && s != ""
}

func IsAPIKeyValidated(c *gin.Context) bool {
	return c.GetBool(ContextKeyValidated)
}
