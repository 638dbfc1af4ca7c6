package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/middleware"
	"github.com/sirupsen/logrus"
)

const identityKey = "mentorbridge.identity"

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    status,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Info("request")
		default:
			entry.Debug("request")
		}
	}
}

func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := mentorbridge.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = mentorbridge.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authorize resolves the bearer token and checks action before the handler runs.
func (h *handler) authorize(action mentorbridge.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			h.fail(c, mentorbridge.ErrUnauthenticated)
			c.Abort()
			return
		}

		id, err := h.engine.AuthorizeAction(c.Request.Context(), token, action)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(mentorbridge.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func identity(c *gin.Context) *mentorbridge.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*mentorbridge.Identity)
	return id
}
