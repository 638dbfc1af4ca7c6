// Package httpapi serves the MentorBridge JSON API over gin.
//
// Every protected route authorizes its bearer token against the capability
// table before the handler runs; handlers then call the Engine with the
// resolved identity. Errors are rendered as {"detail", "code"} with the
// status of their kind.
package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/permission"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Options configures the router.
type Options struct {
	// Mode is a gin mode: debug, release or test.
	Mode        string
	CORSOrigins []string
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

type handler struct {
	engine *mentorbridge.Engine
	logger logrus.FieldLogger
}

// New builds the API handler, CORS included.
func New(engine *mentorbridge.Engine, logger logrus.FieldLogger, opts Options) http.Handler {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	h := &handler{engine: engine, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), requestContext())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	auth := r.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.GET("/me", h.authorize(permission.ActionViewMe), h.me)
	auth.POST("/revoke", h.authorize(permission.ActionViewMe), h.revokeAll)

	r.GET("/users/:id", h.getUser)
	r.PUT("/users/profile", h.authorize(permission.ActionEditProfile), h.updateProfile)
	r.GET("/mentors", h.searchMentors)

	sessions := r.Group("/sessions")
	sessions.GET("", h.authorize(permission.ActionListSessions), h.listSessions)
	sessions.POST("", h.authorize(permission.ActionBookSession), h.bookSession)
	sessions.GET("/:id", h.authorize(permission.ActionListSessions), h.getSession)
	sessions.PUT("/:id/status", h.authorize(permission.ActionTransitionSession), h.transitionSession)

	r.GET("/messages", h.authorize(permission.ActionListMessages), h.listMessages)
	r.POST("/messages", h.authorize(permission.ActionSendMessage), h.sendMessage)

	r.POST("/feedback", h.authorize(permission.ActionSubmitFeedback), h.submitFeedback)
	r.GET("/feedback/:user_id", h.listFeedback)

	r.GET("/admin/stats", h.authorize(permission.ActionViewStats), h.stats)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Detail: "route not found", Code: string(mentorbridge.KindNotFound)})
	})

	return cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)
}
