package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/adapters/signal"
	"github.com/dkeye/LiveClass/internal/app/orch"
	"github.com/dkeye/LiveClass/internal/config"
	"github.com/dkeye/LiveClass/internal/domain"
)

const (
	sessionName    = "LiveClassSessions"
	sessionKey     = "participant_id"
	IdentityHeader = "X-Participant-ID"
)

// ParticipantMiddleware asserts the caller's identity. A trusted upstream
// may pass it in IdentityHeader; otherwise it lives in the session cookie
// and is minted on first sight.
func ParticipantMiddleware(trustHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if trustHeader {
			if h := c.GetHeader(IdentityHeader); h != "" {
				if len(h) > domain.MaxParticipantIDLen {
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity too long"})
					return
				}
				c.Set(signal.ParticipantKey, h)
				c.Next()
				return
			}
		}

		session := sessions.Default(c)
		pid, _ := session.Get(sessionKey).(string)
		if pid == "" {
			pid = string(domain.NewParticipantID())
			session.Set(sessionKey, pid)
			if err := session.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(signal.ParticipantKey, pid)
		c.Next()
	}
}

// SetupRouter wires every route. Signaling sockets live until ctx ends,
// so callers cancel it only after rooms have been told they are closing.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ice []webrtc.ICEServer) (*gin.Engine, *signal.SignalWSController) {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &Handlers{Orch: o, ICE: ice}
	r.GET("/healthz", h.Health)

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 24 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ParticipantMiddleware(cfg.TrustIdentityHeader))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.GET("/ice-servers", h.ICEServers)
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:id", h.GetRoom)
	api.GET("/rooms/:id/participants", h.ListParticipants)
	api.POST("/rooms/:id/end", h.EndRoom)
	api.DELETE("/rooms/:id/participants/:pid", h.RemoveParticipant)

	ctrl := signal.NewSignalWSController(o, cfg, ice)
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("participant_id", c.GetString(signal.ParticipantKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r, ctrl
}
