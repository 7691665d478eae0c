package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/common"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/config"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/httpapi/handlers"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, pub handlers.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(pub)

	r.GET("/ping", h.Ping)

	hooks := r.Group("/hooks")
	hooks.Use(middleware.HookAuth(cfg.JWTSecret, cfg.HookTokenHash))
	hooks.POST("/communication", h.CommunicationHook)
	hooks.POST("/ticket-status", h.TicketStatusHook)

	return r
}
