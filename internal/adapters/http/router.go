// Package http exposes a read-only operational API over the room
// registry. It is observability only; the chat protocol itself runs on
// the control and relay transports.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hmuro/roomcast/internal/config"
	"github.com/hmuro/roomcast/internal/core"
)

func SetupRouter(cfg *config.Config, registry *core.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": registry.List()})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
