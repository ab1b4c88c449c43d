package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reviewstats.app/listener/internal/http/handler"
	"reviewstats.app/listener/internal/queue"
)

type RouterConfig struct {
	TraceHeaderName string
	WebhookSecret   string
	TokenHeaderName string
	Registry        *prometheus.Registry
}

func SetupRoutes(router *gin.Engine, producer queue.Producer, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	var reg prometheus.Registerer
	if cfg.Registry != nil {
		reg = cfg.Registry
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	webhookHandler := handler.NewGerritWebhookHandler(producer, handler.WebhookConfig{
		Secret:      cfg.WebhookSecret,
		TokenHeader: cfg.TokenHeaderName,
		TraceHeader: cfg.TraceHeaderName,
	}, reg)
	WebhookRouter(router.Group("/webhooks"), webhookHandler)
}

func WebhookRouter(router *gin.RouterGroup, handler *handler.GerritWebhookHandler) {
	router.POST("/gerrit", handler.HandleEvent)
}
