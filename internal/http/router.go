package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/Crohnos/dnd-generator/internal/http/handlers"
	httpMW "github.com/Crohnos/dnd-generator/internal/http/middleware"
	"github.com/Crohnos/dnd-generator/internal/observability"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string

	CampaignHandler *httpH.CampaignHandler
	JobHandler      *httpH.JobHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Campaigns
		if cfg.CampaignHandler != nil {
			api.POST("/campaigns", cfg.CampaignHandler.Create)
			api.GET("/campaigns", cfg.CampaignHandler.List)
			api.GET("/campaigns/:id", cfg.CampaignHandler.Get)
			api.PATCH("/campaigns/:id", cfg.CampaignHandler.Update)
			api.DELETE("/campaigns/:id", cfg.CampaignHandler.Delete)
			api.POST("/campaigns/:id/generate", cfg.CampaignHandler.Generate)
			api.GET("/campaigns/:id/status", cfg.CampaignHandler.Status)
			api.GET("/campaigns/:id/world", cfg.CampaignHandler.World)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}
