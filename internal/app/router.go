package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	httpx "github.com/Crohnos/dnd-generator/internal/http"
	httpH "github.com/Crohnos/dnd-generator/internal/http/handlers"
	"github.com/Crohnos/dnd-generator/internal/observability"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

const serviceName = "dnd-generator"

func wireServer(db *gorm.DB, log *logger.Logger, cfg Config, metrics *observability.Metrics, s Services) *httpx.Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	health := httpH.NewHealthHandler(nil)
	if sqlDB, err := db.DB(); err == nil {
		health = httpH.NewHealthHandler(sqlDB)
	}
	return httpx.NewServer(httpx.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     serviceName,
		CampaignHandler: httpH.NewCampaignHandler(s.Campaigns, s.Generation),
		JobHandler:      httpH.NewJobHandler(s.Generation),
		HealthHandler:   health,
	})
}
