package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/walkidni/shelfshift-sub001/internal/controller"
	"github.com/walkidni/shelfshift-sub001/internal/middleware"
)

// InitRoutes 注册所有路由
// importCooldown 是同一客户端两次导入之间的冷却时长，0 表示不限流
func InitRoutes(r *gin.Engine, importCtl *controller.ImportController, importCooldown time.Duration) {
	// 健康检查
	r.GET("/health", importCtl.Health)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// GET /api/v1/detect?url=
		api.GET("/detect", importCtl.Detect)

		// POST /api/v1/import 单条或批量
		api.POST("/import", middleware.ImportCooldown(importCooldown), importCtl.Import)

		// GET /api/v1/imports 导入历史
		api.GET("/imports", importCtl.ListImports)
	}
}
