package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/walkidni/shelfshift-sub001/internal/api/dto"
	"github.com/walkidni/shelfshift-sub001/internal/service"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
)

type ImportController struct {
	importer   *service.ImporterSvc
	history    *service.HistorySvc
	payloadLog *service.PayloadLogSvc

	appName string
	debug   bool
}

func NewImportController(
	importer *service.ImporterSvc,
	history *service.HistorySvc,
	payloadLog *service.PayloadLogSvc,
	appName string,
	debug bool,
) *ImportController {
	return &ImportController{
		importer:   importer,
		history:    history,
		payloadLog: payloadLog,
		appName:    appName,
		debug:      debug,
	}
}

// normalizeRequestURL 没写协议的链接补 https
func normalizeRequestURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "://") {
		return "https://" + trimmed
	}
	return trimmed
}

// statusForError 导入错误映射到 HTTP 状态码
func statusForError(err error) int {
	var configErr *service.ConfigError
	if errors.As(err, &configErr) {
		return http.StatusServiceUnavailable
	}
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity
	}
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= http.StatusBadRequest {
			return statusErr.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Health 健康检查
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *ImportController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "app": h.appName})
}

// Detect URL 平台识别
// @Summary 识别商品链接所属平台
// @Tags Import
// @Produce json
// @Param url query string true "商品链接"
// @Success 200 {object} urldetect.Info
// @Failure 400 {object} map[string]string "缺少 url 参数"
// @Router /api/v1/detect [get]
func (h *ImportController) Detect(c *gin.Context) {
	rawURL := normalizeRequestURL(c.Query("url"))
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url 参数不能为空"})
		return
	}
	c.JSON(http.StatusOK, h.importer.Detect(rawURL))
}

// Import 导入商品链接
// @Summary 导入一条或多条商品链接并规范化
// @Description product_urls 可以是字符串或字符串数组；多条时部分失败不影响其余
// @Tags Import
// @Accept json
// @Produce json
// @Param request body dto.ImportReq true "导入参数"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string "参数错误"
// @Router /api/v1/import [post]
func (h *ImportController) Import(c *gin.Context) {
	var req dto.ImportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	urls := req.CleanURLs()
	if len(urls) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_urls 不能为空"})
		return
	}
	for i := range urls {
		urls[i] = normalizeRequestURL(urls[i])
	}
	ctx := c.Request.Context()

	// 单条：失败直接按错误类型回状态码
	if len(urls) == 1 {
		product, err := h.importer.ImportProduct(ctx, urls[0])
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		h.payloadLog.Log(product)
		h.history.RecordQuietly(ctx, "", product)
		c.JSON(http.StatusOK, product.ToMap(h.debug))
		return
	}

	// 多条：部分成功语义
	outcomes := h.importer.ImportProducts(ctx, urls)
	products := make([]map[string]any, 0, len(outcomes))
	errorItems := make([]dto.ImportErrorItem, 0)
	requestID := ""
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			errorItems = append(errorItems, dto.ImportErrorItem{
				URL:    outcome.URL,
				Detail: outcome.Err.Error(),
			})
			continue
		}
		h.payloadLog.Log(outcome.Product)
		requestID = h.history.RecordQuietly(ctx, requestID, outcome.Product)
		products = append(products, outcome.Product.ToMap(h.debug))
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"errors":   errorItems,
	})
}

// ListImports 导入历史
// @Summary 查询导入历史
// @Tags Import
// @Produce json
// @Param platform query string false "按平台过滤"
// @Param limit query int false "分页大小"
// @Param offset query int false "偏移"
// @Success 200 {object} map[string]any
// @Router /api/v1/imports [get]
func (h *ImportController) ListImports(c *gin.Context) {
	var req dto.ListImportsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, total, err := h.history.List(c.Request.Context(), req.Platform, req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": records,
		"total": total,
	})
}
