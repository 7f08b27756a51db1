package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/walkidni/shelfshift-sub001/internal/controller"
	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/internal/repository"
	"github.com/walkidni/shelfshift-sub001/internal/router"
	"github.com/walkidni/shelfshift-sub001/internal/service"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 测试辅助 ====================

// stubPlatform 返回固定商品的平台桩
type stubPlatform struct {
	name    string
	product *model.Product
	err     error
}

func (s *stubPlatform) Platform() string { return s.name }

func (s *stubPlatform) Sources(string) ([]service.Source, error) {
	return []service.Source{{
		Name: "stub",
		Fetch: func(context.Context) (*model.Product, error) {
			if s.err != nil {
				return nil, s.err
			}
			// 每次返回一份拷贝，避免 Finalize 污染共享状态
			product := *s.product
			return &product, nil
		},
	}}, nil
}

func sampleProduct() *model.Product {
	return &model.Product{
		Title: "Blue Mug",
		Price: &model.Price{Current: model.Money{Amount: dec("19.99"), Currency: "USD"}},
		Variants: []model.Variant{
			{SKU: "MUG-R", Identifiers: model.NewIdentifiers(nil)},
		},
		Identifiers: model.NewIdentifiers(nil),
		Source:      model.SourceRef{Platform: urldetect.PlatformShopify, ID: "123", Slug: "blue-mug"},
		Raw:         map[string]any{"upstream": true},
	}
}

func dec(t string) *decimal.Decimal {
	d := decimal.RequireFromString(t)
	return &d
}

type ctlFixture struct {
	router *gin.Engine
	repo   repository.ImportRecordRepository
}

func setupImportCtl(t *testing.T, platform service.PlatformSvc, debug bool) *ctlFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ImportRecord{}))

	repo := repository.NewImportRecordRepository(db)
	importer := service.NewImporterSvc()
	if platform != nil {
		importer.Register(platform)
	}
	ctl := controller.NewImportController(
		importer,
		service.NewHistorySvc(repo),
		service.NewPayloadLogSvc(false, service.VerbosityMedium),
		"shelfshift-test",
		debug,
	)

	r := gin.New()
	router.InitRoutes(r, ctl, 0)
	return &ctlFixture{router: r, repo: repo}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ==================== 健康检查 ====================

func TestHealth(t *testing.T) {
	f := setupImportCtl(t, nil, false)

	w := performRequest(f.router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "shelfshift-test", body["app"])
}

// ==================== 平台识别 ====================

func TestDetect(t *testing.T) {
	f := setupImportCtl(t, nil, false)

	t.Run("缺少 url 参数", func(t *testing.T) {
		w := performRequest(f.router, http.MethodGet, "/api/v1/detect", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "url 参数不能为空")
	})

	t.Run("识别亚马逊链接", func(t *testing.T) {
		w := performRequest(f.router, http.MethodGet,
			"/api/v1/detect?url=https%3A%2F%2Fwww.amazon.com%2Fdp%2FB0TESTASIN", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "amazon", body["platform"])
		assert.Equal(t, true, body["is_product"])
		assert.Equal(t, "B0TESTASIN", body["product_id"])
	})

	t.Run("没写协议的链接补全 https", func(t *testing.T) {
		w := performRequest(f.router, http.MethodGet,
			"/api/v1/detect?url=www.amazon.com%2Fdp%2FB0TESTASIN", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "amazon", decodeBody(t, w)["platform"])
	})
}

// ==================== 导入 ====================

func TestImport_参数错误(t *testing.T) {
	f := setupImportCtl(t, nil, false)

	t.Run("product_urls 类型不对", func(t *testing.T) {
		w := performRequest(f.router, http.MethodPost, "/api/v1/import",
			map[string]any{"product_urls": 123})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "必须是字符串或字符串数组")
	})

	t.Run("全是空白项", func(t *testing.T) {
		w := performRequest(f.router, http.MethodPost, "/api/v1/import",
			map[string]any{"product_urls": []string{"  ", ""}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "product_urls 不能为空")
	})
}

func TestImport_单条成功(t *testing.T) {
	f := setupImportCtl(t, &stubPlatform{
		name:    urldetect.PlatformShopify,
		product: sampleProduct(),
	}, false)

	w := performRequest(f.router, http.MethodPost, "/api/v1/import",
		map[string]any{"product_urls": "https://demo.myshopify.com/products/blue-mug"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Blue Mug", body["title"])
	// debug 关闭时不回原始载荷
	_, hasRaw := body["raw"]
	assert.False(t, hasRaw)

	// 成功导入落了历史
	records, total, err := f.repo.List(context.Background(), repository.ListImportQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, "shopify", records[0].Platform)
	assert.Equal(t, "Blue Mug", records[0].Title)
	assert.NotEmpty(t, records[0].RequestID)
}

func TestImport_单条失败按错误类型回状态码(t *testing.T) {
	f := setupImportCtl(t, nil, false)

	w := performRequest(f.router, http.MethodPost, "/api/v1/import",
		map[string]any{"product_urls": "https://example.com/nothing"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "无法识别的商品链接")
}

func TestImport_批量部分成功(t *testing.T) {
	f := setupImportCtl(t, &stubPlatform{
		name:    urldetect.PlatformShopify,
		product: sampleProduct(),
	}, false)

	w := performRequest(f.router, http.MethodPost, "/api/v1/import",
		map[string]any{"product_urls": []string{
			"https://demo.myshopify.com/products/blue-mug",
			"https://demo.myshopify.com/products/red-mug",
			"https://example.com/nothing",
		}})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)

	products, ok := body["products"].([]any)
	require.True(t, ok)
	assert.Len(t, products, 2)

	errorItems, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errorItems, 1)
	item := errorItems[0].(map[string]any)
	assert.Equal(t, "https://example.com/nothing", item["url"])
	assert.Contains(t, item["detail"], "无法识别")

	// 同一批次共用一个请求 ID
	records, _, err := f.repo.List(context.Background(), repository.ListImportQuery{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, records[0].RequestID, records[1].RequestID)
}

// ==================== 导入历史 ====================

func TestListImports(t *testing.T) {
	f := setupImportCtl(t, &stubPlatform{
		name:    urldetect.PlatformShopify,
		product: sampleProduct(),
	}, false)

	performRequest(f.router, http.MethodPost, "/api/v1/import",
		map[string]any{"product_urls": "https://demo.myshopify.com/products/blue-mug"})

	w := performRequest(f.router, http.MethodGet, "/api/v1/imports?platform=shopify", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["total"])
	items, ok := body["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	// 其他平台过滤后为空
	w = performRequest(f.router, http.MethodGet, "/api/v1/imports?platform=amazon", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["total"])
}
