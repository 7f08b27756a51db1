package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

// ==================== 测试平台桩 ====================

type fakePlatform struct {
	name    string
	sources []Source
	srcErr  error
}

func (f *fakePlatform) Platform() string { return f.name }

func (f *fakePlatform) Sources(string) ([]Source, error) {
	return f.sources, f.srcErr
}

func okSource(name string, calls *int, product *model.Product) Source {
	return Source{Name: name, Fetch: func(context.Context) (*model.Product, error) {
		*calls++
		return product, nil
	}}
}

func errSource(name string, calls *int, err error) Source {
	return Source{Name: name, Fetch: func(context.Context) (*model.Product, error) {
		*calls++
		return nil, err
	}}
}

// ==================== 编排 ====================

func TestImportProduct_无法识别的链接(t *testing.T) {
	svc := NewImporterSvc()

	_, err := svc.ImportProduct(context.Background(), "https://example.com/some/page")

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, err.Error(), "无法识别的商品链接")
}

func TestImportProduct_未注册的平台(t *testing.T) {
	svc := NewImporterSvc()

	_, err := svc.ImportProduct(context.Background(), "https://demo.myshopify.com/products/mug")

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, err.Error(), "不支持的平台")
}

func TestImportProduct_非商品页(t *testing.T) {
	svc := NewImporterSvc(&fakePlatform{name: urldetect.PlatformShopify})

	_, err := svc.ImportProduct(context.Background(), "https://demo.myshopify.com/")

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, err.Error(), "不是商品页")
}

func TestImportProduct_可恢复错误回退下一个源(t *testing.T) {
	rawURL := "https://demo.myshopify.com/products/mug"
	first, second := 0, 0
	product := &model.Product{
		Title:    "Mug",
		Taxonomy: model.Taxonomy{Paths: [][]string{{"Kitchen", "Drinkware"}}},
		Source:   model.SourceRef{Platform: urldetect.PlatformShopify},
	}
	svc := NewImporterSvc(&fakePlatform{
		name: urldetect.PlatformShopify,
		sources: []Source{
			errSource("products_json", &first, ErrNoUsableProduct("")),
			okSource("html_jsonld", &second, product),
		},
	})

	got, err := svc.ImportProduct(context.Background(), rawURL)

	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	// 成功后做了 Finalize 收口
	assert.Equal(t, rawURL, got.Source.URL)
	assert.Equal(t, []string{"Kitchen", "Drinkware"}, got.Taxonomy.Primary)
}

func TestImportProduct_配置错误立即终止(t *testing.T) {
	first, second := 0, 0
	svc := NewImporterSvc(&fakePlatform{
		name: urldetect.PlatformShopify,
		sources: []Source{
			errSource("products_json", &first, &ConfigError{Msg: "缺少 key"}),
			errSource("html_jsonld", &second, ErrNoUsableProduct("")),
		},
	})

	_, err := svc.ImportProduct(context.Background(), "https://demo.myshopify.com/products/mug")

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second) // 后面的源不再尝试
}

func TestImportProduct_全部失败时优先上报状态错误(t *testing.T) {
	first, second := 0, 0
	svc := NewImporterSvc(&fakePlatform{
		name: urldetect.PlatformShopify,
		sources: []Source{
			errSource("products_json", &first, &fetch.StatusError{StatusCode: 404}),
			errSource("html_jsonld", &second, ErrNoUsableProduct("HTML 里没有商品 JSON-LD")),
		},
	})

	_, err := svc.ImportProduct(context.Background(), "https://demo.myshopify.com/products/mug")

	require.Error(t, err)
	var statusErr *fetch.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "shopify(products_json)")
}

func TestImportProduct_源列表错误直接返回(t *testing.T) {
	wantErr := &ValidationError{Msg: "不是 Shopify 商品路径"}
	svc := NewImporterSvc(&fakePlatform{name: urldetect.PlatformShopify, srcErr: wantErr})

	_, err := svc.ImportProduct(context.Background(), "https://demo.myshopify.com/products/mug")

	assert.True(t, errors.Is(err, wantErr))
}

func TestImportProducts_单条失败不影响其余(t *testing.T) {
	calls := 0
	svc := NewImporterSvc(&fakePlatform{
		name: urldetect.PlatformShopify,
		sources: []Source{
			okSource("products_json", &calls, &model.Product{Title: "Mug"}),
		},
	})

	outcomes := svc.ImportProducts(context.Background(), []string{
		"https://demo.myshopify.com/products/mug",
		"https://example.com/nope",
	})

	require.Len(t, outcomes, 2)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, "Mug", outcomes[0].Product.Title)
	require.Error(t, outcomes[1].Err)
	assert.Nil(t, outcomes[1].Product)
}

func TestDetect_透传分类结果(t *testing.T) {
	svc := NewImporterSvc()

	info := svc.Detect("https://www.amazon.com/dp/B0EXAMPLE1")

	assert.Equal(t, urldetect.PlatformAmazon, info.Platform)
	assert.True(t, info.IsProduct)
	assert.Equal(t, "B0EXAMPLE1", info.ProductID)
}
