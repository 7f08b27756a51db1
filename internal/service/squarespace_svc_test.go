package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

const squarespacePageJSON = `{
  "website": {"id": "site-1", "siteTitle": "Demo Shop"},
  "collection": {"id": "coll-1", "title": "Shop"},
  "item": {
    "id": "prod-1",
    "title": "Ceramic Mug",
    "urlId": "ceramic-mug",
    "recordTypeLabel": "product",
    "body": "<p>Handmade ceramic mug</p>",
    "tags": ["handmade"],
    "categories": ["Kitchen"],
    "items": [
      {"displayIndex": 2, "assetUrl": "https://img.sq.example.com/2.jpg"},
      {"displayIndex": 1, "assetUrl": "https://img.sq.example.com/1.jpg"}
    ],
    "structuredContent": {
      "productType": "PHYSICAL",
      "variantOptions": [
        {"name": "Color", "values": ["Black", "White"]}
      ],
      "variants": [
        {"id": "v1", "sku": "MUG-B",
         "optionValues": [{"optionName": "Color", "value": "Black"}],
         "priceMoney": {"value": "25.00", "currency": "USD"},
         "qtyInStock": 4, "unlimited": false},
        {"id": "v2",
         "optionValues": [{"optionName": "Color", "value": "White"}],
         "priceMoney": {"value": "27.00", "currency": "USD"},
         "unlimited": true}
      ],
      "priceMoney": {"value": "25.00", "currency": "USD"}
    }
  }
}`

func TestSquarespace_PageJSON(t *testing.T) {
	rawURL := "https://demo.squarespace.com/shop/p/ceramic-mug"
	client := newStubFetch().
		on("https://demo.squarespace.com/shop/p/ceramic-mug?format=json", 200, squarespacePageJSON)
	svc := NewSquarespaceSvc(client)

	sources, err := svc.Sources(rawURL)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "page_json", sources[0].Name)

	product, err := sources[0].Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Ceramic Mug", product.Title)
	assert.Equal(t, "<p>Handmade ceramic mug</p>", product.Description)

	require.NotNil(t, product.Price)
	assert.True(t, dec("25.00").Equal(*product.Price.Current.Amount))
	assert.Equal(t, "USD", product.Price.Current.Currency)

	require.Len(t, product.Variants, 2)
	v0, v1 := product.Variants[0], product.Variants[1]
	assert.Equal(t, "MUG-B", v0.SKU)
	assert.Equal(t, []model.OptionValue{{Name: "Color", Value: "Black"}}, v0.OptionValues)
	assert.Equal(t, intPtr(4), v0.Inventory.Quantity)
	assert.True(t, v0.Inventory.TrackQuantity)

	assert.Equal(t, "SQ:ceramic-mug:v2", v1.SKU)
	// unlimited=true 的变体不追踪库存
	assert.False(t, v1.Inventory.TrackQuantity)
	assert.Nil(t, v1.Inventory.Quantity)

	require.Len(t, product.Options, 1)
	assert.Equal(t, model.OptionDef{Name: "Color", Values: []string{"Black", "White"}}, product.Options[0])

	// 相册按 displayIndex 排序
	require.Len(t, product.Media, 2)
	assert.Equal(t, "https://img.sq.example.com/1.jpg", product.Media[0].URL)
	assert.Equal(t, "https://img.sq.example.com/2.jpg", product.Media[1].URL)

	assert.Equal(t, []string{"handmade"}, product.Tags)
	assert.Equal(t, [][]string{{"Kitchen"}}, product.Taxonomy.Paths)
	assert.False(t, product.IsDigital)
	assert.True(t, product.RequiresShipping)

	assert.Equal(t, urldetect.PlatformSquarespace, product.Source.Platform)
	assert.Equal(t, "prod-1", product.Source.ID)
	assert.Equal(t, "ceramic-mug", product.Source.Slug)
}

func TestSquarespace_页面JSON无商品(t *testing.T) {
	rawURL := "https://demo.squarespace.com/shop/p/ceramic-mug"
	client := newStubFetch().
		on("https://demo.squarespace.com/shop/p/ceramic-mug?format=json", 200,
			`{"website": {"id": "site-1"}, "collection": {"title": "Shop"}}`)
	svc := NewSquarespaceSvc(client)

	sources, err := svc.Sources(rawURL)
	require.NoError(t, err)
	_, err = sources[0].Fetch(context.Background())

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, err.Error(), "没有带结构化内容的商品条目")
}

func TestSquarespace_HTML兜底选中slug匹配的节点(t *testing.T) {
	rawURL := "https://demo.squarespace.com/shop/p/ceramic-mug"
	page := `<script type="application/ld+json">
	{"@type": "Product", "name": "Other Item", "url": "https://demo.squarespace.com/shop/p/other-item",
	 "offers": {"price": "5.00", "priceCurrency": "USD"}}
	</script>
	<script type="application/ld+json">
	{"@type": "Product", "name": "Ceramic Mug", "url": "https://demo.squarespace.com/shop/p/ceramic-mug",
	 "description": "Handmade ceramic mug", "sku": "MUG-1",
	 "image": "https://img.sq.example.com/1.jpg",
	 "brand": {"name": "MudWorks"},
	 "offers": {"price": "25.00", "priceCurrency": "USD",
	            "availability": "https://schema.org/InStock"}}
	</script>`
	client := newStubFetch().on(rawURL, 200, page)
	svc := NewSquarespaceSvc(client)

	sources, err := svc.Sources(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "html_jsonld", sources[1].Name)

	product, err := sources[1].Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Ceramic Mug", product.Title)
	assert.Equal(t, "MudWorks", product.Brand)
	assert.True(t, dec("25.00").Equal(*product.Price.Current.Amount))
	assert.Equal(t, "MUG-1", product.Identifiers.Values["sku"])
	assert.Equal(t, "ceramic-mug", product.Source.Slug)

	require.Len(t, product.Variants, 1)
	assert.Equal(t, boolPtr(true), product.Variants[0].Inventory.Available)
}

func TestFormatJSONURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"补上 format 参数", "https://demo.squarespace.com/shop/p/mug",
			"https://demo.squarespace.com/shop/p/mug?format=json"},
		{"替换已有 format", "https://demo.squarespace.com/shop/p/mug?format=html",
			"https://demo.squarespace.com/shop/p/mug?format=json"},
		{"保留其他参数", "https://demo.squarespace.com/shop/p/mug?a=1",
			"https://demo.squarespace.com/shop/p/mug?a=1&format=json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatJSONURL(tt.in))
		})
	}
}
