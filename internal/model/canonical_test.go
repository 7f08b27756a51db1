package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decVal(t string) *decimal.Decimal {
	d := decimal.RequireFromString(t)
	return &d
}

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   *decimal.Decimal
		want string
	}{
		{"去掉尾零", decVal("19.900"), "19.9"},
		{"整数去掉小数点", decVal("25.00"), "25"},
		{"保留有效小数", decVal("0.05"), "0.05"},
		{"负零归一", decVal("-0.00"), "0"},
		{"nil 返回空串", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDecimal(tt.in))
		})
	}
}

func TestNewIdentifiers_过滤空键空值(t *testing.T) {
	ids := NewIdentifiers(map[string]string{
		"sku":  " ABC ",
		"":     "x",
		"mpn":  "",
		"asin": "B0TESTASIN",
	})

	assert.Equal(t, map[string]string{"sku": "ABC", "asin": "B0TESTASIN"}, ids.Values)
	assert.NotNil(t, NewIdentifiers(nil).Values)
}

func TestFinalize(t *testing.T) {
	t.Run("补齐来源与主类目", func(t *testing.T) {
		p := &Product{
			Taxonomy: Taxonomy{Paths: [][]string{{"Kitchen", "Drinkware"}, {"Gifts"}}},
			Source:   SourceRef{Platform: "shopify"},
		}
		p.Finalize("https://demo.myshopify.com/products/mug")

		assert.Equal(t, "https://demo.myshopify.com/products/mug", p.Source.URL)
		assert.Equal(t, []string{"Kitchen", "Drinkware"}, p.Taxonomy.Primary)
	})

	t.Run("已有值不覆盖", func(t *testing.T) {
		p := &Product{
			Taxonomy: Taxonomy{Primary: []string{"Given"}, Paths: [][]string{{"Other"}}},
			Source:   SourceRef{Platform: "amazon", URL: "https://original.example.com"},
		}
		p.Finalize("https://other.example.com")

		assert.Equal(t, "https://original.example.com", p.Source.URL)
		assert.Equal(t, []string{"Given"}, p.Taxonomy.Primary)
	})

	t.Run("没有平台标记为 unknown", func(t *testing.T) {
		p := &Product{}
		p.Finalize("https://example.com")
		assert.Equal(t, "unknown", p.Source.Platform)
	})
}

func TestVariant_BestLabel(t *testing.T) {
	assert.Equal(t, "Red / S", (&Variant{Title: "Red / S", SKU: "X", ID: "1"}).BestLabel())
	assert.Equal(t, "X", (&Variant{SKU: "X", ID: "1"}).BestLabel())
	assert.Equal(t, "1", (&Variant{ID: "1"}).BestLabel())
}

func TestProduct_ToMap(t *testing.T) {
	available := true
	quantity := 5
	p := &Product{
		Title:       "Blue Mug",
		Description: "<p>Nice</p>",
		Brand:       "MugCo",
		Price: &Price{
			Current:   Money{Amount: decVal("19.90"), Currency: "USD"},
			CompareAt: &Money{Amount: decVal("24.00"), Currency: "USD"},
		},
		Media: []Media{
			{URL: "https://cdn.example.com/a.jpg", Type: "image", Position: 1, IsPrimary: true},
		},
		Options: []OptionDef{{Name: "Color", Values: []string{"Red"}}},
		Variants: []Variant{{
			ID:           "111",
			SKU:          "MUG-R",
			OptionValues: []OptionValue{{Name: "Color", Value: "Red"}},
			Price:        &Price{Current: Money{Amount: decVal("19.90"), Currency: "USD"}},
			Inventory:    Inventory{TrackQuantity: true, Quantity: &quantity, Available: &available},
			Identifiers:  NewIdentifiers(map[string]string{"sku": "MUG-R"}),
		}},
		Identifiers: NewIdentifiers(nil),
		Source:      SourceRef{Platform: "shopify", ID: "123", Slug: "blue-mug", URL: "https://x"},
		Raw:         map[string]any{"upstream": true},
	}

	data := p.ToMap(false)

	// 金额输出为去尾零的字符串
	price, ok := data["price"].(map[string]any)
	require.True(t, ok)
	current, ok := price["current"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "19.9", current["amount"])
	assert.Equal(t, "USD", current["currency"])

	// 空集合输出为空列表而不是 null
	assert.Equal(t, []string{}, data["tags"])
	assert.Equal(t, [][]string{}, data["taxonomy"].(map[string]any)["paths"])

	_, hasRaw := data["raw"]
	assert.False(t, hasRaw)
	assert.Equal(t, map[string]any{"upstream": true}, p.ToMap(true)["raw"])

	// 两次序列化逐字节一致
	first, err := json.Marshal(p.ToMap(false))
	require.NoError(t, err)
	second, err := json.Marshal(p.ToMap(false))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	// 变体里的空值保持 null 语义
	variants := data["variants"].([]any)
	require.Len(t, variants, 1)
	inventory := variants[0].(map[string]any)["inventory"].(map[string]any)
	assert.Equal(t, 5, inventory["quantity"])
	assert.Equal(t, true, inventory["available"])
	assert.Nil(t, inventory["allow_backorder"])
}
