package service

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/coerce"
	"github.com/walkidni/shelfshift-sub001/pkg/structdata"
)

// ==================== 管道共用的映射工具 ====================

// makeMoney 金额和货币都解析不出来时返回 nil
func makeMoney(amount any, currency any) *model.Money {
	parsedAmount := coerce.ParseMoney(amount)
	parsedCurrency := coerce.NormalizeCurrency(currency)
	if parsedAmount == nil && parsedCurrency == "" {
		return nil
	}
	return &model.Money{Amount: parsedAmount, Currency: parsedCurrency}
}

// makePrice 当前价解析不出来时返回 nil。compareAt 传 nil 表示没有划线价
func makePrice(amount any, currency any, compareAt any) *model.Price {
	current := makeMoney(amount, currency)
	if current == nil {
		return nil
	}
	compare := makeMoney(compareAt, currency)
	if compare != nil && compare.Amount == nil {
		compare = nil // 只有货币没有数值的划线价不保留
	}
	return &model.Price{
		Current:   *current,
		CompareAt: compare,
	}
}

// gramsWeight 克数转 Weight，nil 原样传递
func gramsWeight(grams *int) *model.Weight {
	if grams == nil {
		return nil
	}
	d := decimal.NewFromInt(int64(*grams))
	return &model.Weight{Value: &d, Unit: "g"}
}

// stringID 把 JSON 里的数字/字符串 ID 统一成字符串，nil 返回空串
func stringID(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// htmlHeaders 抓 HTML 页面时带的浏览器头
func htmlHeaders() map[string]string {
	return map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
	}
}

// sortedKeys map 键排序后返回（遍历顺序稳定）
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isDigits 非空且全是十进制数字
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// titleCase 首字母大写（选项轴名用）
func titleCase(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// moneyFromValue 解析自由形态的金额：字典按 value/amount/price 取数，
// 货币优先显式参数，其次字典里的 currency/currencyCode
func moneyFromValue(raw any, rawCurrency any) (amount any, currency string) {
	currency = coerce.NormalizeCurrency(rawCurrency)
	node, isNode := raw.(map[string]any)
	if isNode && currency == "" {
		currency = coerce.NormalizeCurrency(node["currency"])
		if currency == "" {
			currency = coerce.NormalizeCurrency(node["currencyCode"])
		}
	}
	if isNode {
		for _, key := range []string{"value", "amount", "price"} {
			if parsed := coerce.ParseMoney(node[key]); parsed != nil {
				return node[key], currency
			}
		}
		return nil, currency
	}
	return raw, currency
}

// offersToList JSON-LD 的 offers 统一摊平成列表
func offersToList(rawOffers any) []any {
	switch v := rawOffers.(type) {
	case []any:
		return v
	case map[string]any:
		if nested, ok := v["offers"].([]any); ok {
			return nested
		}
		return []any{v}
	}
	return nil
}

// jsonldBrand 品牌字段可能是 {"name": ...} 也可能直接是字符串
func jsonldBrand(raw any) string {
	switch v := raw.(type) {
	case map[string]any:
		return coerce.PickName(v["name"])
	case string:
		return coerce.PickName(v)
	}
	return ""
}

// offerAvailability schema.org 的 availability 文本转三态
func offerAvailability(raw any) *bool {
	text, ok := raw.(string)
	if !ok || text == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "instock") {
		t := true
		return &t
	}
	if strings.Contains(lowered, "outofstock") {
		f := false
		return &f
	}
	return nil
}

// offerPrice 取 offer 的价格，price 缺失时退到 priceSpecification.price
func offerPrice(offer structdata.Node) any {
	if offer["price"] != nil {
		return offer["price"]
	}
	if spec, ok := offer["priceSpecification"].(map[string]any); ok {
		return spec["price"]
	}
	return nil
}

// parseOfferVariant 单个 JSON-LD offer 转原始变体。axes 指定要提的
// 选项轴（color/size/material/pattern），没有任何信号时返回 nil
func parseOfferVariant(raw any) *RawVariant {
	offer, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	title := coerce.PickName(offer["name"])
	if title == "" {
		title = coerce.PickName(offer["description"])
	}
	sku := coerce.PickName(offer["sku"])
	variantID := coerce.PickName(offer["@id"])
	if variantID == "" {
		variantID = coerce.PickName(offer["url"])
	}
	if variantID == "" {
		variantID = sku
	}

	amount, currency := moneyFromValue(offerPrice(offer), offer["priceCurrency"])
	price := makePrice(amount, currency, nil)
	available := offerAvailability(offer["availability"])

	var optionValues []model.OptionValue
	for _, axis := range []string{"color", "size", "material", "pattern"} {
		if value := coerce.PickName(offer[axis]); value != "" {
			optionValues = append(optionValues, model.OptionValue{
				Name:  titleCase(axis),
				Value: value,
			})
		}
	}

	var media []model.Media
	if images := coerce.ExtractImageURLs(offer["image"], true); len(images) > 0 {
		media = append(media, model.Media{URL: images[0], Type: "image", Position: 1, IsPrimary: true})
	}

	if variantID == "" && sku == "" && title == "" && price == nil &&
		available == nil && len(media) == 0 && len(optionValues) == 0 {
		return nil
	}

	return &RawVariant{
		ID:           variantID,
		SKU:          sku,
		Title:        title,
		OptionValues: optionValues,
		Price:        price,
		Media:        media,
		Inventory: model.Inventory{
			TrackQuantity: false,
			Available:     available,
		},
		Identifiers: model.NewIdentifiers(map[string]string{
			"source_variant_id": variantID,
			"sku":               sku,
		}),
	}
}
