package service

import (
	"encoding/json"
	"log"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/walkidni/shelfshift-sub001/internal/model"
)

// ==================== 导入结果日志 ====================
//
// debug 模式下把规范化结果按详细程度打成结构化摘要。
// extrahigh 全量含原始载荷，high 全量但截断长文本，
// medium 摘要，low 只留几个关键字段。

const (
	VerbosityLow       = "low"
	VerbosityMedium    = "medium"
	VerbosityHigh      = "high"
	VerbosityExtraHigh = "extrahigh"
)

var descriptionLimits = map[string]int{
	VerbosityLow:    80,
	VerbosityMedium: 160,
	VerbosityHigh:   240,
}

// 常见货币符号，查不到就直接用货币代码
var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "CN¥",
	"KRW": "₩",
	"INR": "₹",
	"BRL": "R$",
	"MXN": "MX$",
	"RUB": "₽",
	"TRY": "₺",
}

type PayloadLogSvc struct {
	debug     bool
	verbosity string
}

func NewPayloadLogSvc(debug bool, verbosity string) *PayloadLogSvc {
	return &PayloadLogSvc{debug: debug, verbosity: normalizeVerbosity(verbosity)}
}

func normalizeVerbosity(verbosity string) string {
	normalized := strings.ToLower(strings.TrimSpace(verbosity))
	switch normalized {
	case VerbosityLow, VerbosityMedium, VerbosityHigh, VerbosityExtraHigh:
		return normalized
	}
	return VerbosityMedium
}

// truncateText 超长截断并标记
func truncateText(value string, limit int) string {
	text := strings.TrimSpace(value)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	head := strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace)
	return head + "... [truncated]"
}

// FormatPrice "19.90"+"USD" -> "$19.9"，字母符号留空格
func FormatPrice(amount *decimal.Decimal, currency string) string {
	if amount == nil {
		return ""
	}
	number := model.FormatDecimal(amount)

	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return number
	}
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code
	}
	alpha := true
	for _, r := range symbol {
		if !unicode.IsLetter(r) {
			alpha = false
			break
		}
	}
	if alpha {
		return number + " " + symbol
	}
	return symbol + number
}

func priceParts(p *model.Price) (*decimal.Decimal, string) {
	if p == nil {
		return nil, ""
	}
	return p.Current.Amount, p.Current.Currency
}

// Loggable 按当前详细程度生成日志载荷；非 debug 返回 nil
func (s *PayloadLogSvc) Loggable(product *model.Product) map[string]any {
	if !s.debug || product == nil {
		return nil
	}

	switch s.verbosity {
	case VerbosityExtraHigh:
		return product.ToMap(true)
	case VerbosityHigh:
		data := product.ToMap(false)
		limit := descriptionLimits[VerbosityHigh]
		data["description"] = truncateText(product.Description, limit)
		if seo, ok := data["seo"].(map[string]any); ok {
			seo["description"] = truncateText(product.Seo.Description, limit)
		}
		return data
	}

	amount, currency := priceParts(product.Price)
	category := ""
	if len(product.Taxonomy.Paths) > 0 && len(product.Taxonomy.Paths[0]) > 0 {
		path := product.Taxonomy.Paths[0]
		category = path[len(path)-1]
	}

	options := map[string]any{}
	for _, def := range product.Options {
		options[def.Name] = def.Values
	}

	variants := make([]map[string]any, 0, len(product.Variants))
	for i := range product.Variants {
		v := &product.Variants[i]
		vAmount, vCurrency := priceParts(v.Price)
		if vCurrency == "" {
			vCurrency = currency
		}
		optionValues := map[string]any{}
		for _, ov := range v.OptionValues {
			optionValues[ov.Name] = ov.Value
		}
		variants = append(variants, map[string]any{
			"options":   optionValues,
			"price":     FormatPrice(vAmount, vCurrency),
			"has_image": len(v.Media) > 0,
		})
	}

	mediumLimit := descriptionLimits[VerbosityMedium]
	summary := map[string]any{
		"platform":         product.Source.Platform,
		"title":            product.Title,
		"description":      truncateText(product.Description, mediumLimit),
		"meta_description": truncateText(product.Seo.Description, mediumLimit),
		"brand":            product.Brand,
		"category":         category,
		"vendor":           product.Vendor,
		"price":            FormatPrice(amount, currency),
		"options":          options,
		"images":           map[string]any{"count": len(product.Media)},
		"variants_count":   len(product.Variants),
		"variants":         variants,
	}

	if s.verbosity == VerbosityLow {
		return map[string]any{
			"platform":       summary["platform"],
			"title":          summary["title"],
			"price":          summary["price"],
			"images":         summary["images"],
			"variants_count": summary["variants_count"],
			"brand":          summary["brand"],
			"category":       summary["category"],
		}
	}
	return summary
}

// Log 打印导入结果摘要
func (s *PayloadLogSvc) Log(product *model.Product) {
	payload := s.Loggable(product)
	if payload == nil {
		return
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[payload] 序列化日志载荷失败: %v", err)
		return
	}
	log.Printf("[payload] %s %s", product.Source.Platform, encoded)
}
