package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ==================== 规范化商品模型 ====================
//
// 所有平台抓取结果最终统一收敛到这套结构。金额一律用 decimal，
// 绝不用 float64 存储，避免二进制浮点精度污染下游（定价、比价）。

type Money struct {
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency,omitempty"` // ISO 风格货币码，空串表示未知
}

type Price struct {
	Current   Money  `json:"current"`
	CompareAt *Money `json:"compare_at,omitempty"` // 划线价/原价
	Cost      *Money `json:"cost,omitempty"`
	MinPrice  *Money `json:"min_price,omitempty"`
	MaxPrice  *Money `json:"max_price,omitempty"`
}

// Weight 统一换算为克之后的重量
type Weight struct {
	Value *decimal.Decimal `json:"value"`
	Unit  string           `json:"unit"` // 目前固定 "g"
}

type Media struct {
	URL         string   `json:"url"`
	Type        string   `json:"type"` // image / video
	Alt         string   `json:"alt,omitempty"`
	Position    int      `json:"position"`   // 从 1 开始
	IsPrimary   bool     `json:"is_primary"` // 仅 position==1 为 true
	VariantSKUs []string `json:"variant_skus,omitempty"`
}

// OptionValue 变体上的单个选项取值，例如 {Name:"Color", Value:"Black"}
// 用切片而不是 map，保证选项顺序稳定、序列化可逐字节复现
type OptionValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OptionDef 商品级的选项轴定义，例如 Color -> [Black, White]
type OptionDef struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Inventory 库存口径。Quantity 为 nil 表示"不追踪库存"，
// Available 为 nil 表示"未知"——未知绝不能当成 false 落库
type Inventory struct {
	TrackQuantity  bool  `json:"track_quantity"`
	Quantity       *int  `json:"quantity"`
	Available      *bool `json:"available"`
	AllowBackorder *bool `json:"allow_backorder,omitempty"`
}

// Identifiers 平台侧各种 ID 的杂项键值（source_product_id / sku / mpn / asin...）
type Identifiers struct {
	Values map[string]string `json:"values"`
}

type SourceRef struct {
	Platform string `json:"platform"`
	ID       string `json:"id,omitempty"`
	Slug     string `json:"slug,omitempty"`
	URL      string `json:"url"`
}

// Taxonomy 类目路径集合，Primary 默认取第一条发现的路径
type Taxonomy struct {
	Paths   [][]string `json:"paths"`
	Primary []string   `json:"primary"`
}

type Seo struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"` // 已截断到 400 字符
}

// Variant 一个可购买配置
type Variant struct {
	// ID 为空串表示上游没有给出变体 ID，此时以 SKU/标题作为身份
	ID           string        `json:"id,omitempty"`
	SKU          string        `json:"sku,omitempty"`
	Title        string        `json:"title,omitempty"`
	OptionValues []OptionValue `json:"option_values"`
	Price        *Price        `json:"price"`
	Media        []Media       `json:"media"`
	Inventory    Inventory     `json:"inventory"`
	Identifiers  Identifiers   `json:"identifiers"`
	Weight       *Weight       `json:"weight,omitempty"`
}

// Product 根聚合。单次抓取内新建，抓取结束后视为只读
type Product struct {
	// --- 基本信息 ---
	Title       string `json:"title"`
	Description string `json:"description"` // 可能含 HTML
	Brand       string `json:"brand,omitempty"`
	Vendor      string `json:"vendor,omitempty"`

	// --- 价格 / 媒体 / 变体 ---
	Price    *Price      `json:"price"`
	Media    []Media     `json:"media"`
	Options  []OptionDef `json:"options"`
	Variants []Variant   `json:"variants"`

	// --- 分类与检索 ---
	Taxonomy Taxonomy `json:"taxonomy"`
	Tags     []string `json:"tags"`
	Seo      Seo      `json:"seo"`

	// --- 标识与来源 ---
	Identifiers Identifiers `json:"identifiers"`
	Source      SourceRef   `json:"source"`

	// --- 物流开关 ---
	Weight           *Weight `json:"weight,omitempty"` // 已归一到克
	RequiresShipping bool    `json:"requires_shipping"`
	TrackQuantity    bool    `json:"track_quantity"`
	IsDigital        bool    `json:"is_digital"`

	// Raw 保留上游原始载荷做审计，不参与规范化视图比较
	Raw any `json:"raw,omitempty"`
}

// NewIdentifiers 过滤掉空键空值后构建 Identifiers
func NewIdentifiers(values map[string]string) Identifiers {
	out := make(map[string]string, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	return Identifiers{Values: out}
}

// FirstImageURL 变体的代表图（首张），没有则返回空串
func (v *Variant) FirstImageURL() string {
	if len(v.Media) == 0 {
		return ""
	}
	return v.Media[0].URL
}

// BestLabel 变体的最佳可读标签：标题 > SKU > ID
func (v *Variant) BestLabel() string {
	if v.Title != "" {
		return v.Title
	}
	if v.SKU != "" {
		return v.SKU
	}
	return v.ID
}

// Finalize 补齐来源与主类目路径（所有 mapper 返回前的统一收口）
func (p *Product) Finalize(sourceURL string) {
	if p.Source.Platform == "" {
		p.Source.Platform = "unknown"
	}
	if p.Source.URL == "" {
		p.Source.URL = sourceURL
	}
	if p.Taxonomy.Primary == nil && len(p.Taxonomy.Paths) > 0 {
		primary := make([]string, len(p.Taxonomy.Paths[0]))
		copy(primary, p.Taxonomy.Paths[0])
		p.Taxonomy.Primary = primary
	}
}

// FormatDecimal 去掉尾零的十进制文本，nil 返回空串，"-0" 归一为 "0"
func FormatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	text := d.String()
	if strings.Contains(text, ".") {
		text = strings.TrimRight(text, "0")
		text = strings.TrimRight(text, ".")
	}
	if text == "" || text == "-0" {
		return "0"
	}
	return text
}
