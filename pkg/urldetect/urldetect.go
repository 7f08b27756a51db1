// Package urldetect 识别商品 URL 属于哪个平台，并顺手提取
// 商品 ID / slug。抓取管道据此分发，也会在载荷解析阶段
// 用它的提取函数做兜底。
package urldetect

import (
	"net/url"
	"regexp"
	"strings"
)

// 平台名常量（与管道注册表的键一致）
const (
	PlatformAmazon      = "amazon"
	PlatformAliExpress  = "aliexpress"
	PlatformShopify     = "shopify"
	PlatformSquarespace = "squarespace"
	PlatformWooCommerce = "woocommerce"
)

var (
	amazonASINRe     = regexp.MustCompile(`(?i)/(?:gp/product|dp)/([A-Z0-9]{10})(?:[/?#]|$)`)
	asinTokenRe      = regexp.MustCompile(`(?i)^[A-Z0-9]{10}$`)
	aliexpressItemRe = regexp.MustCompile(`(?i)/(?:item|i)/(\d+)\.html(?:[/?#]|$)`)
	// 速卖通分享链接会把 item id 藏在编码过的 x_object_id 参数里
	aliexpressXObjectRe = regexp.MustCompile(`(?i)x_object_id(?:%25)?(?:%3A|%3D|:|=)(\d{12,20})`)

	localePrefix = `(?:[a-z]{2}(?:-[a-z0-9]{2,8})?/)?`

	shopifyProductRe     = regexp.MustCompile(`(?i)^/` + localePrefix + `(?:collections/[^/]+/)?products/([^/?#]+?)(?:\.(?:js|json))?/?$`)
	wooProductRe         = regexp.MustCompile(`(?i)^/` + localePrefix + `product/([^/?#]+)/?$`)
	wooStoreAPIProductRe = regexp.MustCompile(`(?i)^/wp-json/wc/store/v1/products/([^/?#]+)/?$`)
	wooAPIRe             = regexp.MustCompile(`(?i)^/wp-json/wc/(?:store/v1|v[1-9]+)/`)
	squarespaceProductRe = regexp.MustCompile(`(?i)^/(?:shop|store)/(?:p/)?([a-z0-9-]+)/?$`)
	squarespaceShopRe    = regexp.MustCompile(`(?i)^/(?:shop|store)(?:/|$)`)
	digitsRe             = regexp.MustCompile(`^\d+$`)
)

// Info 分类结果。ProductID/Slug 为空串表示未提取到
type Info struct {
	Platform  string `json:"platform"`
	IsProduct bool   `json:"is_product"`
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
}

// ShopifyHandleFromPath 从路径里取 Shopify 商品 handle，支持
// 语言前缀、collections 前缀和 .js/.json 后缀
func ShopifyHandleFromPath(path string) string {
	match := shopifyProductRe.FindStringSubmatch(path)
	if match == nil {
		return ""
	}
	return match[1]
}

// WooStoreAPIProductToken 从 Store API 路径里取商品 token（id 或 slug）
func WooStoreAPIProductToken(path string) string {
	match := wooStoreAPIProductRe.FindStringSubmatch(path)
	if match == nil {
		return ""
	}
	token, err := url.PathUnescape(match[1])
	if err != nil {
		return match[1]
	}
	return token
}

// AliExpressItemID 依次尝试：query 参数里的 x_object_id（含二次
// 编码形态）、商品详情路径。取不到返回空串
func AliExpressItemID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, values := range parsed.Query() {
		for _, v := range values {
			if match := aliexpressXObjectRe.FindStringSubmatch(v); match != nil {
				return match[1]
			}
			if decoded, derr := url.QueryUnescape(v); derr == nil {
				if match := aliexpressXObjectRe.FindStringSubmatch(decoded); match != nil {
					return match[1]
				}
			}
		}
	}
	if match := aliexpressItemRe.FindStringSubmatch(parsed.Path); match != nil {
		return match[1]
	}
	return ""
}

// Detect 对 URL 做平台分类。顺序有讲究：Woo/Squarespace 的规则
// 要排在 Shopify 的通用 /products 兜底之前，避免误判
func Detect(rawURL string) Info {
	res := Info{}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return res
	}

	host := strings.ToLower(parsed.Host)
	path := parsed.Path
	query := parsed.Query()

	if strings.Contains(host, "amazon.") {
		if match := amazonASINRe.FindStringSubmatch(path); match != nil {
			return Info{Platform: PlatformAmazon, IsProduct: true, ProductID: match[1]}
		}
		for _, key := range []string{"asin", "ASIN"} {
			if values := query[key]; len(values) > 0 && asinTokenRe.MatchString(values[0]) {
				return Info{Platform: PlatformAmazon, IsProduct: true, ProductID: values[0]}
			}
		}
		return Info{Platform: PlatformAmazon}
	}

	if strings.Contains(host, "aliexpress.") {
		if match := aliexpressItemRe.FindStringSubmatch(path); match != nil {
			return Info{Platform: PlatformAliExpress, IsProduct: true, ProductID: match[1]}
		}
		return Info{Platform: PlatformAliExpress}
	}

	if match := wooProductRe.FindStringSubmatch(path); match != nil {
		return Info{Platform: PlatformWooCommerce, IsProduct: true, Slug: match[1]}
	}
	if values := query["product"]; len(values) > 0 && digitsRe.MatchString(values[0]) {
		return Info{Platform: PlatformWooCommerce, IsProduct: true, ProductID: values[0]}
	}
	if token := WooStoreAPIProductToken(path); token != "" {
		if digitsRe.MatchString(token) {
			return Info{Platform: PlatformWooCommerce, IsProduct: true, ProductID: token}
		}
		return Info{Platform: PlatformWooCommerce, IsProduct: true, Slug: token}
	}
	if wooAPIRe.MatchString(path) {
		return Info{Platform: PlatformWooCommerce}
	}

	sqMatch := squarespaceProductRe.FindStringSubmatch(path)
	if strings.HasSuffix(host, ".squarespace.com") {
		if sqMatch != nil {
			return Info{Platform: PlatformSquarespace, IsProduct: true, Slug: sqMatch[1]}
		}
		return Info{Platform: PlatformSquarespace}
	}

	// 自定义域名的 Squarespace 店铺靠 ?format=json 特征识别
	formatValue := ""
	if values := query["format"]; len(values) > 0 {
		formatValue = strings.ToLower(strings.TrimSpace(values[0]))
	}
	if (formatValue == "json" || formatValue == "json-pretty") && squarespaceShopRe.MatchString(path) {
		if sqMatch != nil {
			return Info{Platform: PlatformSquarespace, IsProduct: true, Slug: sqMatch[1]}
		}
		return Info{Platform: PlatformSquarespace}
	}

	if handle := ShopifyHandleFromPath(path); handle != "" {
		return Info{Platform: PlatformShopify, IsProduct: true, Slug: handle}
	}
	if strings.HasSuffix(host, ".myshopify.com") {
		return Info{Platform: PlatformShopify}
	}

	return res
}
