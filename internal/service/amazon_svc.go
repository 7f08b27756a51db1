package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/coerce"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
	"github.com/walkidni/shelfshift-sub001/pkg/structdata"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

// ==================== 亚马逊管道 ====================
//
// 走 RapidAPI 的 real-time-amazon-data 接口，单数据源。站点国家
// 从域名后缀推断，认不出来用配置的默认值。

const (
	amazonSKUPrefix = "AMZ"
	amazonAPIHost   = "real-time-amazon-data.p.rapidapi.com"
)

// 域名后缀 -> 市场国家码
var amazonCountryBySuffix = []struct {
	suffix  string
	country string
}{
	{"amazon.com.mx", "MX"},
	{"amazon.com.br", "BR"},
	{"amazon.com.be", "BE"},
	{"amazon.com.tr", "TR"},
	{"amazon.com.au", "AU"},
	{"amazon.co.uk", "GB"},
	{"amazon.co.jp", "JP"},
	{"amazon.co.za", "ZA"},
	{"amazon.com", "US"},
	{"amazon.ca", "CA"},
	{"amazon.ie", "IE"},
	{"amazon.de", "DE"},
	{"amazon.fr", "FR"},
	{"amazon.it", "IT"},
	{"amazon.es", "ES"},
	{"amazon.nl", "NL"},
	{"amazon.pl", "PL"},
	{"amazon.se", "SE"},
	{"amazon.at", "AT"},
	{"amazon.in", "IN"},
	{"amazon.cn", "CN"},
	{"amazon.sg", "SG"},
	{"amazon.ae", "AE"},
	{"amazon.sa", "SA"},
	{"amazon.eg", "EG"},
}

type AmazonSvc struct {
	client         fetch.Client
	rapidAPIKey    string
	defaultCountry string
}

func NewAmazonSvc(client fetch.Client, rapidAPIKey, defaultCountry string) *AmazonSvc {
	if defaultCountry == "" {
		defaultCountry = "US"
	}
	return &AmazonSvc{client: client, rapidAPIKey: rapidAPIKey, defaultCountry: defaultCountry}
}

func (s *AmazonSvc) Platform() string {
	return urldetect.PlatformAmazon
}

// countryFromURL 按域名后缀猜市场国家
func (s *AmazonSvc) countryFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return s.defaultCountry
	}
	host := strings.ToLower(parsed.Host)
	for _, entry := range amazonCountryBySuffix {
		if strings.HasSuffix(host, entry.suffix) {
			return entry.country
		}
	}
	return s.defaultCountry
}

func (s *AmazonSvc) Sources(rawURL string) ([]Source, error) {
	info := urldetect.Detect(rawURL)
	if !info.IsProduct || info.ProductID == "" {
		return nil, &ValidationError{Msg: "链接里找不到 ASIN"}
	}
	asin := info.ProductID
	country := s.countryFromURL(rawURL)

	return []Source{{
		Name: "product_details",
		Fetch: func(ctx context.Context) (*model.Product, error) {
			return s.fetchProductDetails(ctx, asin, country, rawURL)
		},
	}}, nil
}

func (s *AmazonSvc) fetchProductDetails(ctx context.Context, asin, country, sourceURL string) (*model.Product, error) {
	if s.rapidAPIKey == "" {
		return nil, &ConfigError{Msg: "亚马逊抓取缺少 RapidAPI key"}
	}

	resp, err := s.client.Get(ctx,
		fmt.Sprintf("https://%s/product-details?asin=%s&country=%s", amazonAPIHost, asin, country),
		map[string]string{
			"X-RapidAPI-Key":  s.rapidAPIKey,
			"X-RapidAPI-Host": amazonAPIHost,
		})
	if err != nil {
		return nil, err
	}
	if err := resp.EnsureSuccess(); err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, err
	}
	data := structdata.AsNode(payload["data"])
	if data == nil {
		return nil, ErrNoUsableProduct("接口没有返回商品数据")
	}

	title := coerce.PickName(data["product_title"])
	description := ""
	if about := structdata.AsList(data["about_product"]); len(about) > 0 {
		lines := make([]string, 0, len(about))
		for _, line := range about {
			if s, ok := line.(string); ok {
				lines = append(lines, s)
			}
		}
		description = strings.Join(lines, "<br>")
	} else {
		description = coerce.PickName(data["product_description"])
	}

	currency := coerce.NormalizeCurrency(data["currency"])
	if currency == "" {
		currency = "USD"
	}
	productPrice := makePrice(data["product_price"], currency, data["product_original_price"])

	var imageURLs []string
	if photo := coerce.NormalizeURL(data["product_photo"]); photo != "" {
		imageURLs = append(imageURLs, photo)
	}
	imageURLs = append(imageURLs, coerce.ExtractImageURLs(data["product_photos"], false)...)
	imageURLs = append(imageURLs, coerce.ExtractImageURLs(data["aplus_images"], false)...)
	imageURLs = coerce.Dedupe(imageURLs)

	productInStock := strings.EqualFold(strings.TrimSpace(coerce.PickName(data["product_availability"])), "in stock")

	// --- 变体维度与可购变体 ---
	var dims []string
	for _, rawDim := range structdata.AsList(data["product_variations_dimensions"]) {
		if dim, ok := rawDim.(string); ok && dim != "" {
			dims = append(dims, dim)
		}
	}
	variations := structdata.AsNode(data["product_variations"])

	var declared []model.OptionDef
	for _, dim := range dims {
		var values []string
		for _, rawEntry := range structdata.AsList(variations[dim]) {
			entry := structdata.AsNode(rawEntry)
			isAvail := coerce.ToBool(entry["is_available"])
			if isAvail != nil && *isAvail {
				if value := coerce.PickName(entry["value"]); value != "" {
					values = append(values, value)
				}
			}
		}
		if values = coerce.Dedupe(values); len(values) > 0 {
			declared = append(declared, model.OptionDef{Name: titleCase(dim), Values: values})
		}
	}

	var raws []RawVariant
	if allVariations := structdata.AsNode(data["all_product_variations"]); len(dims) > 0 && len(allVariations) > 0 {
		variantASINs := make([]string, 0, len(allVariations))
		for variantASIN := range allVariations {
			variantASINs = append(variantASINs, variantASIN)
		}
		// map 遍历顺序不定，按 ASIN 排序保证两次抓取输出一致
		sort.Strings(variantASINs)

		for _, variantASIN := range variantASINs {
			axisValues := structdata.AsNode(allVariations[variantASIN])
			var optionValues []model.OptionValue
			for _, dim := range dims {
				if value := coerce.PickName(axisValues[dim]); value != "" {
					optionValues = append(optionValues, model.OptionValue{Name: titleCase(dim), Value: value})
				}
			}

			available := productInStock
			if variantASIN != asin {
				// 其他 ASIN 的可购状态去各维度列表里交叉核对
			lookup:
				for _, dim := range dims {
					for _, rawEntry := range structdata.AsList(variations[dim]) {
						entry := structdata.AsNode(rawEntry)
						if coerce.PickName(entry["asin"]) == variantASIN {
							isAvail := coerce.ToBool(entry["is_available"])
							available = isAvail != nil && *isAvail
							break lookup
						}
					}
				}
			}
			availableCopy := available

			raws = append(raws, RawVariant{
				ID:           variantASIN,
				OptionValues: optionValues,
				Price:        productPrice,
				Inventory: model.Inventory{
					TrackQuantity: true,
					Available:     &availableCopy,
				},
				Identifiers: model.NewIdentifiers(map[string]string{
					"asin": variantASIN,
				}),
			})
		}
	}

	// --- 品牌 / 类目 / 标签 / 重量 ---
	details := structdata.AsNode(data["product_details"])
	information := structdata.AsNode(data["product_information"])

	brand := coerce.PickName(details["Brand"])
	if brand == "" {
		brand = coerce.PickName(information["Manufacturer"])
	}
	if brand == "" {
		byline := coerce.PickName(data["product_byline"])
		if strings.HasPrefix(byline, "Visit the ") && strings.HasSuffix(byline, " Store") {
			brand = strings.TrimSuffix(strings.TrimPrefix(byline, "Visit the "), " Store")
		}
	}

	category := ""
	if path := structdata.AsList(data["category_path"]); len(path) > 0 {
		category = coerce.PickName(structdata.AsNode(path[len(path)-1])["name"])
	}

	var tags []string
	if features := coerce.PickName(information["Special features"]); features != "" {
		tags = append(tags, features)
	}
	if devices := coerce.PickName(information["Compatible Devices"]); devices != "" {
		tags = append(tags, coerce.ExtractNames(devices, true)...)
	}
	tags = coerce.Dedupe(tags)

	weight := amazonItemWeight(coerce.PickName(information["Item Weight"]))

	metaTitle := title
	metaDescription := coerce.Truncate(coerce.PickName(data["customers_say"]), coerce.DescriptionLimit)
	slug := coerce.PickName(data["product_slug"])

	productInStockCopy := productInStock
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  amazonSKUPrefix,
		ProductKey: asin,
		Variants:   raws,
		Options:    declared,
		Default: &RawVariant{
			ID:    asin,
			Price: productPrice,
			Inventory: model.Inventory{
				TrackQuantity: true,
				Available:     &productInStockCopy,
			},
			Identifiers: model.NewIdentifiers(map[string]string{"asin": asin}),
		},
	})

	media := make([]model.Media, 0, len(imageURLs))
	for i, imageURL := range imageURLs {
		media = append(media, model.Media{URL: imageURL, Type: "image", Position: i + 1, IsPrimary: i == 0})
	}
	media = MergeVariantMedia(media, variants)

	var taxonomyPaths [][]string
	if category != "" {
		taxonomyPaths = [][]string{{category}}
	}

	return &model.Product{
		Title:       title,
		Description: description,
		Brand:       brand,
		Vendor:      brand,
		Price:       productPrice,
		Media:       media,
		Options:     options,
		Variants:    variants,
		Taxonomy:    model.Taxonomy{Paths: taxonomyPaths},
		Tags:        tags,
		Seo:         model.Seo{Title: metaTitle, Description: metaDescription},
		Identifiers: model.NewIdentifiers(map[string]string{
			"source_product_id": asin,
			"asin":              asin,
		}),
		Source: model.SourceRef{
			Platform: urldetect.PlatformAmazon,
			ID:       asin,
			Slug:     slug,
			URL:      sourceURL,
		},
		Weight:           weight,
		RequiresShipping: true,
		TrackQuantity:    true,
		Raw:              payload,
	}, nil
}

var amazonWeightNumberRe = regexp.MustCompile(`[\d.]+`)

// amazonItemWeight 解析 "Item Weight" 文本。盎司按 28.35 折克，
// 其余数值套通用的克数启发式（"2.2 Pounds" 会按千克猜成 2200 克，
// 有损口径保持不变）
func amazonItemWeight(text string) *model.Weight {
	if text == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(text), "ounce") {
		match := amazonWeightNumberRe.FindString(text)
		value, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return nil
		}
		grams := int(math.Round(value * 28.35))
		return gramsWeight(&grams)
	}
	return gramsWeight(coerce.WeightToGrams(text))
}
