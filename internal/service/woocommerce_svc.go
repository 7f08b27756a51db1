package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/coerce"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
	"github.com/walkidni/shelfshift-sub001/pkg/structdata"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

// ==================== WooCommerce 管道 ====================
//
// 首选免鉴权的 Store API（金额是最小货币单位的整数），失败后
// 猜店面地址抓 HTML 里的 JSON-LD。

const wooSKUPrefix = "WC"

type WoocommerceSvc struct {
	client fetch.Client
}

func NewWoocommerceSvc(client fetch.Client) *WoocommerceSvc {
	return &WoocommerceSvc{client: client}
}

func (s *WoocommerceSvc) Platform() string {
	return urldetect.PlatformWooCommerce
}

func (s *WoocommerceSvc) Sources(rawURL string) ([]Source, error) {
	info := urldetect.Detect(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("无法解析链接: %v", err)}
	}
	token := urldetect.WooStoreAPIProductToken(parsed.Path)
	isAPIURL := token != ""

	sources := []Source{{
		Name: "store_api",
		Fetch: func(ctx context.Context) (*model.Product, error) {
			return s.fetchFromStoreAPI(ctx, rawURL, parsed.Host, info, isAPIURL)
		},
	}}
	for _, fallbackURL := range s.fallbackStorefrontURLs(parsed.Host, rawURL, info, token, isAPIURL) {
		fallbackURL := fallbackURL
		sources = append(sources, Source{
			Name: "html_jsonld",
			Fetch: func(ctx context.Context) (*model.Product, error) {
				return s.fetchFromHTML(ctx, fallbackURL, rawURL)
			},
		})
	}
	return sources, nil
}

// fallbackStorefrontURLs Store API 失败后要试的店面地址
func (s *WoocommerceSvc) fallbackStorefrontURLs(host, rawURL string, info urldetect.Info, token string, isAPIURL bool) []string {
	if !isAPIURL {
		return []string{rawURL}
	}

	slug := info.Slug
	productID := info.ProductID
	if slug == "" && token != "" && !isDigits(token) {
		slug = token
	}
	if productID == "" && isDigits(token) {
		productID = token
	}

	var urls []string
	if slug != "" {
		urls = append(urls, fmt.Sprintf("https://%s/product/%s/", host, slug))
	}
	if isDigits(productID) {
		urls = append(urls, fmt.Sprintf("https://%s/?product=%s", host, productID))
	}
	return coerce.Dedupe(urls)
}

func (s *WoocommerceSvc) fetchFromStoreAPI(ctx context.Context, rawURL, host string, info urldetect.Info, isAPIURL bool) (*model.Product, error) {
	apiURL := rawURL
	if !isAPIURL {
		base := fmt.Sprintf("https://%s/wp-json/wc/store/v1/products", host)
		switch {
		case info.ProductID != "":
			apiURL = base + "/" + url.PathEscape(info.ProductID)
		case info.Slug != "":
			apiURL = base + "?slug=" + url.QueryEscape(info.Slug)
		default:
			return nil, &ValidationError{Msg: "WooCommerce 商品链接缺少 id 和 slug"}
		}
	}

	resp, err := s.client.Get(ctx, apiURL, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.EnsureSuccess(); err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, err
	}
	data, err := extractStoreAPIProduct(payload)
	if err != nil {
		return nil, err
	}
	return s.parseStoreAPIProduct(data, payload, rawURL), nil
}

// extractStoreAPIProduct 兼容单对象、{"products": [...]} 和数组三种载荷
func extractStoreAPIProduct(payload any) (structdata.Node, error) {
	switch v := payload.(type) {
	case map[string]any:
		if v["id"] != nil && coerce.PickName(v["name"]) != "" {
			return v, nil
		}
		for _, item := range structdata.AsList(v["products"]) {
			if node := structdata.AsNode(item); node != nil && node["id"] != nil {
				return node, nil
			}
		}
	case []any:
		for _, item := range v {
			if node := structdata.AsNode(item); node != nil && node["id"] != nil {
				return node, nil
			}
		}
	}
	return nil, ErrNoUsableProduct("Store API 没有返回可用的商品数据")
}

// wooPriceComponents 解析 Store API 的 prices 对象。金额是按
// currency_minor_unit 缩放的整数计数
func wooPriceComponents(raw any) (current *decimal.Decimal, currency string, regular *decimal.Decimal) {
	currency = "USD"
	prices := structdata.AsNode(raw)
	if prices == nil {
		return nil, currency, nil
	}

	if code := coerce.NormalizeCurrency(prices["currency_code"]); code != "" {
		currency = code
	} else if code := coerce.NormalizeCurrency(prices["currency"]); code != "" {
		currency = code
	}

	minorUnit := 2
	if parsed := coerce.ToInt(prices["currency_minor_unit"]); parsed != nil {
		minorUnit = *parsed
	}

	current = coerce.ParseMinorUnitAmount(prices["price"], minorUnit)
	regular = coerce.ParseMinorUnitAmount(prices["regular_price"], minorUnit)
	sale := coerce.ParseMinorUnitAmount(prices["sale_price"], minorUnit)
	if current == nil {
		if regular != nil {
			current = regular
		} else {
			current = sale
		}
	}
	return current, currency, regular
}

// wooOptionCatalog attributes -> 选项目录
func wooOptionCatalog(data structdata.Node) []model.OptionDef {
	var defs []model.OptionDef
	for _, rawAttribute := range structdata.AsList(data["attributes"]) {
		attribute := structdata.AsNode(rawAttribute)
		if attribute == nil {
			continue
		}
		name := coerce.PickName(attribute["name"])
		if name == "" {
			name = coerce.PickName(attribute["attribute"])
		}
		if name == "" {
			continue
		}
		values := coerce.ExtractNames(attribute["terms"], false)
		if len(values) == 0 {
			values = coerce.ExtractNames(attribute["options"], false)
		}
		if len(values) == 0 {
			if value := coerce.PickName(attribute["option"]); value != "" {
				values = []string{value}
			}
		}
		if len(values) > 0 {
			defs = append(defs, model.OptionDef{Name: name, Values: values})
		}
	}
	return defs
}

// wooVariantOptions 变体的 attributes 可能是字典也可能是列表
func wooVariantOptions(rawVariant structdata.Node) []model.OptionValue {
	var out []model.OptionValue
	switch attrs := rawVariant["attributes"].(type) {
	case map[string]any:
		// 字典形态按排好序的键遍历，保证输出稳定
		for _, name := range sortedKeys(attrs) {
			value := coerce.PickName(attrs[name])
			if name != "" && value != "" {
				out = append(out, model.OptionValue{Name: name, Value: value})
			}
		}
	case []any:
		for _, rawOption := range attrs {
			option := structdata.AsNode(rawOption)
			if option == nil {
				continue
			}
			name := coerce.PickName(option["name"])
			if name == "" {
				name = coerce.PickName(option["attribute"])
			}
			if name == "" {
				name = "Option"
			}
			value := coerce.PickName(option["option"])
			if value == "" {
				value = coerce.PickName(option["value"])
			}
			if value == "" {
				value = coerce.PickName(option["slug"])
			}
			if value != "" {
				out = append(out, model.OptionValue{Name: name, Value: value})
			}
		}
	}
	return out
}

func (s *WoocommerceSvc) parseStoreAPIProduct(data structdata.Node, payload any, sourceURL string) *model.Product {
	title := coerce.PickName(data["name"])
	description := coerce.PickName(data["description"])
	if description == "" {
		description = coerce.PickName(data["summary"])
	}
	if description == "" {
		description = coerce.PickName(data["short_description"])
	}

	amount, currency, regular := wooPriceComponents(data["prices"])
	if amount == nil {
		amount = coerce.ParseMoney(data["price"])
	}

	declared := wooOptionCatalog(data)

	trackQuantity := true
	if manageStock := coerce.ToBool(data["manage_stock"]); manageStock != nil {
		trackQuantity = *manageStock
	}
	allowBackorder := coerce.ToBool(data["is_on_backorder"])
	productAvailable := coerce.ToBool(data["is_in_stock"])

	productKey := coerce.SlugToken(stringID(data["id"]))
	if productKey == "" {
		productKey = coerce.SlugToken(data["slug"])
	}
	if productKey == "" {
		productKey = coerce.SlugToken(data["name"])
	}
	if productKey == "" {
		productKey = "item"
	}

	var raws []RawVariant
	for _, rawItem := range structdata.AsList(data["variations"]) {
		variant := structdata.AsNode(rawItem)
		if variant == nil {
			if rawItem == nil {
				continue
			}
			// 纯标量条目只有一个 ID 信号
			raws = append(raws, RawVariant{ID: stringID(rawItem)})
			continue
		}

		variantID := stringID(variant["id"])
		variantTitle := coerce.PickName(variant["name"])
		if variantTitle == "" {
			variantTitle = coerce.PickName(variant["title"])
		}
		sku := coerce.PickName(variant["sku"])
		optionValues := wooVariantOptions(variant)

		variantAmount, variantCurrency, variantRegular := wooPriceComponents(variant["prices"])
		if variantAmount == nil {
			variantAmount = coerce.ParseMoney(variant["price"])
		}
		if variantAmount == nil {
			variantAmount = amount
			variantRegular = regular
		}
		if variantCurrency == "USD" && currency != "" {
			variantCurrency = currency
		}

		available := coerce.ToBool(variant["is_in_stock"])
		if available == nil {
			available = coerce.ToBool(variant["is_purchasable"])
		}
		if available == nil {
			available = productAvailable
		}

		quantity := coerce.ToInt(variant["stock_quantity"])
		if quantity == nil {
			quantity = coerce.ToInt(variant["quantity"])
		}
		variantTrack := trackQuantity
		if manageStock := coerce.ToBool(variant["manage_stock"]); manageStock != nil {
			variantTrack = *manageStock
		}
		variantBackorder := allowBackorder
		if vb := coerce.ToBool(variant["is_on_backorder"]); vb != nil {
			variantBackorder = vb
		}

		image := ""
		if node := structdata.AsNode(variant["image"]); node != nil {
			image = coerce.NormalizeURL(node["src"])
		} else {
			image = coerce.NormalizeURL(variant["image"])
		}
		var media []model.Media
		if image != "" {
			media = append(media, model.Media{URL: image, Type: "image", Position: 1, IsPrimary: true})
		}

		raws = append(raws, RawVariant{
			ID:           variantID,
			SKU:          sku,
			Title:        variantTitle,
			OptionValues: optionValues,
			Price:        makePrice(variantAmount, variantCurrency, variantRegular),
			Media:        media,
			Inventory: model.Inventory{
				TrackQuantity:  variantTrack,
				Quantity:       quantity,
				Available:      available,
				AllowBackorder: variantBackorder,
			},
			Identifiers: model.NewIdentifiers(map[string]string{
				"source_variant_id": variantID,
				"sku":               sku,
			}),
		})
	}

	productID := stringID(data["id"])
	productSKU := coerce.PickName(data["sku"])
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  wooSKUPrefix,
		ProductKey: productKey,
		Variants:   raws,
		Options:    declared,
		Default: &RawVariant{
			ID:    productID,
			SKU:   productSKU,
			Price: makePrice(amount, currency, regular),
			Inventory: model.Inventory{
				TrackQuantity:  trackQuantity,
				Quantity:       coerce.ToInt(data["stock_quantity"]),
				Available:      productAvailable,
				AllowBackorder: allowBackorder,
			},
			Identifiers: model.NewIdentifiers(map[string]string{
				"source_variant_id": productID,
				"sku":               productSKU,
			}),
		},
	})

	brand := coerce.PickName(data["brand"])
	if brand == "" {
		if brands := coerce.ExtractNames(data["brands"], false); len(brands) > 0 {
			brand = brands[0]
		}
	}

	categories := coerce.ExtractNames(data["categories"], false)
	var taxonomyPaths [][]string
	for _, name := range categories {
		taxonomyPaths = append(taxonomyPaths, []string{name})
	}

	tags := coerce.ExtractNames(data["tags"], false)
	if tags == nil {
		tags = []string{}
	}

	slug := coerce.PickName(data["slug"])
	if slug == "" {
		if permalink := coerce.PickName(data["permalink"]); permalink != "" {
			slug = urldetect.Detect(permalink).Slug
		}
	}

	isDigital := false
	if dl := coerce.ToBool(data["is_downloadable"]); dl != nil && *dl {
		isDigital = true
	}
	if virtual := coerce.ToBool(data["is_virtual"]); virtual != nil && *virtual {
		isDigital = true
	}

	imageURLs := wooProductImages(data)
	media := make([]model.Media, 0, len(imageURLs))
	for i, imageURL := range imageURLs {
		media = append(media, model.Media{URL: imageURL, Type: "image", Position: i + 1, IsPrimary: i == 0})
	}
	media = MergeVariantMedia(media, variants)

	metaTitle, metaDescription := coerce.MetaFromDescription(title, description, true)

	return &model.Product{
		Title:       title,
		Description: description,
		Brand:       brand,
		Vendor:      brand,
		Price:       makePrice(amount, currency, regular),
		Media:       media,
		Options:     options,
		Variants:    variants,
		Taxonomy:    model.Taxonomy{Paths: taxonomyPaths},
		Tags:        tags,
		Seo:         model.Seo{Title: metaTitle, Description: metaDescription},
		Identifiers: model.NewIdentifiers(map[string]string{
			"source_product_id": productID,
			"sku":               productSKU,
		}),
		Source: model.SourceRef{
			Platform: urldetect.PlatformWooCommerce,
			ID:       productID,
			Slug:     slug,
			URL:      sourceURL,
		},
		RequiresShipping: !isDigital,
		TrackQuantity:    trackQuantity,
		IsDigital:        isDigital,
		Raw:              payload,
	}
}

// wooProductImages images 列表取 src/thumbnail，再补单数 image 字段
func wooProductImages(data structdata.Node) []string {
	var urls []string
	for _, rawImage := range structdata.AsList(data["images"]) {
		switch v := rawImage.(type) {
		case string:
			if normalized := coerce.NormalizeURL(v); normalized != "" {
				urls = append(urls, normalized)
			}
		case map[string]any:
			normalized := coerce.NormalizeURL(v["src"])
			if normalized == "" {
				normalized = coerce.NormalizeURL(v["thumbnail"])
			}
			if normalized != "" {
				urls = append(urls, normalized)
			}
		}
	}
	switch v := data["image"].(type) {
	case map[string]any:
		if normalized := coerce.NormalizeURL(v["src"]); normalized != "" {
			urls = append(urls, normalized)
		}
	case string:
		if normalized := coerce.NormalizeURL(v); normalized != "" {
			urls = append(urls, normalized)
		}
	}
	return coerce.Dedupe(urls)
}

// wooHTMLOffer JSON-LD offer 转变体（不提选项轴，店面页拿不到）
func wooHTMLOffer(raw any) *RawVariant {
	offer, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	amount := coerce.ParseMoney(offerPrice(offer))
	currency := coerce.NormalizeCurrency(offer["priceCurrency"])
	if currency == "" {
		currency = "USD"
	}
	available := offerAvailability(offer["availability"])
	sku := coerce.PickName(offer["sku"])
	variantID := coerce.PickName(offer["@id"])
	if variantID == "" {
		variantID = coerce.PickName(offer["url"])
	}
	if variantID == "" {
		variantID = sku
	}

	if variantID == "" && sku == "" && amount == nil && available == nil {
		return nil
	}

	return &RawVariant{
		ID:    variantID,
		SKU:   sku,
		Price: makePrice(amount, currency, nil),
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

func (s *WoocommerceSvc) fetchFromHTML(ctx context.Context, pageURL, sourceURL string) (*model.Product, error) {
	resp, err := s.client.Get(ctx, pageURL, htmlHeaders())
	if err != nil {
		return nil, err
	}
	if err := resp.EnsureSuccess(); err != nil {
		return nil, err
	}

	nodes := structdata.ProductNodesFromHTML(string(resp.Body))
	if len(nodes) == 0 {
		return nil, ErrNoUsableProduct("WooCommerce 店面页里没有商品 JSON-LD")
	}
	node := nodes[0]

	title := coerce.PickName(node["name"])
	description := coerce.PickName(node["description"])
	imageURLs := coerce.ExtractImageURLs(node["image"], true)
	brand := jsonldBrand(node["brand"])

	rawOffers := node["offers"]
	var raws []RawVariant
	for _, item := range offersToList(rawOffers) {
		if variant := wooHTMLOffer(item); variant != nil {
			raws = append(raws, *variant)
		}
	}

	var defaultAmount *decimal.Decimal
	defaultCurrency := "USD"
	for _, rv := range raws {
		if rv.Price != nil && rv.Price.Current.Amount != nil {
			defaultAmount = rv.Price.Current.Amount
			if rv.Price.Current.Currency != "" {
				defaultCurrency = rv.Price.Current.Currency
			}
			break
		}
	}
	if defaultAmount == nil {
		if aggregate, ok := rawOffers.(map[string]any); ok {
			defaultAmount = coerce.ParseMoney(aggregate["lowPrice"])
			if code := coerce.NormalizeCurrency(aggregate["priceCurrency"]); code != "" {
				defaultCurrency = code
			}
		}
	}

	info := urldetect.Detect(sourceURL)
	productKey := coerce.SlugToken(title)
	if productKey == "" {
		productKey = "item"
	}
	defaultID := info.ProductID
	if defaultID == "" {
		defaultID = info.Slug
	}
	if defaultID == "" {
		defaultID = coerce.SlugToken(title)
	}
	availableTrue := true
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  wooSKUPrefix,
		ProductKey: productKey,
		Variants:   raws,
		Default: &RawVariant{
			ID:    defaultID,
			Price: makePrice(defaultAmount, defaultCurrency, nil),
			Inventory: model.Inventory{
				TrackQuantity: false,
				Available:     &availableTrue,
			},
		},
	})

	media := make([]model.Media, 0, len(imageURLs))
	for i, imageURL := range imageURLs {
		media = append(media, model.Media{URL: imageURL, Type: "image", Position: i + 1, IsPrimary: i == 0})
	}

	category := coerce.PickName(node["category"])
	var taxonomyPaths [][]string
	if category != "" {
		taxonomyPaths = [][]string{{category}}
	}
	metaTitle, metaDescription := coerce.MetaFromDescription(title, description, true)

	return &model.Product{
		Title:       title,
		Description: description,
		Brand:       brand,
		Vendor:      brand,
		Price:       makePrice(defaultAmount, defaultCurrency, nil),
		Media:       media,
		Options:     options,
		Variants:    variants,
		Taxonomy:    model.Taxonomy{Paths: taxonomyPaths},
		Tags:        []string{},
		Seo:         model.Seo{Title: metaTitle, Description: metaDescription},
		Identifiers: model.NewIdentifiers(map[string]string{
			"source_product_id": defaultID,
		}),
		Source: model.SourceRef{
			Platform: urldetect.PlatformWooCommerce,
			Slug:     info.Slug,
			URL:      sourceURL,
		},
		RequiresShipping: true,
		TrackQuantity:    true,
		Raw:              node,
	}, nil
}
