package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/coerce"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
	"github.com/walkidni/shelfshift-sub001/pkg/structdata"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

// ==================== Squarespace 管道 ====================
//
// Squarespace 商品页挂 ?format=json 能拿到整棵页面数据，但商品
// 节点埋的位置不固定，要在所有字典节点里按信号打分挑最像商品
// 的那个。拿不到再回退 HTML 里的 JSON-LD。

const squarespaceSKUPrefix = "SQ"

type SquarespaceSvc struct {
	client fetch.Client
}

func NewSquarespaceSvc(client fetch.Client) *SquarespaceSvc {
	return &SquarespaceSvc{client: client}
}

func (s *SquarespaceSvc) Platform() string {
	return urldetect.PlatformSquarespace
}

func (s *SquarespaceSvc) Sources(rawURL string) ([]Source, error) {
	info := urldetect.Detect(rawURL)
	slug := info.Slug

	return []Source{
		{
			Name: "page_json",
			Fetch: func(ctx context.Context) (*model.Product, error) {
				return s.fetchFromPageJSON(ctx, rawURL, slug)
			},
		},
		{
			Name: "html_jsonld",
			Fetch: func(ctx context.Context) (*model.Product, error) {
				return s.fetchFromHTML(ctx, rawURL, slug)
			},
		},
	}, nil
}

// formatJSONURL 把已有的 format 参数换成 format=json
func formatJSONURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := url.Values{}
	for key, values := range parsed.Query() {
		if strings.EqualFold(key, "format") {
			continue
		}
		for _, v := range values {
			query.Add(key, v)
		}
	}
	query.Set("format", "json")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// sqImageURLs Squarespace 专用的图片提取：资产字段优先，
// ImageObject 节点才认 url，再递归 image/images
func sqImageURLs(items any) []string {
	var urls []string
	switch v := items.(type) {
	case string:
		if normalized := coerce.NormalizeURL(v); normalized != "" {
			urls = append(urls, normalized)
		}
	case []any:
		for _, item := range v {
			urls = append(urls, sqImageURLs(item)...)
		}
	case map[string]any:
		for _, key := range []string{"assetUrl", "originalSizeUrl", "imageUrl", "src"} {
			if normalized := coerce.NormalizeURL(v[key]); normalized != "" {
				urls = append(urls, normalized)
			}
		}
		if strings.EqualFold(coerce.PickName(v["@type"]), "imageobject") {
			if normalized := coerce.NormalizeURL(v["url"]); normalized != "" {
				urls = append(urls, normalized)
			}
		}
		if v["image"] != nil {
			urls = append(urls, sqImageURLs(v["image"])...)
		}
		if v["images"] != nil {
			urls = append(urls, sqImageURLs(v["images"])...)
		}
	}
	return coerce.Dedupe(urls)
}

// candidateScore 商品候选节点打分
func candidateScore(candidate structdata.Node, slug string) int {
	score := 0
	if _, ok := candidate["structuredContent"].(map[string]any); ok {
		score += 3
	}
	if coerce.PickName(candidate["title"]) != "" || coerce.PickName(candidate["name"]) != "" {
		score++
	}
	if coerce.PickName(candidate["id"]) != "" {
		score++
	}
	if strings.EqualFold(coerce.PickName(candidate["recordTypeLabel"]), "product") {
		score += 2
	}
	if slug != "" {
		if coerce.PickName(candidate["urlId"]) == slug {
			score += 3
		}
		if fullURL := coerce.PickName(candidate["fullUrl"]); strings.Contains(fullURL, "/"+slug) {
			score += 2
		}
	}
	return score
}

// findPageJSONProduct 在整棵页面 JSON 里挑最像商品的节点
func findPageJSONProduct(payload any, slug string) structdata.Node {
	var best structdata.Node
	bestScore := 0
	for _, node := range structdata.DictNodes(payload) {
		sc, ok := node["structuredContent"].(map[string]any)
		if !ok {
			continue
		}

		recordType := strings.ToLower(coerce.PickName(node["recordTypeLabel"]))
		_, hasVariants := sc["variants"].([]any)
		hasSignals := recordType == "product" ||
			(slug != "" && coerce.PickName(node["urlId"]) == slug) ||
			hasVariants ||
			sc["variantOptions"] != nil ||
			sc["priceMoney"] != nil ||
			coerce.PickName(sc["productType"]) != ""
		if !hasSignals {
			continue
		}
		if score := candidateScore(node, slug); score > bestScore {
			best = node
			bestScore = score
		}
	}
	return best
}

func (s *SquarespaceSvc) fetchFromPageJSON(ctx context.Context, rawURL, slug string) (*model.Product, error) {
	resp, err := s.client.Get(ctx, formatJSONURL(rawURL), nil)
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
	candidate := findPageJSONProduct(payload, slug)
	if candidate == nil {
		return nil, ErrNoUsableProduct("页面 JSON 里没有带结构化内容的商品条目")
	}
	return s.parsePageJSON(candidate, payload, rawURL, slug), nil
}

// sqVariantOptions 变体选项三种形态：optionValues 列表、字典、option1..3
func sqVariantOptions(rawVariant structdata.Node, optionNames []string) []model.OptionValue {
	var out []model.OptionValue

	if rawValues, ok := rawVariant["optionValues"].([]any); ok {
		for index, rawValue := range rawValues {
			fallbackName := ""
			if index < len(optionNames) {
				fallbackName = optionNames[index]
			}
			switch v := rawValue.(type) {
			case string:
				if value := coerce.PickName(v); value != "" && fallbackName != "" {
					out = append(out, model.OptionValue{Name: fallbackName, Value: value})
				}
			case map[string]any:
				name := coerce.PickName(v["optionName"])
				if name == "" {
					name = coerce.PickName(v["name"])
				}
				if name == "" {
					name = coerce.PickName(v["label"])
				}
				if name == "" {
					name = fallbackName
				}
				value := coerce.PickName(v["value"])
				if value == "" {
					value = coerce.PickName(v["name"])
				}
				if value == "" {
					value = coerce.PickName(v["title"])
				}
				if name != "" && value != "" {
					out = append(out, model.OptionValue{Name: name, Value: value})
				}
			}
		}
		return out
	}

	if rawValues, ok := rawVariant["optionValues"].(map[string]any); ok {
		for _, key := range sortedKeys(rawValues) {
			name := coerce.PickName(key)
			value := coerce.PickName(rawValues[key])
			if name != "" && value != "" {
				out = append(out, model.OptionValue{Name: name, Value: value})
			}
		}
		return out
	}

	for index := 1; index <= 3; index++ {
		value := coerce.PickName(rawVariant[fmt.Sprintf("option%d", index)])
		if value == "" {
			continue
		}
		name := fmt.Sprintf("Option %d", index)
		if index-1 < len(optionNames) {
			name = optionNames[index-1]
		}
		out = append(out, model.OptionValue{Name: name, Value: value})
	}
	return out
}

// sqGalleryMedia 相册条目按 displayIndex 排序取 assetUrl
func sqGalleryMedia(candidate, sc structdata.Node) []string {
	var urls []string
	if items, ok := candidate["items"].([]any); ok {
		type galleryItem struct {
			index int
			node  structdata.Node
		}
		var gallery []galleryItem
		for _, rawItem := range items {
			if node := structdata.AsNode(rawItem); node != nil {
				index := 0
				if parsed := coerce.ToInt(node["displayIndex"]); parsed != nil {
					index = *parsed
				}
				gallery = append(gallery, galleryItem{index: index, node: node})
			}
		}
		sort.SliceStable(gallery, func(i, j int) bool { return gallery[i].index < gallery[j].index })
		for _, item := range gallery {
			if normalized := coerce.NormalizeURL(item.node["assetUrl"]); normalized != "" {
				urls = append(urls, normalized)
			}
		}
	}
	if normalized := coerce.NormalizeURL(candidate["assetUrl"]); normalized != "" {
		urls = append(urls, normalized)
	}
	for _, block := range []any{sc["images"], sc["image"], sc["items"]} {
		urls = append(urls, sqImageURLs(block)...)
	}
	return coerce.Dedupe(urls)
}

func (s *SquarespaceSvc) parsePageJSON(candidate structdata.Node, payload any, sourceURL, slug string) *model.Product {
	sc := structdata.AsNode(candidate["structuredContent"])

	title := coerce.PickName(candidate["title"])
	if title == "" {
		title = coerce.PickName(candidate["name"])
	}
	if title == "" {
		title = coerce.PickName(sc["title"])
	}
	description := coerce.PickName(candidate["description"])
	if description == "" {
		description = coerce.PickName(candidate["body"])
	}
	if description == "" {
		description = coerce.PickName(sc["description"])
	}

	imageURLs := sqGalleryMedia(candidate, sc)

	// --- 声明的选项目录 ---
	var declared []model.OptionDef
	var optionNames []string
	for _, rawOption := range structdata.AsList(sc["variantOptions"]) {
		option := structdata.AsNode(rawOption)
		if option == nil {
			continue
		}
		name := coerce.PickName(option["name"])
		if name == "" {
			name = coerce.PickName(option["title"])
		}
		if name == "" {
			continue
		}
		values := coerce.ExtractNames(option["values"], true)
		if len(values) == 0 {
			values = coerce.ExtractNames(option["options"], true)
		}
		optionNames = append(optionNames, name)
		if len(values) > 0 {
			declared = append(declared, model.OptionDef{Name: name, Values: values})
		}
	}

	// --- 变体 ---
	var raws []RawVariant
	for _, rawItem := range structdata.AsList(sc["variants"]) {
		variant := structdata.AsNode(rawItem)
		if variant == nil {
			if rawItem != nil {
				raws = append(raws, RawVariant{ID: stringID(rawItem)})
			}
			continue
		}

		variantID := coerce.PickName(variant["id"])
		variantTitle := coerce.PickName(variant["title"])
		if variantTitle == "" {
			variantTitle = coerce.PickName(variant["name"])
		}
		sku := coerce.PickName(variant["sku"])
		optionValues := sqVariantOptions(variant, optionNames)

		amountRaw, currency := moneyFromValue(variant["priceMoney"], nil)
		amount := coerce.ParseMoney(amountRaw)
		if amount == nil {
			amountRaw, currency = moneyFromValue(variant["price"], nil)
			amount = coerce.ParseMoney(amountRaw)
		}
		compareRaw, _ := moneyFromValue(variant["salePriceMoney"], nil)
		compareAt := coerce.ParseMoney(compareRaw)
		if compareAt != nil && compareAt.IsZero() {
			compareAt = nil
		}

		available := coerce.FirstBool(variant["inStock"], variant["isInStock"], variant["available"])
		quantity := coerce.ToInt(variant["qtyInStock"])
		if quantity == nil {
			quantity = coerce.ToInt(variant["stock"])
		}
		if quantity == nil {
			quantity = coerce.ToInt(variant["quantity"])
		}
		trackQuantity := true
		if unlimited := coerce.ToBool(variant["unlimited"]); unlimited != nil {
			trackQuantity = !*unlimited
		}

		image := ""
		if images := sqImageURLs(variant["image"]); len(images) > 0 {
			image = images[0]
		} else if images := sqImageURLs(variant["images"]); len(images) > 0 {
			image = images[0]
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
			Price:        makePrice(amount, currency, compareAt),
			Media:        media,
			Inventory: model.Inventory{
				TrackQuantity: trackQuantity,
				Quantity:      quantity,
				Available:     available,
			},
			Identifiers: model.NewIdentifiers(map[string]string{
				"source_variant_id": variantID,
				"sku":               sku,
			}),
		})
	}

	// --- 默认价格 ---
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
		amountRaw, currency := moneyFromValue(sc["priceMoney"], nil)
		defaultAmount = coerce.ParseMoney(amountRaw)
		if currency != "" {
			defaultCurrency = currency
		}
	}

	inferredSlug := slug
	if inferredSlug == "" {
		inferredSlug = coerce.PickName(candidate["urlId"])
	}
	if inferredSlug == "" {
		inferredSlug = coerce.PickName(sc["urlSlug"])
	}
	if inferredSlug == "" {
		inferredSlug = urldetect.Detect(sourceURL).Slug
	}

	productID := coerce.PickName(candidate["id"])
	if productID == "" {
		productID = inferredSlug
	}
	productKey := coerce.SlugToken(inferredSlug)
	if productKey == "" {
		productKey = coerce.SlugToken(title)
	}
	if productKey == "" {
		productKey = coerce.SlugToken(productID)
	}
	if productKey == "" {
		productKey = "item"
	}

	availableTrue := true
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  squarespaceSKUPrefix,
		ProductKey: productKey,
		Variants:   raws,
		Options:    declared,
		Default: &RawVariant{
			ID:    productID,
			Price: makePrice(defaultAmount, defaultCurrency, nil),
			Inventory: model.Inventory{
				TrackQuantity: true,
				Available:     &availableTrue,
			},
		},
	})

	media := make([]model.Media, 0, len(imageURLs))
	for i, imageURL := range imageURLs {
		media = append(media, model.Media{URL: imageURL, Type: "image", Position: i + 1, IsPrimary: i == 0})
	}
	media = MergeVariantMedia(media, variants)

	tags := coerce.Dedupe(append(coerce.ExtractNames(candidate["tags"], true), coerce.ExtractNames(sc["tags"], true)...))
	if tags == nil {
		tags = []string{}
	}

	categories := coerce.ExtractNames(candidate["categories"], true)
	if len(categories) == 0 {
		categories = coerce.ExtractNames(sc["categories"], true)
	}
	var taxonomyPaths [][]string
	for _, name := range categories {
		taxonomyPaths = append(taxonomyPaths, []string{name})
	}

	brand := jsonldBrand(sc["brand"])
	metaTitle, metaDescription := coerce.MetaFromDescription(title, description, true)

	isDigital := false
	for _, flag := range []any{sc["isDigital"], sc["isVirtual"], sc["isDownloadable"]} {
		if parsed := coerce.ToBool(flag); parsed != nil && *parsed {
			isDigital = true
			break
		}
	}
	if strings.EqualFold(coerce.PickName(sc["productType"]), "digital") {
		isDigital = true
	}

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
		Tags:        tags,
		Seo:         model.Seo{Title: metaTitle, Description: metaDescription},
		Identifiers: model.NewIdentifiers(map[string]string{
			"source_product_id": productID,
		}),
		Source: model.SourceRef{
			Platform: urldetect.PlatformSquarespace,
			ID:       productID,
			Slug:     inferredSlug,
			URL:      sourceURL,
		},
		RequiresShipping: !isDigital,
		TrackQuantity:    true,
		IsDigital:        isDigital,
		Raw:              payload,
	}
}

func (s *SquarespaceSvc) fetchFromHTML(ctx context.Context, rawURL, slug string) (*model.Product, error) {
	resp, err := s.client.Get(ctx, rawURL, htmlHeaders())
	if err != nil {
		return nil, err
	}
	if err := resp.EnsureSuccess(); err != nil {
		return nil, err
	}

	nodes := structdata.ProductNodesFromHTML(string(resp.Body))
	if len(nodes) == 0 {
		return nil, ErrNoUsableProduct("Squarespace 页面里没有商品 JSON-LD")
	}

	// 页面可能带多段 Product，优先 url 里含当前 slug 的那段
	selected := nodes[0]
	if slug != "" {
		for _, node := range nodes {
			if productURL := coerce.PickName(node["url"]); strings.Contains(productURL, "/"+slug) {
				selected = node
				break
			}
		}
	}
	return s.parseJSONLD(selected, rawURL, slug), nil
}

func (s *SquarespaceSvc) parseJSONLD(node structdata.Node, sourceURL, slug string) *model.Product {
	title := coerce.PickName(node["name"])
	description := coerce.PickName(node["description"])
	imageURLs := sqImageURLs(node["image"])
	brand := jsonldBrand(node["brand"])

	rawOffers := node["offers"]
	var raws []RawVariant
	for _, item := range offersToList(rawOffers) {
		if variant := parseOfferVariant(item); variant != nil {
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

	inferredSlug := slug
	if inferredSlug == "" {
		inferredSlug = urldetect.Detect(sourceURL).Slug
	}

	productID := coerce.PickName(node["productID"])
	if productID == "" {
		productID = coerce.PickName(node["sku"])
	}
	if productID == "" {
		productID = coerce.PickName(node["mpn"])
	}
	if productID == "" {
		productID = inferredSlug
	}

	productKey := coerce.SlugToken(inferredSlug)
	if productKey == "" {
		productKey = coerce.SlugToken(title)
	}
	if productKey == "" {
		productKey = "item"
	}

	availableTrue := true
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  squarespaceSKUPrefix,
		ProductKey: productKey,
		Variants:   raws,
		Default: &RawVariant{
			ID:    productID,
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
	media = MergeVariantMedia(media, variants)

	tags := coerce.ExtractNames(node["keywords"], true)
	if tags == nil {
		tags = []string{}
	}
	category := coerce.PickName(node["category"])
	var taxonomyPaths [][]string
	if category != "" {
		taxonomyPaths = [][]string{{category}}
	}

	metaTitle, metaDescription := coerce.MetaFromDescription(title, description, true)

	isDigital := false
	for _, flag := range []any{node["isDigital"], node["isVirtual"], node["isDownloadable"]} {
		if parsed := coerce.ToBool(flag); parsed != nil && *parsed {
			isDigital = true
			break
		}
	}

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
		Tags:        tags,
		Seo:         model.Seo{Title: metaTitle, Description: metaDescription},
		Identifiers: model.NewIdentifiers(map[string]string{
			"source_product_id": productID,
			"sku":               coerce.PickName(node["sku"]),
			"mpn":               coerce.PickName(node["mpn"]),
		}),
		Source: model.SourceRef{
			Platform: urldetect.PlatformSquarespace,
			ID:       productID,
			Slug:     inferredSlug,
			URL:      sourceURL,
		},
		RequiresShipping: !isDigital,
		TrackQuantity:    true,
		IsDigital:        isDigital,
		Raw:              node,
	}
}
