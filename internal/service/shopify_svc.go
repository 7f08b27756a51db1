package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/coerce"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
	"github.com/walkidni/shelfshift-sub001/pkg/structdata"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

// ==================== Shopify 管道 ====================
//
// 首选店铺公开的 /products/{handle}.json 接口，404（店铺关闭了
// JSON 接口）时回退到商品页 HTML 里的 JSON-LD。

const shopifySKUPrefix = "SHOP"

type ShopifySvc struct {
	client fetch.Client
}

func NewShopifySvc(client fetch.Client) *ShopifySvc {
	return &ShopifySvc{client: client}
}

func (s *ShopifySvc) Platform() string {
	return urldetect.PlatformShopify
}

func (s *ShopifySvc) Sources(rawURL string) ([]Source, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("无法解析链接: %v", err)}
	}
	handle := urldetect.ShopifyHandleFromPath(parsed.Path)
	if handle == "" {
		return nil, &ValidationError{Msg: "不是 Shopify 商品路径"}
	}
	host := parsed.Host

	return []Source{
		{
			Name: "products_json",
			Fetch: func(ctx context.Context) (*model.Product, error) {
				return s.fetchFromJSON(ctx, host, handle, rawURL)
			},
		},
		{
			Name: "html_jsonld",
			Fetch: func(ctx context.Context) (*model.Product, error) {
				return s.fetchFromHTML(ctx, rawURL, handle)
			},
		},
	}, nil
}

func (s *ShopifySvc) fetchFromJSON(ctx context.Context, host, handle, sourceURL string) (*model.Product, error) {
	resp, err := s.client.Get(ctx, fmt.Sprintf("https://%s/products/%s.json", host, handle), nil)
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
	// 个别店铺直接返回裸 product 对象
	data, ok := payload["product"].(map[string]any)
	if !ok {
		data = payload
	}

	title := coerce.PickName(data["title"])
	description := coerce.PickName(data["body_html"])
	currency := "USD"

	var declared []model.OptionDef
	optionNames := []string{}
	if rawOptions, ok := data["options"].([]any); ok {
		for _, rawOption := range rawOptions {
			option, ok := rawOption.(map[string]any)
			if !ok {
				continue
			}
			name := coerce.PickName(option["name"])
			values := coerce.ExtractNames(option["values"], false)
			optionNames = append(optionNames, name)
			if name != "" && len(values) > 0 {
				declared = append(declared, model.OptionDef{Name: name, Values: values})
			}
		}
	}

	var productAmount any
	var raws []RawVariant
	var productWeight *model.Weight
	rawVariants, _ := data["variants"].([]any)
	for i, rawVariant := range rawVariants {
		variant, ok := rawVariant.(map[string]any)
		if !ok {
			continue
		}
		if i == 0 {
			productAmount = variant["price"]
			productWeight = gramsWeight(coerce.WeightToGrams(variant["weight"]))
		}

		var optionValues []model.OptionValue
		for j, key := range []string{"option1", "option2", "option3"} {
			value := coerce.PickName(variant[key])
			if value == "" || j >= len(optionNames) || optionNames[j] == "" {
				continue
			}
			optionValues = append(optionValues, model.OptionValue{Name: optionNames[j], Value: value})
		}

		variantID := stringID(variant["id"])
		// 上游 SKU 经常重复甚至为空，拼上变体 ID 保证唯一
		sku := coerce.PickName(variant["sku"]) + variantID

		quantity := 0
		if parsed := coerce.ToInt(variant["inventory_quantity"]); parsed != nil && *parsed >= 0 {
			quantity = *parsed
		}
		available := coerce.ToBool(variant["available"])
		if available == nil {
			t := true
			available = &t
		}

		raws = append(raws, RawVariant{
			ID:           variantID,
			SKU:          sku,
			Title:        coerce.PickName(variant["title"]),
			OptionValues: optionValues,
			Price:        makePrice(variant["price"], currency, variant["compare_at_price"]),
			Inventory: model.Inventory{
				TrackQuantity: true,
				Quantity:      &quantity,
				Available:     available,
			},
			Identifiers: model.NewIdentifiers(map[string]string{
				"source_variant_id": variantID,
				"sku":               sku,
			}),
			Weight: gramsWeight(coerce.WeightToGrams(variant["weight"])),
		})
	}

	var imageURLs []string
	if rawImages, ok := data["images"].([]any); ok && len(rawImages) > 0 {
		imageURLs = coerce.ExtractImageURLs(rawImages, false, "src")
	} else if image, ok := data["image"].(map[string]any); ok {
		imageURLs = coerce.ExtractImageURLs(image, false, "src")
	}

	var tags []string
	if rawTags := coerce.PickName(data["tags"]); rawTags != "" {
		tags = coerce.ExtractNames(rawTags, true)
	}

	category := coerce.PickName(data["product_type"])
	brand := coerce.PickName(data["vendor"])
	productID := stringID(data["id"])

	isDigital := false
	requiresShipping := true
	if strings.Contains(strings.ToLower(category), "digital") {
		isDigital = true
		requiresShipping = false
	} else {
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(tag), "digital") {
				isDigital = true
				requiresShipping = false
				break
			}
		}
	}

	productKey := coerce.SlugToken(productID)
	if productKey == "" {
		productKey = coerce.SlugToken(handle)
	}
	availableTrue := true
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  shopifySKUPrefix,
		ProductKey: productKey,
		Variants:   raws,
		Options:    declared,
		Default: &RawVariant{
			ID:    productID,
			Price: makePrice(productAmount, currency, nil),
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

	metaTitle, metaDescription := coerce.MetaFromDescription(title, description, true)
	var taxonomyPaths [][]string
	if category != "" {
		taxonomyPaths = [][]string{{category}}
	}

	return &model.Product{
		Title:       title,
		Description: description,
		Brand:       brand,
		Vendor:      brand,
		Price:       makePrice(productAmount, currency, nil),
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
			Platform: urldetect.PlatformShopify,
			ID:       productID,
			Slug:     handle,
			URL:      sourceURL,
		},
		Weight:           productWeight,
		RequiresShipping: requiresShipping,
		TrackQuantity:    true,
		IsDigital:        isDigital,
		Raw:              payload,
	}, nil
}

func (s *ShopifySvc) fetchFromHTML(ctx context.Context, rawURL, handle string) (*model.Product, error) {
	resp, err := s.client.Get(ctx, rawURL, htmlHeaders())
	if err != nil {
		return nil, err
	}
	if err := resp.EnsureSuccess(); err != nil {
		return nil, err
	}

	nodes := structdata.ProductNodesFromHTML(string(resp.Body))
	if len(nodes) == 0 {
		return nil, ErrNoUsableProduct("HTML 里没有商品 JSON-LD")
	}
	node := nodes[0]

	title := coerce.PickName(node["name"])
	description := coerce.PickName(node["description"])
	imageURLs := coerce.ExtractImageURLs(node["image"], true)
	brand := jsonldBrand(node["brand"])

	offers := offersToList(node["offers"])
	var offer structdata.Node
	if len(offers) > 0 {
		offer = structdata.AsNode(offers[0])
	}
	amount, currency := moneyFromValue(offerPrice(offer), offer["priceCurrency"])
	if currency == "" {
		currency = "USD"
	}
	available := offerAvailability(offer["availability"])

	raws := []RawVariant{{
		Title: title,
		Price: makePrice(amount, currency, nil),
		Inventory: model.Inventory{
			TrackQuantity: false,
			Available:     available,
		},
	}}
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  shopifySKUPrefix,
		ProductKey: coerce.SlugToken(handle),
		Variants:   raws,
		Default: &RawVariant{
			Title: title,
			Price: makePrice(amount, currency, nil),
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
	metaTitle, metaDescription := coerce.MetaFromDescription(title, description, false)

	return &model.Product{
		Title:       title,
		Description: description,
		Brand:       brand,
		Vendor:      brand,
		Price:       makePrice(amount, currency, nil),
		Media:       media,
		Options:     options,
		Variants:    variants,
		Taxonomy:    model.Taxonomy{Paths: taxonomyPaths},
		Tags:        []string{},
		Seo:         model.Seo{Title: metaTitle, Description: metaDescription},
		Identifiers: model.NewIdentifiers(nil),
		Source: model.SourceRef{
			Platform: urldetect.PlatformShopify,
			Slug:     handle,
			URL:      rawURL,
		},
		RequiresShipping: true,
		TrackQuantity:    false,
		Raw:              node,
	}, nil
}
