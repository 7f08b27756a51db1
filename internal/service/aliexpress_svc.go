package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/coerce"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
	"github.com/walkidni/shelfshift-sub001/pkg/structdata"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

// ==================== 速卖通管道 ====================
//
// 走 RapidAPI 的 aliexpress-datahub 接口。item_detail_6 数据最全
// 但偶尔返回空记录，此时回退 item_detail_2。

const (
	aliexpressSKUPrefix = "AE"
	aliexpressAPIHost   = "aliexpress-datahub.p.rapidapi.com"
)

type AliexpressSvc struct {
	client      fetch.Client
	rapidAPIKey string
}

func NewAliexpressSvc(client fetch.Client, rapidAPIKey string) *AliexpressSvc {
	return &AliexpressSvc{client: client, rapidAPIKey: rapidAPIKey}
}

func (s *AliexpressSvc) Platform() string {
	return urldetect.PlatformAliExpress
}

func (s *AliexpressSvc) Sources(rawURL string) ([]Source, error) {
	itemID := urldetect.AliExpressItemID(rawURL)
	if itemID == "" {
		return nil, &ValidationError{Msg: "链接里找不到速卖通商品 ID"}
	}

	return []Source{
		{
			Name: "item_detail_6",
			Fetch: func(ctx context.Context) (*model.Product, error) {
				return s.fetchDetail(ctx, "/item_detail_6", itemID, rawURL, true)
			},
		},
		{
			Name: "item_detail_2",
			Fetch: func(ctx context.Context) (*model.Product, error) {
				return s.fetchDetail(ctx, "/item_detail_2", itemID, rawURL, false)
			},
		},
	}, nil
}

func (s *AliexpressSvc) fetchDetail(ctx context.Context, endpoint, itemID, sourceURL string, requireTitle bool) (*model.Product, error) {
	if s.rapidAPIKey == "" {
		return nil, &ConfigError{Msg: "速卖通抓取缺少 RapidAPI key"}
	}

	resp, err := s.client.Get(ctx,
		fmt.Sprintf("https://%s%s?itemId=%s", aliexpressAPIHost, endpoint, itemID),
		map[string]string{
			"X-RapidAPI-Key":  s.rapidAPIKey,
			"X-RapidAPI-Host": aliexpressAPIHost,
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

	item := structdata.AsNode(structdata.AsNode(payload["result"])["item"])
	if requireTitle && coerce.PickName(item["title"]) == "" {
		return nil, ErrNoUsableProduct("接口返回的商品记录没有标题")
	}

	return s.parseResult(payload, itemID, sourceURL), nil
}

// aliexpressAmount 速卖通的价格字段形如 "$12.34" 或 "$10 - $20"，
// 区间取第一段
func aliexpressAmount(value any, splitRange bool) *decimal.Decimal {
	var text string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		text = v
	case float64, int, int64:
		text = stringID(v)
	default:
		return nil
	}
	text = strings.ReplaceAll(text, "$", "")
	if splitRange {
		text = strings.SplitN(text, " - ", 2)[0]
	}
	return coerce.ParseMoney(text)
}

func (s *AliexpressSvc) parseResult(payload map[string]any, itemID, sourceURL string) *model.Product {
	result := structdata.AsNode(payload["result"])
	item := structdata.AsNode(result["item"])

	title := coerce.PickName(item["title"])
	description := ""
	if desc := structdata.AsNode(item["description"]); desc != nil {
		description = coerce.PickName(desc["html"])
	}

	currency := coerce.NormalizeCurrency(structdata.AsNode(result["settings"])["currency"])
	if currency == "" {
		currency = "USD"
	}

	skuData := structdata.AsNode(item["sku"])
	skuDef := structdata.AsNode(skuData["def"])
	productAmount := aliexpressAmount(skuDef["promotionPrice"], true)
	if productAmount == nil {
		productAmount = aliexpressAmount(skuDef["price"], true)
	}

	imageURLs := coerce.ExtractImageURLs(item["images"], false)

	// --- 选项目录与 propMap 反查表 ---
	type propEntry struct {
		name   string
		values map[int]structdata.Node
	}
	propLookup := make(map[int]propEntry)
	var declared []model.OptionDef
	for _, rawProp := range structdata.AsList(skuData["props"]) {
		prop := structdata.AsNode(rawProp)
		name := coerce.PickName(prop["name"])
		values := structdata.AsList(prop["values"])
		if name == "" || len(values) == 0 {
			continue
		}

		var optionValues []string
		valuesByVid := make(map[int]structdata.Node)
		for _, rawValue := range values {
			value := structdata.AsNode(rawValue)
			if valueName := coerce.PickName(value["name"]); valueName != "" {
				optionValues = append(optionValues, valueName)
			}
			if vid := coerce.ToInt(value["vid"]); vid != nil {
				valuesByVid[*vid] = value
			}
		}
		if len(optionValues) > 0 {
			declared = append(declared, model.OptionDef{Name: name, Values: optionValues})
		}
		if pid := coerce.ToInt(prop["pid"]); pid != nil {
			propLookup[*pid] = propEntry{name: name, values: valuesByVid}
		}
	}

	skuImages := structdata.AsNode(skuData["skuImages"])

	var raws []RawVariant
	for _, rawSKU := range structdata.AsList(skuData["base"]) {
		sku := structdata.AsNode(rawSKU)
		if sku == nil {
			continue
		}

		var optionValues []model.OptionValue
		variantImage := ""
		propMap := coerce.PickName(sku["propMap"])
		for _, pair := range strings.Split(propMap, ";") {
			pidStr, vidStr, found := strings.Cut(pair, ":")
			if !found {
				continue
			}
			pid := coerce.ToInt(pidStr)
			vid := coerce.ToInt(vidStr)
			if pid == nil || vid == nil {
				continue
			}
			entry, ok := propLookup[*pid]
			if !ok {
				continue
			}
			value, ok := entry.values[*vid]
			if !ok {
				continue
			}
			if valueName := coerce.PickName(value["name"]); valueName != "" {
				optionValues = append(optionValues, model.OptionValue{Name: entry.name, Value: valueName})
			}
			if variantImage == "" {
				candidate := skuImages[fmt.Sprintf("%d:%d", *pid, *vid)]
				if candidate == nil {
					candidate = value["image"]
				}
				variantImage = coerce.NormalizeURL(candidate)
			}
		}

		variantAmount := aliexpressAmount(sku["promotionPrice"], false)
		if variantAmount == nil {
			variantAmount = aliexpressAmount(sku["price"], false)
		}
		if variantAmount == nil {
			variantAmount = productAmount
		}

		quantity := 0
		if parsed := coerce.ToInt(sku["quantity"]); parsed != nil {
			quantity = *parsed
		}
		available := quantity > 0

		skuID := stringID(sku["skuId"])
		canonicalSKU := ""
		if skuID != "" {
			canonicalSKU = fmt.Sprintf("%s:%s:%s", aliexpressSKUPrefix, itemID, skuID)
		}

		var media []model.Media
		if variantImage != "" {
			media = append(media, model.Media{URL: variantImage, Type: "image", Position: 1, IsPrimary: true})
		}

		raws = append(raws, RawVariant{
			ID:           skuID,
			SKU:          canonicalSKU,
			OptionValues: optionValues,
			Price:        makePrice(variantAmount, currency, nil),
			Media:        media,
			Inventory: model.Inventory{
				TrackQuantity: true,
				Quantity:      &quantity,
				Available:     &available,
			},
			Identifiers: model.NewIdentifiers(map[string]string{
				"source_variant_id": skuID,
				"sku":               canonicalSKU,
			}),
		})
	}

	// --- 商品属性：品牌 / 类目 / 重量 ---
	brand := ""
	category := "Electronics"
	var weight *model.Weight
	for _, rawProp := range structdata.AsList(structdata.AsNode(item["properties"])["list"]) {
		prop := structdata.AsNode(rawProp)
		name := strings.ToLower(coerce.PickName(prop["name"]))
		value := coerce.PickName(prop["value"])
		if name == "" || value == "" {
			continue
		}
		switch name {
		case "brand name", "brand":
			brand = value
		case "type":
			category = value
		case "weight":
			if weight == nil {
				weight = gramsWeight(coerce.WeightToGrams(value))
			}
		}
	}

	vendor := coerce.PickName(structdata.AsNode(result["seller"])["storeTitle"])

	if weight == nil {
		packageDetail := structdata.AsNode(structdata.AsNode(result["delivery"])["packageDetail"])
		weight = gramsWeight(coerce.WeightToGrams(packageDetail["weight"]))
	}

	itemAvailable := coerce.ToBool(item["available"])
	if itemAvailable == nil {
		t := true
		itemAvailable = &t
	}
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  aliexpressSKUPrefix,
		ProductKey: itemID,
		Variants:   raws,
		Options:    declared,
		Default: &RawVariant{
			ID:    itemID,
			Price: makePrice(productAmount, currency, nil),
			Inventory: model.Inventory{
				TrackQuantity: true,
				Available:     itemAvailable,
			},
		},
	})

	media := make([]model.Media, 0, len(imageURLs))
	for i, imageURL := range imageURLs {
		media = append(media, model.Media{URL: imageURL, Type: "image", Position: i + 1, IsPrimary: i == 0})
	}
	media = MergeVariantMedia(media, variants)

	metaDescSource := ""
	if len(description) > 160 {
		metaDescSource = description
	}
	metaTitle, metaDescription := coerce.MetaFromDescription(title, metaDescSource, true)

	return &model.Product{
		Title:       title,
		Description: description,
		Brand:       brand,
		Vendor:      vendor,
		Price:       makePrice(productAmount, currency, nil),
		Media:       media,
		Options:     options,
		Variants:    variants,
		Taxonomy:    model.Taxonomy{Paths: [][]string{{category}}},
		Tags:        []string{},
		Seo:         model.Seo{Title: metaTitle, Description: metaDescription},
		Identifiers: model.NewIdentifiers(map[string]string{
			"source_product_id": itemID,
		}),
		Source: model.SourceRef{
			Platform: urldetect.PlatformAliExpress,
			ID:       itemID,
			Slug:     "aliexpress-" + itemID,
			URL:      sourceURL,
		},
		Weight:           weight,
		RequiresShipping: true,
		TrackQuantity:    true,
		Raw:              payload,
	}
}
