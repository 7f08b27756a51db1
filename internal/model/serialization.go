package model

// ==================== 规范化视图序列化 ====================
//
// 下游（入库、比对、索引）拿到的是确定性的纯嵌套结构：
// 对同一份上游载荷，两次序列化结果必须逐字节一致。
// 金额输出为去尾零的十进制字符串而不是 float，避免精度抖动。

func moneyToMap(m *Money) any {
	if m == nil {
		return nil
	}
	var amount any
	if m.Amount != nil {
		amount = FormatDecimal(m.Amount)
	}
	var currency any
	if m.Currency != "" {
		currency = m.Currency
	}
	return map[string]any{"amount": amount, "currency": currency}
}

func priceToMap(p *Price) any {
	if p == nil {
		return nil
	}
	return map[string]any{
		"current":    moneyToMap(&p.Current),
		"compare_at": moneyToMap(p.CompareAt),
		"cost":       moneyToMap(p.Cost),
		"min_price":  moneyToMap(p.MinPrice),
		"max_price":  moneyToMap(p.MaxPrice),
	}
}

func weightToMap(w *Weight) any {
	if w == nil {
		return nil
	}
	var value any
	if w.Value != nil {
		value = FormatDecimal(w.Value)
	}
	return map[string]any{"value": value, "unit": w.Unit}
}

func mediaToMaps(items []Media) []any {
	out := make([]any, 0, len(items))
	for _, m := range items {
		skus := m.VariantSKUs
		if skus == nil {
			skus = []string{}
		}
		out = append(out, map[string]any{
			"url":          m.URL,
			"type":         m.Type,
			"alt":          nullableString(m.Alt),
			"position":     m.Position,
			"is_primary":   m.IsPrimary,
			"variant_skus": skus,
		})
	}
	return out
}

func optionDefsToMaps(defs []OptionDef) []any {
	out := make([]any, 0, len(defs))
	for _, d := range defs {
		values := d.Values
		if values == nil {
			values = []string{}
		}
		out = append(out, map[string]any{"name": d.Name, "values": values})
	}
	return out
}

func optionValuesToMaps(values []OptionValue) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]any{"name": v.Name, "value": v.Value})
	}
	return out
}

func inventoryToMap(inv Inventory) map[string]any {
	return map[string]any{
		"track_quantity":  inv.TrackQuantity,
		"quantity":        nullableInt(inv.Quantity),
		"available":       nullableBool(inv.Available),
		"allow_backorder": nullableBool(inv.AllowBackorder),
	}
}

func identifiersToMap(ids Identifiers) map[string]any {
	values := ids.Values
	if values == nil {
		values = map[string]string{}
	}
	return map[string]any{"values": values}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

// ToMap 变体的纯嵌套结构视图
func (v *Variant) ToMap() map[string]any {
	return map[string]any{
		"id":            nullableString(v.ID),
		"sku":           nullableString(v.SKU),
		"title":         nullableString(v.Title),
		"option_values": optionValuesToMaps(v.OptionValues),
		"price":         priceToMap(v.Price),
		"media":         mediaToMaps(v.Media),
		"inventory":     inventoryToMap(v.Inventory),
		"identifiers":   identifiersToMap(v.Identifiers),
		"weight":        weightToMap(v.Weight),
	}
}

// ToMap 商品的纯嵌套结构视图。includeRaw=false 时剔除上游原始载荷
func (p *Product) ToMap(includeRaw bool) map[string]any {
	variants := make([]any, 0, len(p.Variants))
	for i := range p.Variants {
		variants = append(variants, p.Variants[i].ToMap())
	}

	paths := p.Taxonomy.Paths
	if paths == nil {
		paths = [][]string{}
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	data := map[string]any{
		"title":       p.Title,
		"description": p.Description,
		"brand":       nullableString(p.Brand),
		"vendor":      nullableString(p.Vendor),
		"price":       priceToMap(p.Price),
		"media":       mediaToMaps(p.Media),
		"options":     optionDefsToMaps(p.Options),
		"variants":    variants,
		"taxonomy": map[string]any{
			"paths":   paths,
			"primary": p.Taxonomy.Primary,
		},
		"tags": tags,
		"seo": map[string]any{
			"title":       nullableString(p.Seo.Title),
			"description": nullableString(p.Seo.Description),
		},
		"identifiers": identifiersToMap(p.Identifiers),
		"source": map[string]any{
			"platform": p.Source.Platform,
			"id":       nullableString(p.Source.ID),
			"slug":     nullableString(p.Source.Slug),
			"url":      p.Source.URL,
		},
		"weight":            weightToMap(p.Weight),
		"requires_shipping": p.RequiresShipping,
		"track_quantity":    p.TrackQuantity,
		"is_digital":        p.IsDigital,
	}
	if includeRaw {
		data["raw"] = p.Raw
	}
	return data
}
