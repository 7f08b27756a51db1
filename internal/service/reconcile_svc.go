package service

import (
	"fmt"
	"strconv"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/coerce"
)

// ==================== 变体/选项归并 ====================
//
// 各平台抽出来的变体记录质量参差：有的没有 SKU，有的没有选项，
// 有的整条都是占位数据。这里统一做六步处理：
//   1. 信号探测，丢掉完全没有可用字段的记录
//   2. 推导选项目录（声明目录优先，再按首次出现顺序并入变体值）
//   3. 多变体但无选项时合成单轴 "Option" 目录
//   4. 缺 SKU 的变体按 {前缀}:{商品键}:{变体键} 规则补齐
//   5. 一个变体都没有时用调用方给的默认变体兜底
//   6. 变体图并入商品图（保序去重，记录归属 SKU）

// RawVariant 平台管道抽取出来的原始变体记录
type RawVariant struct {
	ID           string
	SKU          string
	Title        string
	OptionValues []model.OptionValue
	Price        *model.Price
	Media        []model.Media
	Inventory    model.Inventory
	Identifiers  model.Identifiers
	Weight       *model.Weight
}

// ReconcileInput 归并输入
type ReconcileInput struct {
	SKUPrefix  string            // 平台 SKU 前缀，如 SHOP
	ProductKey string            // 商品级键，进合成 SKU
	Variants   []RawVariant      // 原始变体
	Options    []model.OptionDef // 平台声明的选项目录，可为空
	Default    *RawVariant       // 一条可用变体都没有时兜底的默认变体
}

// hasSignal 变体记录里是否有任何可用信号
func hasSignal(rv RawVariant) bool {
	if rv.ID != "" || rv.SKU != "" || rv.Title != "" {
		return true
	}
	if len(rv.OptionValues) > 0 {
		return true
	}
	if rv.Price != nil && rv.Price.Current.Amount != nil {
		return true
	}
	if len(rv.Identifiers.Values) > 0 {
		return true
	}
	return false
}

// variantKey 合成 SKU 的变体段：优先变体 ID，其次标题，
// 最后落到序号
func variantKey(rv RawVariant, index int) string {
	if token := coerce.SlugToken(rv.ID); token != "" {
		return token
	}
	if token := coerce.SlugToken(rv.Title); token != "" {
		return token
	}
	return strconv.Itoa(index + 1)
}

// deriveOptions 推导选项目录：声明目录打底，再按首次出现顺序
// 并入所有变体的选项值。保证每个变体值都能在目录里找到
func deriveOptions(declared []model.OptionDef, variants []RawVariant) []model.OptionDef {
	order := make([]string, 0, len(declared))
	values := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	add := func(name, value string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; !ok {
			order = append(order, name)
			seen[name] = make(map[string]bool)
		}
		if value == "" || seen[name][value] {
			return
		}
		seen[name][value] = true
		values[name] = append(values[name], value)
	}

	for _, def := range declared {
		add(def.Name, "")
		for _, v := range def.Values {
			add(def.Name, v)
		}
	}
	for _, rv := range variants {
		for _, ov := range rv.OptionValues {
			add(ov.Name, ov.Value)
		}
	}

	defs := make([]model.OptionDef, 0, len(order))
	for _, name := range order {
		if len(values[name]) == 0 {
			continue // 没有任何取值的轴不保留
		}
		defs = append(defs, model.OptionDef{Name: name, Values: values[name]})
	}
	return defs
}

// Reconcile 执行归并，返回规范化变体和选项目录。给了默认变体
// 兜底时结果至少有一条变体；没给且上游一条可用变体都没有时，
// 变体列表为空
func Reconcile(input ReconcileInput) ([]model.Variant, []model.OptionDef) {
	kept := make([]RawVariant, 0, len(input.Variants))
	for _, rv := range input.Variants {
		if hasSignal(rv) {
			kept = append(kept, rv)
		}
	}

	// 多变体但全都没有选项值：用变体标签合成单轴目录，
	// 否则这些变体在下游没法区分
	if len(kept) >= 2 {
		anyOptions := false
		for _, rv := range kept {
			if len(rv.OptionValues) > 0 {
				anyOptions = true
				break
			}
		}
		if !anyOptions {
			for i := range kept {
				label := bestRawLabel(kept[i], i)
				kept[i].OptionValues = []model.OptionValue{{Name: "Option", Value: label}}
			}
		}
	}

	// 没有默认变体（即商品级也没有价格/可购信号）时不做合成
	if len(kept) == 0 && input.Default != nil {
		kept = append(kept, *input.Default)
	}

	variants := make([]model.Variant, 0, len(kept))
	for i, rv := range kept {
		sku := rv.SKU
		if sku == "" {
			sku = fmt.Sprintf("%s:%s:%s", input.SKUPrefix, input.ProductKey, variantKey(rv, i))
		}
		ids := rv.Identifiers
		if ids.Values == nil {
			ids = model.NewIdentifiers(nil)
		}
		variants = append(variants, model.Variant{
			ID:           rv.ID,
			SKU:          sku,
			Title:        rv.Title,
			OptionValues: rv.OptionValues,
			Price:        rv.Price,
			Media:        rv.Media,
			Inventory:    rv.Inventory,
			Identifiers:  ids,
			Weight:       rv.Weight,
		})
	}

	return variants, deriveOptions(input.Options, kept)
}

// bestRawLabel 合成选项值用的变体标签：标题 > SKU > ID > 序号
func bestRawLabel(rv RawVariant, index int) string {
	if rv.Title != "" {
		return rv.Title
	}
	if rv.SKU != "" {
		return rv.SKU
	}
	if rv.ID != "" {
		return rv.ID
	}
	return fmt.Sprintf("Variant %d", index+1)
}

// MergeVariantMedia 把变体图并入商品图列表：商品图在前，变体独有
// 的图按变体顺序追加，按 URL 去重；已存在的图补记归属 SKU
func MergeVariantMedia(productMedia []model.Media, variants []model.Variant) []model.Media {
	merged := make([]model.Media, 0, len(productMedia))
	index := make(map[string]int)
	for _, m := range productMedia {
		if m.URL == "" {
			continue
		}
		if _, ok := index[m.URL]; ok {
			continue
		}
		index[m.URL] = len(merged)
		merged = append(merged, m)
	}

	for _, v := range variants {
		for _, m := range v.Media {
			if m.URL == "" {
				continue
			}
			if pos, ok := index[m.URL]; ok {
				if v.SKU != "" && !containsString(merged[pos].VariantSKUs, v.SKU) {
					merged[pos].VariantSKUs = append(merged[pos].VariantSKUs, v.SKU)
				}
				continue
			}
			entry := m
			entry.VariantSKUs = nil
			if v.SKU != "" {
				entry.VariantSKUs = []string{v.SKU}
			}
			index[entry.URL] = len(merged)
			merged = append(merged, entry)
		}
	}

	for i := range merged {
		merged[i].Position = i + 1
	}
	if len(merged) > 0 {
		merged[0].IsPrimary = true
		for i := 1; i < len(merged); i++ {
			merged[i].IsPrimary = false
		}
	}
	return merged
}

func containsString(items []string, target string) bool {
	for _, s := range items {
		if s == target {
			return true
		}
	}
	return false
}
