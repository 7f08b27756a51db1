package service

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkidni/shelfshift-sub001/internal/model"
)

// ==================== 归并 ====================

func TestReconcile_丢弃无信号变体(t *testing.T) {
	variants, _ := Reconcile(ReconcileInput{
		SKUPrefix:  "WC",
		ProductKey: "mug",
		Variants: []RawVariant{
			{}, // 全空记录
			{Title: "Red"},
		},
	})

	require.Len(t, variants, 1)
	assert.Equal(t, "Red", variants[0].Title)
}

func TestReconcile_选项目录推导(t *testing.T) {
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  "WC",
		ProductKey: "shirt",
		Options: []model.OptionDef{
			{Name: "Color", Values: []string{"Red"}},
			{Name: "Material"}, // 无取值的轴要丢掉
		},
		Variants: []RawVariant{
			{ID: "1", OptionValues: []model.OptionValue{
				{Name: "Color", Value: "Blue"},
				{Name: "Size", Value: "S"},
			}},
			{ID: "2", OptionValues: []model.OptionValue{
				{Name: "Color", Value: "Red"},
			}},
		},
	})

	require.Len(t, variants, 2)
	require.Len(t, options, 2)
	// 声明目录打底，变体值按首次出现顺序并入
	assert.Equal(t, model.OptionDef{Name: "Color", Values: []string{"Red", "Blue"}}, options[0])
	assert.Equal(t, model.OptionDef{Name: "Size", Values: []string{"S"}}, options[1])
}

func TestReconcile_无选项多变体合成单轴(t *testing.T) {
	variants, options := Reconcile(ReconcileInput{
		SKUPrefix:  "SQ",
		ProductKey: "print",
		Variants: []RawVariant{
			{Title: "Small"},
			{SKU: "PRINT-L"},
			{ID: "v3"},
		},
	})

	require.Len(t, variants, 3)
	// 标签优先级：标题 > SKU > ID
	assert.Equal(t, []model.OptionValue{{Name: "Option", Value: "Small"}}, variants[0].OptionValues)
	assert.Equal(t, []model.OptionValue{{Name: "Option", Value: "PRINT-L"}}, variants[1].OptionValues)
	assert.Equal(t, []model.OptionValue{{Name: "Option", Value: "v3"}}, variants[2].OptionValues)
	require.Len(t, options, 1)
	assert.Equal(t, model.OptionDef{Name: "Option", Values: []string{"Small", "PRINT-L", "v3"}}, options[0])
}

func TestReconcile_合成SKU(t *testing.T) {
	variants, _ := Reconcile(ReconcileInput{
		SKUPrefix:  "SHOP",
		ProductKey: "mug",
		Variants: []RawVariant{
			{
				SKU: "KEEP-ME",
				OptionValues: []model.OptionValue{
					{Name: "Color", Value: "Red"},
				},
			},
			{ID: "V 9", Title: "Blue", OptionValues: []model.OptionValue{{Name: "Color", Value: "Blue"}}},
			{
				Title: "Red/S",
				OptionValues: []model.OptionValue{
					{Name: "Color", Value: "Red"},
					{Name: "Size", Value: "S"},
				},
			},
			{OptionValues: []model.OptionValue{{Name: "Color", Value: "Red"}}},
		},
	})

	require.Len(t, variants, 4)
	assert.Equal(t, "KEEP-ME", variants[0].SKU) // 上游给了就不合成
	assert.Equal(t, "SHOP:mug:v-9", variants[1].SKU)   // ID 优先
	assert.Equal(t, "SHOP:mug:red-s", variants[2].SKU) // 没 ID 取标题
	assert.Equal(t, "SHOP:mug:4", variants[3].SKU)     // 都没有落到序号
}

func TestReconcile_只有标题的变体用标题合成SKU(t *testing.T) {
	variants, _ := Reconcile(ReconcileInput{
		SKUPrefix:  "SQ",
		ProductKey: "poster",
		Variants:   []RawVariant{{Title: "Red/S"}},
	})

	require.Len(t, variants, 1)
	assert.Equal(t, "SQ:poster:red-s", variants[0].SKU)
}

func TestReconcile_默认变体兜底(t *testing.T) {
	t.Run("没有默认变体也没有信号时不合成", func(t *testing.T) {
		variants, options := Reconcile(ReconcileInput{
			SKUPrefix:  "WC",
			ProductKey: "item",
		})

		assert.Empty(t, variants)
		assert.Empty(t, options)
	})

	t.Run("带默认变体", func(t *testing.T) {
		available := true
		variants, _ := Reconcile(ReconcileInput{
			SKUPrefix:  "AMZ",
			ProductKey: "b0example01",
			Default: &RawVariant{
				ID:        "B0EXAMPLE1",
				Inventory: model.Inventory{TrackQuantity: true, Available: &available},
			},
		})

		require.Len(t, variants, 1)
		assert.Equal(t, "B0EXAMPLE1", variants[0].ID)
		// 变体段取默认变体 ID 的 slug
		assert.Equal(t, "AMZ:b0example01:b0example1", variants[0].SKU)
		assert.Equal(t, &available, variants[0].Inventory.Available)
	})
}

func TestReconcile_两次运行结果一致(t *testing.T) {
	input := ReconcileInput{
		SKUPrefix:  "AE",
		ProductKey: "100500",
		Options: []model.OptionDef{
			{Name: "Color", Values: []string{"Red", "Blue"}},
		},
		Variants: []RawVariant{
			{ID: "6001", OptionValues: []model.OptionValue{{Name: "Color", Value: "Red"}}},
			{ID: "6002", OptionValues: []model.OptionValue{{Name: "Color", Value: "Blue"}}},
		},
	}

	v1, o1 := Reconcile(input)
	v2, o2 := Reconcile(input)
	assert.True(t, reflect.DeepEqual(v1, v2))
	assert.True(t, reflect.DeepEqual(o1, o2))
}

// ==================== 变体图合并 ====================

func TestMergeVariantMedia(t *testing.T) {
	productMedia := []model.Media{
		{URL: "https://cdn.example.com/a.jpg", Type: "image"},
		{URL: "https://cdn.example.com/b.jpg", Type: "image"},
		{URL: "https://cdn.example.com/a.jpg", Type: "image"}, // 商品图里的重复
	}
	variants := []model.Variant{
		{SKU: "S1", Media: []model.Media{
			{URL: "https://cdn.example.com/b.jpg", Type: "image"},
			{URL: "https://cdn.example.com/c.jpg", Type: "image"},
		}},
		{SKU: "S2", Media: []model.Media{
			{URL: "https://cdn.example.com/c.jpg", Type: "image"},
		}},
	}

	merged := MergeVariantMedia(productMedia, variants)

	require.Len(t, merged, 3)
	assert.Equal(t, "https://cdn.example.com/a.jpg", merged[0].URL)
	assert.Equal(t, "https://cdn.example.com/b.jpg", merged[1].URL)
	assert.Equal(t, "https://cdn.example.com/c.jpg", merged[2].URL)

	// 已存在的图补记归属 SKU，变体独有的图带上自己的 SKU
	assert.Equal(t, []string{"S1"}, merged[1].VariantSKUs)
	assert.Equal(t, []string{"S1", "S2"}, merged[2].VariantSKUs)

	for i, m := range merged {
		assert.Equal(t, i+1, m.Position)
		assert.Equal(t, i == 0, m.IsPrimary)
	}
}

func TestMergeVariantMedia_空输入(t *testing.T) {
	merged := MergeVariantMedia(nil, nil)
	assert.Empty(t, merged)
}
