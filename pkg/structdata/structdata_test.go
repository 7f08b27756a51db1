package structdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindTypedNodes(t *testing.T) {
	data := map[string]any{
		"@type": "WebPage",
		"@graph": []any{
			map[string]any{"@type": "Product", "name": "Mug"},
			map[string]any{"@type": []any{"Thing", "Product"}, "name": "Cup"},
			map[string]any{"@type": "Organization", "name": "Shop"},
		},
	}

	nodes := FindTypedNodes(data, "Product")
	require.Len(t, nodes, 2)
	assert.Equal(t, "Mug", nodes[0]["name"])
	assert.Equal(t, "Cup", nodes[1]["name"])
}

func TestProductNodesFromHTML(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type":"BreadcrumbList"}</script>
<script type="application/ld+json">not valid json</script>
<script type="application/ld+json">
{"@type":"Product","name":"Poster","offers":{"price":"12.00"}}
</script>
</head></html>`

	nodes := ProductNodesFromHTML(html)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Poster", nodes[0]["name"])
}

func TestProductNodesFromHTML_无商品块(t *testing.T) {
	assert.Empty(t, ProductNodesFromHTML("<html><body>hi</body></html>"))
}

func TestDictNodes_顺序确定(t *testing.T) {
	data := map[string]any{
		"b": map[string]any{"inner": "x"},
		"a": []any{map[string]any{"n": 1}},
	}

	first := DictNodes(data)
	second := DictNodes(data)
	require.Len(t, first, 3)

	// 根节点先出，然后按键序 a -> b
	assert.Equal(t, 1, first[1]["n"])
	_, hasInner := first[2]["inner"]
	assert.True(t, hasInner)

	for i := range first {
		assert.Equal(t, len(first[i]), len(second[i]))
	}
}
