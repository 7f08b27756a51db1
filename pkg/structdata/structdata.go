// Package structdata 在任意 JSON 树和 HTML 内嵌结构化数据块里
// 定位指定语义类型（如 "Product"）的节点。
package structdata

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Node 上游半结构化 JSON 对象。管道边界统一用它承载未知形状，
// 到 mapper 收窄成规范化模型为止
type Node = map[string]any

var jsonLDScriptRe = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

// AsNode 失败返回 nil
func AsNode(value any) Node {
	n, _ := value.(map[string]any)
	return n
}

// AsList 失败返回 nil
func AsList(value any) []any {
	l, _ := value.([]any)
	return l
}

// FindTypedNodes 递归扫描已解码的 JSON 值，收集 @type 等于
// 或包含 targetType 的字典节点；@graph 容器继续下钻
func FindTypedNodes(data any, targetType string) []Node {
	var out []Node
	switch v := data.(type) {
	case map[string]any:
		if nodeTypeMatches(v["@type"], targetType) {
			out = append(out, v)
		}
		if graph := AsList(v["@graph"]); graph != nil {
			for _, item := range graph {
				out = append(out, FindTypedNodes(item, targetType)...)
			}
		}
	case []any:
		for _, item := range v {
			out = append(out, FindTypedNodes(item, targetType)...)
		}
	}
	return out
}

func nodeTypeMatches(declared any, targetType string) bool {
	switch t := declared.(type) {
	case string:
		return t == targetType
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == targetType {
				return true
			}
		}
	}
	return false
}

// ProductNodesFromHTML 扫描 HTML 里的 application/ld+json 脚本块，
// 逐块解析 JSON（坏块直接跳过），拼接所有 Product 节点
func ProductNodesFromHTML(html string) []Node {
	var products []Node
	for _, match := range jsonLDScriptRe.FindAllStringSubmatch(html, -1) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &data); err != nil {
			continue
		}
		products = append(products, FindTypedNodes(data, "Product")...)
	}
	return products
}

// DictNodes 先序遍历整棵 JSON 树，返回所有字典节点。
// Squarespace 页面 JSON 的候选打分就是在这批节点上做的。
// map 按键排序后下钻，保证同一棵树两次遍历节点顺序一致
func DictNodes(value any) []Node {
	var out []Node
	switch v := value.(type) {
	case map[string]any:
		out = append(out, v)
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out = append(out, DictNodes(v[key])...)
		}
	case []any:
		for _, item := range v {
			out = append(out, DictNodes(item)...)
		}
	}
	return out
}
