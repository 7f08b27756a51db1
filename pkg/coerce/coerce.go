// Package coerce 提供对上游松散类型字段的容错转换。
// 所有函数绝不 panic、绝不返回 error：解析不了就给 nil/空值，
// "未知"必须保持未知，绝不能退化成 false 或 0。
package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	moneySanitizeRe = regexp.MustCompile(`[^\d.\-]`)
	slugTokenRe     = regexp.MustCompile(`[^a-z0-9]+`)
	htmlTagRe       = regexp.MustCompile(`<[^>]+>`)
	intStringRe     = regexp.MustCompile(`^-?\d+$`)
	firstNumberRe   = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

// ==================== 金额 ====================

// ParseMoney 把数字或字符串解析为精确十进制金额。
// 字符串先去掉千分位逗号和所有非数字字符（货币符号、空格等）再解析。
// 解析不了返回 nil。
func ParseMoney(value any) *decimal.Decimal {
	switch v := value.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return &v
	case *decimal.Decimal:
		return v
	case int:
		d := decimal.NewFromInt(int64(v))
		return &d
	case int64:
		d := decimal.NewFromInt(v)
		return &d
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		d := decimal.NewFromFloat(v)
		return &d
	case string:
		cleaned := moneySanitizeRe.ReplaceAllString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), "")
		switch cleaned {
		case "", "-", ".", "-.":
			return nil
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return nil
		}
		return &d
	default:
		return nil
	}
}

// ParseMinorUnitAmount 解析以最小货币单位计数的金额（例如分）。
// minorUnit 指数裁剪到 0..6。整数形态按 10^minorUnit 缩小；
// 带小数点的字符串/浮点视为已经是主单位金额，走普通金额解析。
func ParseMinorUnitAmount(raw any, minorUnit int) *decimal.Decimal {
	if minorUnit < 0 {
		minorUnit = 0
	}
	if minorUnit > 6 {
		minorUnit = 6
	}

	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		stripped := strings.TrimSpace(v)
		if stripped == "" {
			return nil
		}
		if intStringRe.MatchString(stripped) {
			n, err := decimal.NewFromString(stripped)
			if err != nil {
				return nil
			}
			d := n.Shift(int32(-minorUnit))
			return &d
		}
		return ParseMoney(stripped)
	case int:
		d := decimal.NewFromInt(int64(v)).Shift(int32(-minorUnit))
		return &d
	case int64:
		d := decimal.NewFromInt(v).Shift(int32(-minorUnit))
		return &d
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		// JSON 数字统一解码成 float64：整数值按最小单位缩小，
		// 带小数的值认为上游已经给了主单位金额
		if v == math.Trunc(v) {
			d := decimal.NewFromFloat(v).Shift(int32(-minorUnit))
			return &d
		}
		d := decimal.NewFromFloat(v)
		return &d
	default:
		return ParseMoney(raw)
	}
}

// NormalizeCurrency 货币码归一：去空格转大写，空值返回空串
func NormalizeCurrency(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToUpper(strings.TrimSpace(v))
	default:
		return ""
	}
}

// ==================== 标量 ====================

// ToInt 容错整型转换，认不出来返回 nil（不是 0）
func ToInt(value any) *int {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n := int(v)
		return &n
	case string:
		stripped := strings.TrimSpace(v)
		if stripped == "" {
			return nil
		}
		n, err := strconv.Atoi(stripped)
		if err != nil {
			// "3.0" 这类带小数点的数字串也接受，截断取整
			f, ferr := strconv.ParseFloat(stripped, 64)
			if ferr != nil {
				return nil
			}
			n = int(f)
		}
		return &n
	case bool:
		return nil
	default:
		return nil
	}
}

// ToBool 容错布尔转换。认识 true/1/yes/y 与 false/0/no/n（不分大小写），
// 认不出来返回 nil——未知绝不能当 false
func ToBool(value any) *bool {
	switch v := value.(type) {
	case bool:
		return &v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y":
			t := true
			return &t
		case "false", "0", "no", "n":
			f := false
			return &f
		}
		return nil
	default:
		return nil
	}
}

// FirstBool 返回一串候选里第一个能解析出来的布尔值
func FirstBool(values ...any) *bool {
	for _, v := range values {
		if parsed := ToBool(v); parsed != nil {
			return parsed
		}
	}
	return nil
}

// PickName 只接受非空字符串，trim 后返回；其余返回空串
func PickName(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// ==================== URL / 文本 ====================

// NormalizeURL 协议相对地址（//host/path）补全为 https，空白返回空串
func NormalizeURL(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	stripped := strings.TrimSpace(s)
	if stripped == "" {
		return ""
	}
	if strings.HasPrefix(stripped, "//") {
		return "https:" + stripped
	}
	return stripped
}

// Dedupe 去重保序：丢掉空串与重复项
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// SlugToken 小写化后把连续非字母数字压成单个连字符，去掉首尾连字符。
// 用来拼确定性的合成 SKU
func SlugToken(value any) string {
	var text string
	switch v := value.(type) {
	case nil:
		text = ""
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		text = strconv.Itoa(v)
	case int64:
		text = strconv.FormatInt(v, 10)
	default:
		return ""
	}
	token := slugTokenRe.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(token, "-")
}

// StripMarkup 去掉 HTML 标签，连续空白压成单个空格
func StripMarkup(text string) string {
	cleaned := htmlTagRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Truncate 按字符数硬截断（不按词边界），再 trim
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return strings.TrimSpace(string(runes))
}

// DescriptionLimit SEO 描述的默认截断长度
const DescriptionLimit = 400

// MetaFromDescription 由标题和描述生成 SEO 标题/描述。
// stripMarkup=true 时先清掉 HTML 再截断
func MetaFromDescription(title, description string, stripMarkup bool) (string, string) {
	if description == "" {
		return title, ""
	}
	base := description
	if stripMarkup {
		base = StripMarkup(description)
	}
	return title, Truncate(base, DescriptionLimit)
}

// ==================== 重量 ====================

// WeightToGrams 从自由文本里取第一个十进制数并换算为克。
// "kg" 标记 x1000，"g" 标记原值；没有单位标记时 <=50 的值按千克猜
// （已知有损的启发式，保留原口径，不要"修复"）
func WeightToGrams(value any) *int {
	var text string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		text = strings.TrimSpace(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		text = strconv.Itoa(v)
	default:
		return nil
	}
	if text == "" {
		return nil
	}

	match := firstNumberRe.FindString(text)
	if match == "" {
		return nil
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}

	lowered := strings.ToLower(text)
	grams := 0
	switch {
	case strings.Contains(lowered, "kg"):
		grams = int(math.Round(val * 1000))
	case strings.Contains(lowered, " g") || strings.HasSuffix(lowered, "g"):
		grams = int(math.Round(val))
	case val > 0 && val <= 50:
		grams = int(math.Round(val * 1000))
	default:
		grams = int(math.Round(val))
	}
	return &grams
}

// ==================== 松散列表提取 ====================

// ExtractNames 从字符串/列表/字典列表里提取去重后的名称。
// splitCommas=true 时单个字符串按逗号切分（标签常见格式）
func ExtractNames(items any, splitCommas bool) []string {
	var names []string
	switch v := items.(type) {
	case string:
		tokens := []string{v}
		if splitCommas {
			tokens = strings.Split(v, ",")
		}
		for _, token := range tokens {
			if stripped := strings.TrimSpace(token); stripped != "" {
				names = append(names, stripped)
			}
		}
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if stripped := strings.TrimSpace(it); stripped != "" {
					names = append(names, stripped)
				}
			case map[string]any:
				candidate := PickName(it["value"])
				if candidate == "" {
					candidate = PickName(it["name"])
				}
				if candidate == "" {
					candidate = PickName(it["title"])
				}
				if candidate == "" {
					candidate = PickName(it["slug"])
				}
				if candidate != "" {
					names = append(names, candidate)
				}
			}
		}
	}
	return Dedupe(names)
}

// ExtractImageURLs 从字符串/列表/字典里按 keys 顺序提取规范化后的图片地址。
// recursive=true 时深入 image/images/items 嵌套继续找
func ExtractImageURLs(items any, recursive bool, keys ...string) []string {
	if len(keys) == 0 {
		keys = []string{"url", "src"}
	}
	var urls []string
	switch v := items.(type) {
	case string:
		if normalized := NormalizeURL(v); normalized != "" {
			urls = append(urls, normalized)
		}
	case []any:
		for _, item := range v {
			if recursive {
				urls = append(urls, ExtractImageURLs(item, true, keys...)...)
				continue
			}
			switch it := item.(type) {
			case string:
				if normalized := NormalizeURL(it); normalized != "" {
					urls = append(urls, normalized)
				}
			case map[string]any:
				for _, key := range keys {
					if normalized := NormalizeURL(it[key]); normalized != "" {
						urls = append(urls, normalized)
						break
					}
				}
			}
		}
	case map[string]any:
		for _, key := range keys {
			if normalized := NormalizeURL(v[key]); normalized != "" {
				urls = append(urls, normalized)
			}
		}
		if recursive {
			for _, nested := range []string{"image", "images", "items"} {
				if v[nested] != nil {
					urls = append(urls, ExtractImageURLs(v[nested], true, keys...)...)
				}
			}
		}
	}
	return Dedupe(urls)
}
