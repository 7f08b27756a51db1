package dto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ==================== 导入请求 ====================

// URLList 兼容单个字符串和字符串数组两种写法
type URLList []string

func (u *URLList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*u = URLList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("product_urls 必须是字符串或字符串数组")
	}
	*u = URLList(many)
	return nil
}

// ImportReq 导入请求体
type ImportReq struct {
	ProductURLs URLList `json:"product_urls"`
}

// CleanURLs 去掉空白项
func (r *ImportReq) CleanURLs() []string {
	var urls []string
	for _, raw := range r.ProductURLs {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// ImportErrorItem 批量导入里单条 URL 的失败信息
type ImportErrorItem struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

// ListImportsReq 导入历史查询参数
type ListImportsReq struct {
	Platform string `form:"platform"`
	Limit    int    `form:"limit,default=50"`
	Offset   int    `form:"offset,default=0"`
}
