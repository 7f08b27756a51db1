package model

import (
	"gorm.io/datatypes"
)

// ImportRecord 导入历史记录，每次成功导入落一条
type ImportRecord struct {
	BaseModel

	RequestID string `gorm:"size:64;index;comment:本次导入请求ID" json:"request_id"`

	// 来源
	Platform  string `gorm:"size:32;index;comment:来源平台" json:"platform"`
	SourceURL string `gorm:"size:1024;comment:商品链接" json:"source_url"`
	ProductID string `gorm:"size:128;index;comment:来源商品ID" json:"product_id"`
	Slug      string `gorm:"size:256;comment:来源 slug" json:"slug"`

	// 摘要
	Title        string `gorm:"size:512;comment:商品标题" json:"title"`
	Price        string `gorm:"size:64;comment:展示价格" json:"price"`
	Currency     string `gorm:"size:8;comment:币种" json:"currency"`
	VariantCount int    `gorm:"default:0;comment:变体数量" json:"variant_count"`

	// 规范化结果全文
	Payload datatypes.JSON `gorm:"comment:规范化商品载荷" json:"payload"`
}

func (ImportRecord) TableName() string {
	return "import_records"
}
