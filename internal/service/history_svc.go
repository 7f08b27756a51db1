package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/internal/repository"
)

// ==================== 导入历史 ====================

// HistorySvc 把每次成功导入落库，供 /api/v1/imports 查询
type HistorySvc struct {
	repo repository.ImportRecordRepository
}

func NewHistorySvc(repo repository.ImportRecordRepository) *HistorySvc {
	return &HistorySvc{repo: repo}
}

// Record 记录一次成功导入，返回请求 ID。
// 同一批次的多条 URL 共用 requestID，传空则生成新的。
func (s *HistorySvc) Record(ctx context.Context, requestID string, product *model.Product) (string, error) {
	if product == nil {
		return requestID, fmt.Errorf("导入结果为空，无法落库")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	payload, err := json.Marshal(product.ToMap(false))
	if err != nil {
		return requestID, fmt.Errorf("序列化规范化载荷失败: %w", err)
	}

	price := ""
	currency := ""
	if product.Price != nil {
		price = FormatPrice(product.Price.Current.Amount, product.Price.Current.Currency)
		currency = product.Price.Current.Currency
	}

	record := &model.ImportRecord{
		RequestID:    requestID,
		Platform:     product.Source.Platform,
		SourceURL:    product.Source.URL,
		ProductID:    product.Source.ID,
		Slug:         product.Source.Slug,
		Title:        product.Title,
		Price:        price,
		Currency:     currency,
		VariantCount: len(product.Variants),
		Payload:      datatypes.JSON(payload),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return requestID, fmt.Errorf("导入历史落库失败: %w", err)
	}
	return requestID, nil
}

// RecordQuietly 落库失败只打日志，不影响导入主流程
func (s *HistorySvc) RecordQuietly(ctx context.Context, requestID string, product *model.Product) string {
	id, err := s.Record(ctx, requestID, product)
	if err != nil {
		log.Printf("[history] %v", err)
	}
	return id
}

// List 按平台/分页查询导入历史
func (s *HistorySvc) List(ctx context.Context, platform string, limit, offset int) ([]model.ImportRecord, int64, error) {
	return s.repo.List(ctx, repository.ListImportQuery{
		Platform: platform,
		Limit:    limit,
		Offset:   offset,
	})
}
