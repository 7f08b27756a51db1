package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/walkidni/shelfshift-sub001/internal/model"
)

// ==================== 仓储接口 ====================

// ImportRecordRepository 导入历史仓储接口
type ImportRecordRepository interface {
	Create(ctx context.Context, record *model.ImportRecord) error
	GetByID(ctx context.Context, id int64) (*model.ImportRecord, error)
	List(ctx context.Context, query ListImportQuery) ([]model.ImportRecord, int64, error)

	// 保留期清理
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListImportQuery 列表查询条件
type ListImportQuery struct {
	Platform string
	Limit    int
	Offset   int
}

// ==================== 仓储实现 ====================

type importRecordRepo struct {
	db *gorm.DB
}

// NewImportRecordRepository 创建导入历史仓储
func NewImportRecordRepository(db *gorm.DB) ImportRecordRepository {
	return &importRecordRepo{db: db}
}

func (r *importRecordRepo) Create(ctx context.Context, record *model.ImportRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *importRecordRepo) GetByID(ctx context.Context, id int64) (*model.ImportRecord, error) {
	var record model.ImportRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *importRecordRepo) List(ctx context.Context, query ListImportQuery) ([]model.ImportRecord, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.ImportRecord{})
	if query.Platform != "" {
		db = db.Where("platform = ?", query.Platform)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []model.ImportRecord
	err := db.Order("id DESC").Limit(limit).Offset(query.Offset).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DeleteOlderThan 物理删除早于 cutoff 的历史记录，返回删除条数
func (r *importRecordRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&model.ImportRecord{})
	return result.RowsAffected, result.Error
}
