package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/walkidni/shelfshift-sub001/internal/repository"
)

// RetentionTask 定期清理过期的导入历史
type RetentionTask struct {
	ImportRepo repository.ImportRecordRepository
	Cron       *cron.Cron

	retentionDays int
	spec          string
}

func NewRetentionTask(importRepo repository.ImportRecordRepository, retentionDays int, spec string) *RetentionTask {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if spec == "" {
		spec = "0 3 * * *" // 每天凌晨三点
	}
	return &RetentionTask{
		ImportRepo:    importRepo,
		Cron:          cron.New(),
		retentionDays: retentionDays,
		spec:          spec,
	}
}

// Start 启动定时任务
func (t *RetentionTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		log.Println("[Task] 服务启动，正在执行首次导入历史清理...")
		t.pruneJob(ctx)
	}()

	_, err := t.Cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		t.pruneJob(ctx)
	})
	if err != nil {
		log.Fatalf("无法启动导入历史清理任务: %v", err)
	}

	t.Cron.Start()
	log.Printf("导入历史清理任务已启动 (保留 %d 天)", t.retentionDays)
}

// Stop 等待执行中的任务结束
func (t *RetentionTask) Stop() {
	ctx := t.Cron.Stop()
	<-ctx.Done()
}

func (t *RetentionTask) pruneJob(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -t.retentionDays)
	deleted, err := t.ImportRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("[Task] 导入历史清理失败: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[Task] 已清理 %d 条过期导入记录", deleted)
	}
}
