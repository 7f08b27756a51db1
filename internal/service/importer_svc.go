package service

import (
	"context"
	"fmt"
	"log"

	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/pkg/urldetect"
)

// ==================== 导入编排 ====================
//
// 每个平台把自己的取数方式按优先级列成若干数据源，编排器严格
// 顺序尝试：成功即停，可恢复错误继续下一个源，配置错误立即终止。
// 全部失败时由 terminalError 挑一个最值得上报的错误。

// Source 一个平台数据源（API 端点 / HTML 兜底 等）
type Source struct {
	Name  string
	Fetch func(ctx context.Context) (*model.Product, error)
}

// PlatformSvc 平台管道统一接口
type PlatformSvc interface {
	Platform() string
	// Sources 按优先级排列，URL 不是该平台商品页时返回错误
	Sources(rawURL string) ([]Source, error)
}

// ImporterSvc 平台注册表 + 回退编排
type ImporterSvc struct {
	platforms map[string]PlatformSvc
}

func NewImporterSvc(platforms ...PlatformSvc) *ImporterSvc {
	svc := &ImporterSvc{platforms: make(map[string]PlatformSvc, len(platforms))}
	for _, p := range platforms {
		svc.platforms[p.Platform()] = p
	}
	return svc
}

// Register 注册/覆盖一个平台管道
func (s *ImporterSvc) Register(p PlatformSvc) {
	s.platforms[p.Platform()] = p
}

// Detect 暴露 URL 分类结果
func (s *ImporterSvc) Detect(rawURL string) urldetect.Info {
	return urldetect.Detect(rawURL)
}

// ImportProduct 识别平台并抓取规范化商品
func (s *ImporterSvc) ImportProduct(ctx context.Context, rawURL string) (*model.Product, error) {
	info := urldetect.Detect(rawURL)
	if info.Platform == "" {
		return nil, &ValidationError{Msg: fmt.Sprintf("无法识别的商品链接: %s", rawURL)}
	}
	platform, ok := s.platforms[info.Platform]
	if !ok {
		return nil, &ValidationError{Msg: fmt.Sprintf("不支持的平台: %s", info.Platform)}
	}
	if !info.IsProduct {
		return nil, &ValidationError{Msg: fmt.Sprintf("%s 链接不是商品页: %s", info.Platform, rawURL)}
	}

	sources, err := platform.Sources(rawURL)
	if err != nil {
		return nil, err
	}

	var attempts []SourceAttempt
	for _, src := range sources {
		product, err := src.Fetch(ctx)
		if err == nil {
			product.Finalize(rawURL)
			return product, nil
		}
		log.Printf("[importer] %s 源 %s 失败: %v", info.Platform, src.Name, err)
		attempts = append(attempts, SourceAttempt{Source: src.Name, Err: err})
		if !isRecoverable(err) {
			return nil, err
		}
	}
	return nil, terminalError(info.Platform, attempts)
}

// ImportOutcome 批量导入中单条 URL 的结果
type ImportOutcome struct {
	URL     string
	Product *model.Product
	Err     error
}

// ImportProducts 逐条导入，单条失败不影响其余
func (s *ImporterSvc) ImportProducts(ctx context.Context, urls []string) []ImportOutcome {
	outcomes := make([]ImportOutcome, 0, len(urls))
	for _, u := range urls {
		product, err := s.ImportProduct(ctx, u)
		outcomes = append(outcomes, ImportOutcome{URL: u, Product: product, Err: err})
	}
	return outcomes
}
