package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
)

// ==================== 测试辅助 ====================

type stubResponse struct {
	resp *fetch.Response
	err  error
}

// stubFetch 按 URL 精确匹配返回预置响应，并记录调用顺序。
// 未预置的 URL 一律返回 404
type stubFetch struct {
	responses map[string]stubResponse
	calls     []string
}

func newStubFetch() *stubFetch {
	return &stubFetch{responses: make(map[string]stubResponse)}
}

func (s *stubFetch) on(url string, status int, body string) *stubFetch {
	s.responses[url] = stubResponse{resp: &fetch.Response{StatusCode: status, Body: []byte(body)}}
	return s
}

func (s *stubFetch) onErr(url string, err error) *stubFetch {
	s.responses[url] = stubResponse{err: err}
	return s
}

func (s *stubFetch) Get(_ context.Context, url string, _ map[string]string) (*fetch.Response, error) {
	s.calls = append(s.calls, url)
	entry, ok := s.responses[url]
	if !ok {
		return &fetch.Response{StatusCode: 404, Body: []byte("not found")}, nil
	}
	return entry.resp, entry.err
}

func dec(t string) *decimal.Decimal {
	d := decimal.RequireFromString(t)
	return &d
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
