package app

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// 限制请求头读取时长，业务层超时交给反向代理控制。
const httpReadHeaderTimeout = 10 * time.Second

// HTTPService 将 API 服务器适配为可托管的 Service
type HTTPService struct {
	server *http.Server
}

// NewHTTPService 在指定地址上构建 API 服务
func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: httpReadHeaderTimeout,
		},
	}
}

// Name 服务标识
func (s *HTTPService) Name() string {
	return "http"
}

// Start 阻塞监听直到服务器被关闭，正常关闭不报错
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 优雅停机，等待存量请求在超时内完成
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
