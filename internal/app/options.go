package app

import (
	"os"
	"time"

	"github.com/refmart/refmart/internal/config"
	"github.com/refmart/refmart/internal/logger"

	"go.uber.org/zap"
)

// 运行模式：api 仅启动 HTTP，worker 仅启动队列消费，all 两者皆启。
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

const defaultShutdownTimeout = 10 * time.Second

// Options 进程启动参数
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// withDefaults 填充缺省的日志器、停机超时与运行模式
func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.S()
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
	if o.Mode == "" {
		o.Mode = ModeAll
	}
	return o
}
