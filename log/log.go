package log

import (
	"github.com/chenbimo/befly-sub001/log/logger"
)

var defaultLogger logger.Logger

func init() {
	// 默认向 stderr 输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

func Default() logger.Logger {
	return defaultLogger
}

// Or 返回 l，l 为 nil 时返回默认日志器
func Or(l logger.Logger) logger.Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}
