package misc

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	loggerOnce sync.Once
	logger     *zap.Logger
)

// L returns the process-wide logger, building it on first use. With
// main_setting.DEBUG set to true it is a development logger at debug level;
// otherwise a production logger. Logging is fire-and-forget throughout the
// project: nothing here can fail a request.
func L() *zap.Logger {
	loggerOnce.Do(func() {
		debug := strings.EqualFold(GetConfigValueDefault("main_setting", "DEBUG", "false"), "true")
		var err error
		if debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// Debug logs a printf-style message at debug level.
func Debug(format string, v ...any) {
	L().Sugar().Debugf(format, v...)
}
