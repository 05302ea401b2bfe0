package runtime

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agile-athletes/lrps/config"
)

// NewLogger builds the process logger: development encoding in debug mode,
// JSON production encoding otherwise, at general.log_level.
func NewLogger(general config.GeneralConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(general.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", general.LogLevel, err)
	}
	zc := zap.NewProductionConfig()
	if general.Debug {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
