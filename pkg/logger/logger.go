package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger and installs it as the zap global so
// packages without an injected logger can fall back to zap.L().
// The returned cleanup flushes buffered entries.
func New(appEnv string) (*zap.Logger, func(), error) {
	var (
		log *zap.Logger
		err error
	)
	if appEnv == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, err
	}

	undo := zap.ReplaceGlobals(log)
	cleanup := func() {
		undo()
		_ = log.Sync()
	}
	return log, cleanup, nil
}
