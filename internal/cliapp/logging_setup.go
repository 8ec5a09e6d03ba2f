package cliapp

import (
	"log/slog"

	"github.com/tunelo-project/tunelo/internal/logging"
)

// setupLogging wires stdout+file+ring-buffer logging for tunelo.
func setupLogging() (*slog.Logger, *logging.RingBuffer) {
	buffer := logging.NewRingBuffer(10000)
	logger, err := logging.Setup("logs/tunelo.log", buffer)
	if err != nil {
		logger = slog.Default()
	}
	return logger, buffer
}
