package service

import (
	"github.com/rs/zerolog"
)

// LogNotifier renders toasts as log lines for headless runs.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(msg string) {
	n.logger.Info().Str("toast", "success").Msg(msg)
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Warn().Str("toast", "error").Msg(msg)
}

func (n *LogNotifier) SessionExpired() {
	n.logger.Warn().Str("toast", "session").Msg("Session expired, please log in again")
}
