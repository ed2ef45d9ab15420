package accounts

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter bridges a zerolog.Logger into the package Logger contract.
type ZerologAdapter struct {
	logger zerolog.Logger
}

var _ Logger = (*ZerologAdapter)(nil)

// NewZerologAdapter wraps the given zerolog logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Debug(format string, args ...any) {
	z.logger.Debug().Msgf(format, args...)
}

func (z *ZerologAdapter) Info(format string, args ...any) {
	z.logger.Info().Msgf(format, args...)
}

func (z *ZerologAdapter) Error(format string, args ...any) {
	z.logger.Error().Msgf(format, args...)
}
