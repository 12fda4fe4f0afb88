package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured log field keys shared by the scorer and the provider clients.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
)

// WithCommonFields attaches the provider/model pair to the logger so every
// scoring log line carries them. Blank values are skipped; a nil logger
// falls back to a no-op logger to avoid panics.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	fields := make([]zap.Field, 0, 2)
	if provider = strings.TrimSpace(provider); provider != "" {
		fields = append(fields, zap.String(FieldProvider, provider))
	}
	if model = strings.TrimSpace(model); model != "" {
		fields = append(fields, zap.String(FieldModel, model))
	}

	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
