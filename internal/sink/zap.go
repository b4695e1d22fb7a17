package sink

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"riskScope/internal/model"
)

// ZapSink writes alerts and stats into the process log. It is the default
// sink and is always safe to use.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink builds a log sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) PublishAlert(_ context.Context, alert model.Alert) error {
	fields := []zap.Field{
		zap.String("type", alert.Type),
		zap.String("message", alert.Message),
	}
	if alert.Source != nil {
		fields = append(fields,
			zap.String("event", alert.Source.Name),
			zap.String("tx", alert.Source.TxHash.Hex()),
			zap.Uint64("block", alert.Source.BlockNumber),
		)
	}
	for k, v := range alert.Data {
		fields = append(fields, zap.String(k, v))
	}

	level := zapcore.InfoLevel
	switch alert.Severity {
	case model.SeverityWarning:
		level = zapcore.WarnLevel
	case model.SeverityCritical:
		level = zapcore.ErrorLevel
	}
	s.logger.Log(level, "alert", fields...)
	return nil
}

func (s *ZapSink) PublishStats(_ context.Context, listener string, snapshot interface{}) error {
	s.logger.Info("stats",
		zap.String("listener", listener),
		zap.Any("snapshot", snapshot),
	)
	return nil
}

func (s *ZapSink) Close() error { return nil }
