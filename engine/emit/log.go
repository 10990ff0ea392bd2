package emit

import "go.uber.org/zap"

// LogEmitter writes events through a zap.Logger, the same structured-logging
// path the rest of the service uses (internal/logging). It never returns an
// error and never blocks on I/O beyond zap's own buffering.
type LogEmitter struct {
	log *zap.Logger
}

// NewLogEmitter wraps log. A nil log falls back to zap.NewNop so callers
// don't have to special-case tests that don't care about output.
func NewLogEmitter(log *zap.Logger) *LogEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogEmitter{log: log}
}

func (l *LogEmitter) Emit(e Event) {
	fields := make([]zap.Field, 0, 6+len(e.Meta))
	fields = append(fields,
		zap.String("run_id", e.RunID),
		zap.Time("ts", e.Timestamp),
	)
	if e.StepID != "" {
		fields = append(fields, zap.String("step_id", e.StepID))
	}
	if e.BlockID != "" {
		fields = append(fields, zap.String("block_id", e.BlockID))
	}
	for k, v := range e.Meta {
		fields = append(fields, zap.Any(k, v))
	}

	if errVal, ok := e.Meta["error"]; ok {
		fields = append(fields, zap.Any("error_detail", errVal))
		l.log.Error(e.Msg, fields...)
		return
	}
	l.log.Info(e.Msg, fields...)
}
