package usecase

import (
	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"go.uber.org/zap"
)

// LogProgress пишет события прогресса в лог: итоги на Info, промежуточные на Debug
func LogProgress(logger *zap.Logger) ports.ProgressSubscriber {
	return ports.ProgressFunc(func(event entities.ProgressEvent) {
		fields := []zap.Field{
			zap.String("job_id", event.JobID),
			zap.String("collection", event.Collection),
			zap.String("phase", string(event.Phase)),
			zap.Int("found", event.Found),
			zap.Int("deleted", event.Deleted),
		}

		switch event.Phase {
		case entities.PhaseCompleted:
			logger.Info("Collection cleanup finished", fields...)
		case entities.PhaseDryRun:
			logger.Info("Collection dry run finished", fields...)
		case entities.PhaseFailed:
			logger.Warn("Collection cleanup stopped", fields...)
		default:
			logger.Debug("Cleanup progress", fields...)
		}
	})
}
