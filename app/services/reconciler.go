package services

import (
	"context"
	"time"

	"github.com/shashiranjanraj/dukaan/app/repositories"
	"github.com/shashiranjanraj/dukaan/pkg/logger"
	"github.com/shashiranjanraj/dukaan/pkg/storage"
)

// IntentStore is the slice of the intent repository the sweep uses.
type IntentStore interface {
	All(ctx context.Context) ([]repositories.DeleteIntent, error)
	Clear(ctx context.Context, keys ...string) error
}

// Reconciler retries outstanding storage delete intents. Handlers record an
// intent before deleting an object and clear it on success, so whatever is
// left in the collection is an object delete that never completed.
type Reconciler struct {
	intents IntentStore
	store   *storage.Manager
}

func NewReconciler(intents IntentStore, store *storage.Manager) *Reconciler {
	return &Reconciler{intents: intents, store: store}
}

// Sweep retries every outstanding delete and clears the intents that
// succeed. Stragglers stay behind for the next run and are logged.
func (s *Reconciler) Sweep(ctx context.Context) {
	intents, err := s.intents.All(ctx)
	if err != nil {
		logger.Error("reconciler: loading intents failed", "error", err)
		return
	}
	if len(intents) == 0 {
		return
	}

	done := []string{}
	seen := map[string]bool{}
	for _, intent := range intents {
		if seen[intent.Key] {
			continue
		}
		seen[intent.Key] = true

		disk, err := s.store.Use(intent.Disk)
		if err != nil {
			logger.Warn("reconciler: unknown disk, skipping",
				"disk", intent.Disk, "key", intent.Key)
			continue
		}
		if err := disk.Delete(ctx, intent.Key); err != nil {
			logger.Warn("reconciler: delete still failing",
				"key", intent.Key,
				"age", time.Since(intent.Created).Round(time.Second).String(),
				"error", err)
			continue
		}
		done = append(done, intent.Key)
	}

	if len(done) > 0 {
		if err := s.intents.Clear(ctx, done...); err != nil {
			logger.Error("reconciler: clearing intents failed", "error", err)
			return
		}
		logger.Info("reconciler: sweep complete",
			"cleared", len(done), "remaining", len(seen)-len(done))
	}
}
