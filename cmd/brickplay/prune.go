package main

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/logging"
)

const auditPruneInterval = 24 * time.Hour

type auditPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// pruneAuditLoop enforces the audit retention window at startup and then
// daily until ctx is done.
func pruneAuditLoop(ctx context.Context, repo auditPruner, retentionDays int, log *logging.Logger) {
	ticker := time.NewTicker(auditPruneInterval)
	defer ticker.Stop()

	for {
		pruneAudit(ctx, repo, retentionDays, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneAudit(ctx context.Context, repo auditPruner, retentionDays int, log *logging.Logger) {
	before := time.Now().UTC().AddDate(0, 0, -retentionDays)
	n, err := repo.Prune(ctx, before)
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		log.Error("pruning audit log", "error", err)
	case n > 0:
		log.Info("audit log pruned", "deleted", n, "before", before.Format(time.RFC3339))
	}
}
