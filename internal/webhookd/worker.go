package webhookd

import (
	"context"
	"time"

	"athens/internal/models"
)

// Retry ladder after the first attempt; delivery is abandoned after
// maxAttempts total tries.
var retrySchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

const (
	maxAttempts = 5
	workerBatch = 50
	pollEvery   = 30 * time.Second
)

// NextRetryDelay returns the wait before the given attempt number (1-based
// count of attempts already made), or false when attempts are exhausted.
func NextRetryDelay(attemptsMade int) (time.Duration, bool) {
	if attemptsMade >= maxAttempts {
		return 0, false
	}
	idx := attemptsMade - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retrySchedule) {
		idx = len(retrySchedule) - 1
	}
	return retrySchedule[idx], true
}

// RunWorker drains queued deliveries until the context is cancelled. Each
// poll picks due rows in creation order and attempts them once.
func (d *Dispatcher) RunWorker(ctx context.Context) {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	d.lg.Infow("webhook worker started", "poll_every", pollEvery)
	for {
		select {
		case <-ctx.Done():
			d.lg.Infow("webhook worker stopped")
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

func (d *Dispatcher) drainOnce(ctx context.Context) {
	now := time.Now().UTC()
	var due []models.WebhookDeliveryLog
	err := d.db.
		Where("status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?", models.DeliveryQueued, now).
		Order("created_at asc").
		Limit(workerBatch).
		Find(&due).Error
	if err != nil {
		d.lg.Errorw("webhook worker query failed", "error", err)
		return
	}
	for i := range due {
		if ctx.Err() != nil {
			return
		}
		var ep models.WebhookEndpoint
		if err := d.db.First(&ep, "id = ?", due[i].WebhookID).Error; err != nil {
			d.lg.Errorw("webhook endpoint vanished", "webhook_id", due[i].WebhookID)
			d.db.Model(&models.WebhookDeliveryLog{}).Where("id = ?", due[i].ID).
				Updates(map[string]any{"status": models.DeliveryFailed, "last_error": "endpoint missing", "next_attempt_at": nil})
			continue
		}
		if !ep.Enabled {
			d.db.Model(&models.WebhookDeliveryLog{}).Where("id = ?", due[i].ID).
				Updates(map[string]any{"status": models.DeliveryFailed, "last_error": "endpoint disabled", "next_attempt_at": nil})
			continue
		}
		d.attempt(ctx, &due[i], ep)
	}
}
