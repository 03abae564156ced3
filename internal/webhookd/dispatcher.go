// Package webhookd fans permit lifecycle events out to configured HTTP
// endpoints with HMAC-signed payloads, hour-bucket idempotency and a
// bounded retry worker.
package webhookd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"athens/internal/models"
)

// Outbound POSTs get a strict timeout; a slow consumer must never hold a
// request handler.
const deliveryTimeout = 5 * time.Second

// Dispatcher implements ptw.EventSink. Events enqueue delivery log rows;
// the Worker drains them. With Fallback set, delivery is attempted once
// synchronously and never retried in-line.
type Dispatcher struct {
	db       *gorm.DB
	lg       *zap.SugaredLogger
	client   *http.Client
	Fallback bool
}

func NewDispatcher(db *gorm.DB, lg *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		db: db,
		lg: lg,
		client: &http.Client{
			Timeout: deliveryTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// PermitPayload is the serializable permit snapshot sent to endpoints. No
// signature blobs or attachments.
type PermitPayload struct {
	Event        string     `json:"event"`
	PermitID     string     `json:"permit_id"`
	PermitNumber string     `json:"permit_number"`
	TenantID     string     `json:"tenant_id"`
	ProjectID    string     `json:"project_id"`
	Status       string     `json:"status"`
	RiskLevel    string     `json:"risk_level"`
	PlannedStart time.Time  `json:"planned_start"`
	PlannedEnd   time.Time  `json:"planned_end"`
	ActualStart  *time.Time `json:"actual_start,omitempty"`
	ActualEnd    *time.Time `json:"actual_end,omitempty"`
	CreatedBy    string     `json:"created_by"`
	Verifier     *string    `json:"verifier,omitempty"`
	Approver     *string    `json:"approver,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

func snapshotPayload(event string, p models.Permit, now time.Time) PermitPayload {
	return PermitPayload{
		Event:        event,
		PermitID:     p.ID,
		PermitNumber: p.PermitNumber,
		TenantID:     p.TenantID,
		ProjectID:    p.ProjectID,
		Status:       p.Status,
		RiskLevel:    p.RiskLevel,
		PlannedStart: p.PlannedStart,
		PlannedEnd:   p.PlannedEnd,
		ActualStart:  p.ActualStart,
		ActualEnd:    p.ActualEnd,
		CreatedBy:    p.CreatedByID,
		Verifier:     p.VerifierID,
		Approver:     p.ApproverID,
		Timestamp:    now,
	}
}

// PermitEvent enqueues one delivery per matching endpoint. A duplicate
// within the hour bucket is a no-op. Failures never propagate to callers.
func (d *Dispatcher) PermitEvent(event string, p models.Permit) {
	now := time.Now().UTC()
	var endpoints []models.WebhookEndpoint
	err := d.db.Where("tenant_id = ? AND enabled", p.TenantID).Find(&endpoints).Error
	if err != nil {
		d.lg.Errorw("webhook endpoint lookup failed", "error", err, "event", event)
		return
	}
	for _, ep := range endpoints {
		if !ep.Events.Contains(event) {
			continue
		}
		if ep.ProjectID != nil && *ep.ProjectID != p.ProjectID {
			continue
		}
		payload := snapshotPayload(event, p, now)
		body, err := CanonicalJSON(payload)
		if err != nil {
			d.lg.Errorw("webhook payload encode failed", "error", err, "endpoint", ep.ID)
			continue
		}
		log := models.WebhookDeliveryLog{
			TenantID:      p.TenantID,
			WebhookID:     ep.ID,
			Event:         event,
			PermitID:      &p.ID,
			DedupeKey:     DedupeKey(event, p.ID, now, ep.ID),
			Payload:       models.JSONB(body),
			Status:        models.DeliveryQueued,
			NextAttemptAt: &now,
		}
		res := d.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&log)
		if res.Error != nil {
			d.lg.Errorw("webhook enqueue failed", "error", res.Error, "endpoint", ep.ID)
			continue
		}
		if res.RowsAffected == 0 {
			// Duplicate within the hour bucket.
			continue
		}
		if d.Fallback {
			d.attempt(context.Background(), &log, ep)
		}
	}
}

// attempt performs one delivery and records the outcome. It never retries
// in-line; the worker owns retry pacing.
func (d *Dispatcher) attempt(ctx context.Context, log *models.WebhookDeliveryLog, ep models.WebhookEndpoint) {
	now := time.Now().UTC()
	code, err := d.post(ctx, ep.URL, ep.Secret, []byte(log.Payload))
	updates := map[string]any{
		"retry_count": log.RetryCount + 1,
		"sent_at":     now,
	}
	if code != 0 {
		updates["response_code"] = code
	}
	if err == nil {
		updates["status"] = models.DeliverySuccess
		updates["last_error"] = ""
		updates["next_attempt_at"] = nil
	} else {
		updates["last_error"] = err.Error()
		if delay, ok := NextRetryDelay(log.RetryCount + 1); ok {
			updates["status"] = models.DeliveryQueued
			updates["next_attempt_at"] = now.Add(delay)
		} else {
			updates["status"] = models.DeliveryFailed
			updates["next_attempt_at"] = nil
		}
		d.lg.Warnw("webhook delivery failed",
			"endpoint", ep.ID, "event", log.Event, "attempt", log.RetryCount+1, "error", err)
	}
	if err := d.db.Model(&models.WebhookDeliveryLog{}).Where("id = ?", log.ID).Updates(updates).Error; err != nil {
		d.lg.Errorw("webhook log update failed", "error", err, "log_id", log.ID)
	}
}

func (d *Dispatcher) post(ctx context.Context, url, secret string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(secret, body))
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &statusError{code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.code)
}
