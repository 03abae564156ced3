// Package attendance ingests offline-captured attendance events: bulk,
// idempotent per (tenant, client_event_id), with per-module validation.
package attendance

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"athens/internal/models"
	"athens/internal/tenant"
)

// Rejection reasons.
const (
	ReasonCheckInOnly      = "check_in_only"
	ReasonInvalidEventType = "invalid_event_type"
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonUnknownModule    = "unknown_module"
	ReasonProjectNotFound  = "project_not_found"
	ReasonTrainingNotFound = "training_not_found"
	ReasonTBTNotFound      = "tbt_not_found"
	ReasonInvalidPIN       = "invalid_pin"
	ReasonInvalidQR        = "invalid_qr"
	ReasonMissingEventID   = "missing_client_event_id"
)

// EventInput is one wire event from a device batch.
type EventInput struct {
	ClientEventID string          `json:"client_event_id"`
	Module        string          `json:"module"`
	ModuleRefID   string          `json:"module_ref_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	DeviceID      string          `json:"device_id"`
	Offline       bool            `json:"offline"`
	Method        string          `json:"method"`
	WorkerID      *string         `json:"worker_id,omitempty"`
	Location      json.RawMessage `json:"location,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type Rejection struct {
	ClientEventID string `json:"client_event_id"`
	Reason        string `json:"reason"`
}

type Result struct {
	Created    []string    `json:"created"`
	Duplicates []string    `json:"duplicates"`
	Rejected   []Rejection `json:"rejected"`
}

// eventPayload is the validated subset of EventInput.Payload.
type eventPayload struct {
	PIN     string `json:"pin"`
	QRToken string `json:"qr_token"`
}

// ModuleContext is what Validate needs besides the event itself. Lookups
// happen once per event in the ingester; the rules stay pure.
type ModuleContext struct {
	ProjectExists bool
	Training      *models.TrainingSession
	TBTExists     bool
}

// Validate applies the per-module rules and returns a rejection reason, or
// "" when the event is acceptable.
func Validate(ev EventInput, mc ModuleContext, now time.Time) string {
	if ev.ClientEventID == "" {
		return ReasonMissingEventID
	}
	if ev.OccurredAt.IsZero() {
		return ReasonInvalidTimestamp
	}
	switch ev.Module {
	case models.ModuleRegular:
		if ev.EventType != models.EventCheckIn && ev.EventType != models.EventCheckOut {
			return ReasonInvalidEventType
		}
		if !mc.ProjectExists {
			return ReasonProjectNotFound
		}
	case models.ModuleTBT:
		if ev.EventType != models.EventCheckIn {
			return ReasonCheckInOnly
		}
		if !mc.TBTExists {
			return ReasonTBTNotFound
		}
	case models.ModuleTraining:
		if ev.EventType != models.EventCheckIn {
			return ReasonCheckInOnly
		}
		if mc.Training == nil {
			return ReasonTrainingNotFound
		}
		var pl eventPayload
		_ = json.Unmarshal(ev.Payload, &pl)
		switch ev.Method {
		case models.MethodPIN:
			if pl.PIN == "" || pl.PIN != mc.Training.JoinCode {
				return ReasonInvalidPIN
			}
		case models.MethodQR:
			if pl.QRToken == "" || pl.QRToken != mc.Training.QRToken {
				return ReasonInvalidQR
			}
			if mc.Training.QRExpiresAt == nil || !mc.Training.QRExpiresAt.After(now) {
				return ReasonInvalidQR
			}
		}
	default:
		return ReasonUnknownModule
	}
	return ""
}

type Ingester struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewIngester(db *gorm.DB, lg *zap.SugaredLogger) *Ingester {
	return &Ingester{db: db, lg: lg}
}

// Ingest processes an ordered batch inside one transaction. Rejections and
// duplicates never abort the other events.
func (ing *Ingester) Ingest(scope tenant.Scope, events []EventInput) (Result, error) {
	res := Result{Created: []string{}, Duplicates: []string{}, Rejected: []Rejection{}}
	now := time.Now().UTC()
	err := ing.db.Transaction(func(tx *gorm.DB) error {
		for _, ev := range events {
			mc, err := ing.moduleContext(tx, scope, ev)
			if err != nil {
				return err
			}
			if reason := Validate(ev, mc, now); reason != "" {
				res.Rejected = append(res.Rejected, Rejection{ClientEventID: ev.ClientEventID, Reason: reason})
				continue
			}
			row := models.AttendanceEvent{
				TenantID:      scope.TenantID,
				ClientEventID: ev.ClientEventID,
				WorkerID:      ev.WorkerID,
				Module:        ev.Module,
				ModuleRefID:   ev.ModuleRefID,
				EventType:     ev.EventType,
				OccurredAt:    ev.OccurredAt.UTC(),
				DeviceID:      ev.DeviceID,
				Offline:       ev.Offline,
				Method:        ev.Method,
				Location:      models.JSONB(ev.Location),
				Payload:       models.JSONB(ev.Payload),
			}
			if row.Method == "" {
				row.Method = models.MethodSelfConfirm
			}
			if ev.Module == models.ModuleRegular {
				ref := ev.ModuleRefID
				row.ProjectID = &ref
			}
			created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if created.Error != nil {
				return created.Error
			}
			if created.RowsAffected == 0 {
				res.Duplicates = append(res.Duplicates, ev.ClientEventID)
				continue
			}
			res.Created = append(res.Created, ev.ClientEventID)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (ing *Ingester) moduleContext(tx *gorm.DB, scope tenant.Scope, ev EventInput) (ModuleContext, error) {
	var mc ModuleContext
	switch ev.Module {
	case models.ModuleRegular:
		var count int64
		err := scope.Scoped(tx.Model(&models.Project{})).Where("id::text = ?", ev.ModuleRefID).Count(&count).Error
		if err != nil {
			return mc, err
		}
		mc.ProjectExists = count > 0
	case models.ModuleTraining:
		var ts models.TrainingSession
		err := scope.Scoped(tx).First(&ts, "id::text = ?", ev.ModuleRefID).Error
		if err == nil {
			mc.Training = &ts
		} else if err != gorm.ErrRecordNotFound {
			return mc, err
		}
	case models.ModuleTBT:
		var count int64
		err := scope.Scoped(tx.Model(&models.ToolboxTalk{})).Where("id::text = ?", ev.ModuleRefID).Count(&count).Error
		if err != nil {
			return mc, err
		}
		mc.TBTExists = count > 0
	}
	return mc, nil
}
