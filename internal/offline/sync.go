// Package offline applies device-originated change batches with a version
// guard: last writer wins only when it saw the current server version.
package offline

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/attendance"
	"athens/internal/identity"
	"athens/internal/models"
	"athens/internal/ptw"
	"athens/internal/tenant"
)

// Rejection reasons.
const (
	ReasonPermissionDenied = "permission_denied"
	ReasonVersionConflict  = "version_conflict"
	ReasonUnknownEntity    = "unknown_entity"
	ReasonUnknownOp        = "unknown_op"
	ReasonNotFound         = "not_found"
	ReasonDeleteForbidden  = "delete_not_allowed"
	ReasonBadPayload       = "bad_payload"
)

type Change struct {
	Entity        string          `json:"entity"`
	Op            string          `json:"op"`
	OfflineID     string          `json:"offline_id"`
	ServerID      string          `json:"server_id,omitempty"`
	ClientVersion *int            `json:"client_version,omitempty"`
	Data          json.RawMessage `json:"data"`
}

type Batch struct {
	DeviceID   string    `json:"device_id"`
	ClientTime time.Time `json:"client_time"`
	Changes    []Change  `json:"changes"`
}

type Applied struct {
	OfflineID string `json:"offline_id"`
	ServerID  string `json:"server_id"`
	Version   int    `json:"version"`
}

type Rejection struct {
	OfflineID     string `json:"offline_id"`
	Reason        string `json:"reason"`
	ServerVersion *int   `json:"server_version,omitempty"`
}

type Result struct {
	Applied    []Applied   `json:"applied"`
	Rejected   []Rejection `json:"rejected"`
	ServerTime time.Time   `json:"server_time"`
}

// CheckVersion is the guard every offline update passes: nil means the
// client never saw the row and conflicts by definition.
func CheckVersion(serverVersion int, clientVersion *int) bool {
	return clientVersion != nil && *clientVersion == serverVersion
}

type Syncer struct {
	db  *gorm.DB
	lg  *zap.SugaredLogger
	ing *attendance.Ingester
}

func NewSyncer(db *gorm.DB, lg *zap.SugaredLogger) *Syncer {
	return &Syncer{db: db, lg: lg, ing: attendance.NewIngester(db, lg)}
}

// Apply processes a batch. Each change runs in its own transaction so one
// rejection never rolls back accepted changes.
func (s *Syncer) Apply(scope tenant.Scope, actor identity.Facet, batch Batch) Result {
	res := Result{Applied: []Applied{}, Rejected: []Rejection{}}
	for _, ch := range batch.Changes {
		applied, rej := s.applyOne(scope, actor, batch.DeviceID, ch)
		if rej != nil {
			res.Rejected = append(res.Rejected, *rej)
		} else {
			res.Applied = append(res.Applied, *applied)
		}
	}
	res.ServerTime = time.Now().UTC()
	return res
}

func (s *Syncer) applyOne(scope tenant.Scope, actor identity.Facet, deviceID string, ch Change) (*Applied, *Rejection) {
	reject := func(reason string) (*Applied, *Rejection) {
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: reason}
	}
	switch ch.Entity {
	case "permit":
		switch ch.Op {
		case "update":
			return s.applyPermitUpdate(scope, actor, ch)
		case "delete":
			return reject(ReasonDeleteForbidden)
		default:
			return reject(ReasonUnknownOp)
		}
	case "gas_reading":
		if ch.Op != "create" {
			return reject(ReasonUnknownOp)
		}
		return s.applyGasCreate(scope, actor, ch)
	case "attendance_event":
		if ch.Op != "create" {
			return reject(ReasonUnknownOp)
		}
		return s.applyAttendanceCreate(scope, actor, deviceID, ch)
	}
	return reject(ReasonUnknownEntity)
}

// permitPatch lists fields a device may change offline.
type permitPatch struct {
	Description     *string         `json:"description"`
	WorkLocation    *string         `json:"work_location"`
	SafetyChecklist json.RawMessage `json:"safety_checklist"`
	PPERequirements []string        `json:"ppe_requirements"`
	TenantID        string          `json:"tenant_id"`
}

func (s *Syncer) applyPermitUpdate(scope tenant.Scope, actor identity.Facet, ch Change) (*Applied, *Rejection) {
	var patch permitPatch
	if err := json.Unmarshal(ch.Data, &patch); err != nil {
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
	}
	var applied *Applied
	var rejection *Rejection
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var permit models.Permit
		if err := scope.Scoped(tx).First(&permit, "id = ?", ch.ServerID).Error; err != nil {
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonPermissionDenied}
			return nil
		}
		if !actor.SeesProject(permit.ProjectID) {
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonPermissionDenied}
			return nil
		}
		if err := tenant.GuardImmutable(permit.TenantID, patch.TenantID); err != nil {
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonPermissionDenied}
			return nil
		}
		if !CheckVersion(permit.Version, ch.ClientVersion) {
			v := permit.Version
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonVersionConflict, ServerVersion: &v}
			return nil
		}
		updates := map[string]any{"version": permit.Version + 1, "updated_at": time.Now().UTC()}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.WorkLocation != nil {
			updates["work_location"] = *patch.WorkLocation
		}
		if patch.SafetyChecklist != nil {
			updates["safety_checklist"] = models.JSONB(patch.SafetyChecklist)
		}
		if patch.PPERequirements != nil {
			updates["ppe_requirements"] = models.StringArray(patch.PPERequirements)
		}
		res := scope.Scoped(tx.Model(&models.Permit{})).
			Where("id = ? AND version = ?", permit.ID, permit.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			v := permit.Version
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonVersionConflict, ServerVersion: &v}
			return nil
		}
		applied = &Applied{OfflineID: ch.OfflineID, ServerID: permit.ID, Version: permit.Version + 1}
		return nil
	})
	if err != nil {
		s.lg.Errorw("offline permit update failed", "offline_id", ch.OfflineID, "error", err)
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
	}
	return applied, rejection
}

type gasCreate struct {
	PermitID        string  `json:"permit_id"`
	GasType         string  `json:"gas_type"`
	Reading         float64 `json:"reading"`
	Unit            string  `json:"unit"`
	AcceptableRange string  `json:"acceptable_range"`
	EquipmentUsed   string  `json:"equipment_used"`
}

func (s *Syncer) applyGasCreate(scope tenant.Scope, actor identity.Facet, ch Change) (*Applied, *Rejection) {
	var in gasCreate
	if err := json.Unmarshal(ch.Data, &in); err != nil || in.GasType == "" {
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
	}
	var applied *Applied
	var rejection *Rejection
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var permit models.Permit
		if err := scope.Scoped(tx).First(&permit, "id = ?", in.PermitID).Error; err != nil {
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonPermissionDenied}
			return nil
		}
		if !actor.SeesProject(permit.ProjectID) {
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonPermissionDenied}
			return nil
		}
		g, err := ptw.AddGasReading(tx, scope, permit, in.GasType, in.Reading, in.Unit, in.AcceptableRange, in.EquipmentUsed, actor.UserID)
		if err != nil {
			rejection = &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
			return nil
		}
		applied = &Applied{OfflineID: ch.OfflineID, ServerID: g.ID, Version: 1}
		return nil
	})
	if err != nil {
		s.lg.Errorw("offline gas create failed", "offline_id", ch.OfflineID, "error", err)
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
	}
	return applied, rejection
}

// applyAttendanceCreate feeds the event through the bulk-intake path so
// sync and the bulk endpoint enforce identical rules: per-module
// validation, and idempotency per (tenant, client_event_id). Replaying an
// already-applied event reports the existing row, not a rejection.
func (s *Syncer) applyAttendanceCreate(scope tenant.Scope, actor identity.Facet, deviceID string, ch Change) (*Applied, *Rejection) {
	var ev attendance.EventInput
	if err := json.Unmarshal(ch.Data, &ev); err != nil {
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
	}
	ev.DeviceID = deviceID
	ev.Offline = true

	res, err := s.ing.Ingest(scope, []attendance.EventInput{ev})
	if err != nil {
		s.lg.Errorw("offline attendance create failed", "offline_id", ch.OfflineID, "error", err)
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
	}
	if len(res.Rejected) > 0 {
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: res.Rejected[0].Reason}
	}
	var row models.AttendanceEvent
	err = scope.Scoped(s.db).First(&row, "client_event_id = ?", ev.ClientEventID).Error
	if err != nil {
		s.lg.Errorw("offline attendance lookup failed", "offline_id", ch.OfflineID, "error", err)
		return nil, &Rejection{OfflineID: ch.OfflineID, Reason: ReasonBadPayload}
	}
	return &Applied{OfflineID: ch.OfflineID, ServerID: row.ID, Version: 1}, nil
}
