// Package escalation runs the SLA timer: overdue workflow steps, auto
// expiry of permits past their planned end, and the expiring-soon window
// surfaced by the KPI views.
package escalation

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"athens/internal/models"
	"athens/internal/ptw"
	"athens/internal/tenant"
)

const jobName = "ptw_escalation"

// Notifier delivers an overdue/expiry notice to one user. The websocket
// hub implements it; tests use a recording fake.
type Notifier interface {
	Notify(userID, permitID, message string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, string) {}

// Config carries the SLA windows. Defaults follow the platform defaults of
// four hours each.
type Config struct {
	VerificationSLA time.Duration
	ApprovalSLA     time.Duration
	ExpiringSoon    time.Duration
	Tick            time.Duration
}

// FromEnv reads *_SLA_HOURS / EXPIRING_SOON_HOURS overrides.
func FromEnv() Config {
	hours := func(key string, def int) time.Duration {
		if s := os.Getenv(key); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				return time.Duration(n) * time.Hour
			}
		}
		return time.Duration(def) * time.Hour
	}
	return Config{
		VerificationSLA: hours("VERIFICATION_SLA_HOURS", 4),
		ApprovalSLA:     hours("APPROVAL_SLA_HOURS", 4),
		ExpiringSoon:    hours("EXPIRING_SOON_HOURS", 4),
		Tick:            time.Minute,
	}
}

type Scheduler struct {
	db       *gorm.DB
	lg       *zap.SugaredLogger
	engine   *ptw.Engine
	notifier Notifier
	cfg      Config
}

func NewScheduler(db *gorm.DB, lg *zap.SugaredLogger, engine *ptw.Engine, notifier Notifier, cfg Config) *Scheduler {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Scheduler{db: db, lg: lg, engine: engine, notifier: notifier, cfg: cfg}
}

// Run ticks until the context is cancelled. A tick that fails records its
// error on the persisted run row; the next tick is a fresh attempt.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	s.lg.Infow("escalation scheduler started", "tick", s.cfg.Tick)
	for {
		select {
		case <-ctx.Done():
			s.lg.Infow("escalation scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass. Exported so tests and boot can drive it
// directly.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()
	run := models.SchedulerRun{JobName: jobName, LastRunAt: now}
	s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_run_at"}),
	}).Create(&run)

	err := s.pass(ctx, now)
	updates := map[string]any{"last_run_at": now}
	if err != nil {
		updates["last_error"] = err.Error()
		s.lg.Errorw("escalation tick failed", "error", err)
	} else {
		updates["last_error"] = ""
		updates["last_success_at"] = now
	}
	s.db.Model(&models.SchedulerRun{}).Where("job_name = ?", jobName).Updates(updates)
}

func (s *Scheduler) pass(ctx context.Context, now time.Time) error {
	if err := s.overduePass(ctx, now, models.StatusSubmitted, "verification", s.cfg.VerificationSLA); err != nil {
		return err
	}
	if err := s.overduePass(ctx, now, models.StatusUnderReview, "approval", s.cfg.ApprovalSLA); err != nil {
		return err
	}
	return s.expirePass(ctx, now)
}

// overduePass flags permits stuck in a workflow step beyond its SLA and
// notifies the responsible user, at most once per (permit, step, day).
func (s *Scheduler) overduePass(ctx context.Context, now time.Time, status, step string, sla time.Duration) error {
	cutoff := now.Add(-sla)
	var permits []models.Permit
	err := s.db.
		Where("status = ? AND updated_at < ?", status, cutoff).
		Order("updated_at asc").
		Find(&permits).Error
	if err != nil {
		return err
	}
	day := now.Format("2006-01-02")
	for _, p := range permits {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		target := responsibleUser(p, step)
		err := s.db.Transaction(func(tx *gorm.DB) error {
			notice := models.EscalationNotice{
				TenantID:       p.TenantID,
				PermitID:       p.ID,
				Step:           step,
				OverdueDay:     day,
				NotifiedUserID: target,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&notice)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil // already notified today
			}
			if target != nil {
				s.notifier.Notify(*target, p.ID, "permit "+p.PermitNumber+" is overdue for "+step)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// expirePass transitions approved/active permits past their planned end.
func (s *Scheduler) expirePass(ctx context.Context, now time.Time) error {
	var permits []models.Permit
	err := s.db.
		Where("status IN ? AND planned_end < ?", []string{models.StatusApproved, models.StatusActive}, now).
		Order("updated_at asc").
		Find(&permits).Error
	if err != nil {
		return err
	}
	for _, p := range permits {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		scope := tenant.Scope{TenantID: p.TenantID}
		if _, err := s.engine.Expire(scope, p); err != nil {
			// A concurrent transition beat us; the next tick re-evaluates.
			s.lg.Warnw("auto expire skipped", "permit", p.ID, "error", err)
			continue
		}
		s.notifier.Notify(p.CreatedByID, p.ID, "permit "+p.PermitNumber+" expired")
	}
	return nil
}

func responsibleUser(p models.Permit, step string) *string {
	switch step {
	case "verification":
		return p.VerifierID
	case "approval":
		return p.ApproverID
	}
	return nil
}

// ExpiringSoonWindow returns the [now, now+window] bounds KPI queries use.
func (c Config) ExpiringSoonWindow(now time.Time) (time.Time, time.Time) {
	return now, now.Add(c.ExpiringSoon)
}
