package attendance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"athens/internal/models"
)

func regularEvent() EventInput {
	return EventInput{
		ClientEventID: "c1",
		Module:        models.ModuleRegular,
		ModuleRefID:   "proj1",
		EventType:     models.EventCheckIn,
		OccurredAt:    time.Now(),
	}
}

func TestValidateRegularModule(t *testing.T) {
	now := time.Now()
	mc := ModuleContext{ProjectExists: true}

	assert.Empty(t, Validate(regularEvent(), mc, now))

	ev := regularEvent()
	ev.EventType = models.EventCheckOut
	assert.Empty(t, Validate(ev, mc, now), "regular attendance allows check-out")

	ev.EventType = "BREAK"
	assert.Equal(t, ReasonInvalidEventType, Validate(ev, mc, now))

	ev = regularEvent()
	assert.Equal(t, ReasonProjectNotFound, Validate(ev, ModuleContext{}, now))
}

func TestValidateRejectsMissingBasics(t *testing.T) {
	now := time.Now()
	ev := regularEvent()
	ev.ClientEventID = ""
	assert.Equal(t, ReasonMissingEventID, Validate(ev, ModuleContext{ProjectExists: true}, now))

	ev = regularEvent()
	ev.OccurredAt = time.Time{}
	assert.Equal(t, ReasonInvalidTimestamp, Validate(ev, ModuleContext{ProjectExists: true}, now))

	ev = regularEvent()
	ev.Module = "LUNCH"
	assert.Equal(t, ReasonUnknownModule, Validate(ev, ModuleContext{}, now))
}

func TestValidateTBTIsCheckInOnly(t *testing.T) {
	now := time.Now()
	ev := EventInput{
		ClientEventID: "c2",
		Module:        models.ModuleTBT,
		ModuleRefID:   "tbt1",
		EventType:     models.EventCheckIn,
		OccurredAt:    now,
	}
	assert.Empty(t, Validate(ev, ModuleContext{TBTExists: true}, now))

	ev.EventType = models.EventCheckOut
	assert.Equal(t, ReasonCheckInOnly, Validate(ev, ModuleContext{TBTExists: true}, now))

	ev.EventType = models.EventCheckIn
	assert.Equal(t, ReasonTBTNotFound, Validate(ev, ModuleContext{}, now))
}

func trainingEvent(method string, payload any) EventInput {
	raw, _ := json.Marshal(payload)
	return EventInput{
		ClientEventID: "c3",
		Module:        models.ModuleTraining,
		ModuleRefID:   "tr1",
		EventType:     models.EventCheckIn,
		OccurredAt:    time.Now(),
		Method:        method,
		Payload:       raw,
	}
}

func TestValidateTrainingPIN(t *testing.T) {
	now := time.Now()
	mc := ModuleContext{Training: &models.TrainingSession{JoinCode: "482915"}}

	assert.Empty(t, Validate(trainingEvent(models.MethodPIN, map[string]string{"pin": "482915"}), mc, now))
	assert.Equal(t, ReasonInvalidPIN, Validate(trainingEvent(models.MethodPIN, map[string]string{"pin": "000000"}), mc, now))
	assert.Equal(t, ReasonInvalidPIN, Validate(trainingEvent(models.MethodPIN, map[string]string{}), mc, now))
	assert.Equal(t, ReasonTrainingNotFound, Validate(trainingEvent(models.MethodPIN, map[string]string{"pin": "482915"}), ModuleContext{}, now))
}

func TestValidateTrainingQR(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	mc := ModuleContext{Training: &models.TrainingSession{QRToken: "tok123", QRExpiresAt: &future}}
	assert.Empty(t, Validate(trainingEvent(models.MethodQR, map[string]string{"qr_token": "tok123"}), mc, now))
	assert.Equal(t, ReasonInvalidQR, Validate(trainingEvent(models.MethodQR, map[string]string{"qr_token": "wrong"}), mc, now))

	mc.Training.QRExpiresAt = &past
	assert.Equal(t, ReasonInvalidQR, Validate(trainingEvent(models.MethodQR, map[string]string{"qr_token": "tok123"}), mc, now))

	mc.Training.QRExpiresAt = nil
	assert.Equal(t, ReasonInvalidQR, Validate(trainingEvent(models.MethodQR, map[string]string{"qr_token": "tok123"}), mc, now))
}

func TestValidateTrainingCheckOutRejected(t *testing.T) {
	ev := trainingEvent(models.MethodPIN, map[string]string{"pin": "482915"})
	ev.EventType = models.EventCheckOut
	mc := ModuleContext{Training: &models.TrainingSession{JoinCode: "482915"}}
	assert.Equal(t, ReasonCheckInOnly, Validate(ev, mc, time.Now()))
}
