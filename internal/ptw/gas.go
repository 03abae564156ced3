package ptw

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/tenant"
)

// ClassifyReading decides safe/unsafe from an acceptable range expressed as
// "min-max" (e.g. "19.5-23.5"), "<max" or ">min". An unparsable range
// yields unsafe so a typo can never wave work through.
func ClassifyReading(reading float64, acceptableRange string) string {
	r := strings.TrimSpace(acceptableRange)
	switch {
	case r == "":
		return models.GasUnsafe
	case strings.HasPrefix(r, "<"):
		if max, err := strconv.ParseFloat(strings.TrimSpace(r[1:]), 64); err == nil && reading < max {
			return models.GasSafe
		}
	case strings.HasPrefix(r, ">"):
		if min, err := strconv.ParseFloat(strings.TrimSpace(r[1:]), 64); err == nil && reading > min {
			return models.GasSafe
		}
	default:
		parts := strings.SplitN(r, "-", 2)
		if len(parts) == 2 {
			min, errA := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			max, errB := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errA == nil && errB == nil && reading >= min && reading <= max {
				return models.GasSafe
			}
		}
	}
	return models.GasUnsafe
}

// AddGasReading appends a reading. Readings are append-only; the latest
// per gas type dominates the aggregate in the readiness evaluator.
func AddGasReading(db *gorm.DB, scope tenant.Scope, permit models.Permit, gasType string, reading float64, unit, acceptableRange, equipment, testedBy string) (models.GasReading, error) {
	if gasType == "" {
		return models.GasReading{}, apperr.ValidationFailed("gas_type required")
	}
	g := models.GasReading{
		TenantID:        scope.TenantID,
		PermitID:        permit.ID,
		GasType:         gasType,
		Reading:         reading,
		Unit:            unit,
		AcceptableRange: acceptableRange,
		Status:          ClassifyReading(reading, acceptableRange),
		TestedByID:      testedBy,
		TestedAt:        time.Now().UTC(),
		EquipmentUsed:   equipment,
	}
	if err := db.Create(&g).Error; err != nil {
		return models.GasReading{}, err
	}
	return g, nil
}
