package ptw

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"athens/internal/models"
	"athens/internal/tenant"
)

// NextPermitNumber allocates a tenant-unique permit number of the form
// PTW-<year>-<seq>. The unique index on (tenant_id, permit_number) backs
// this up; Engine.Create retries the whole insert when two concurrent
// creates race to the same sequence value.
func NextPermitNumber(tx *gorm.DB, scope tenant.Scope, now time.Time) (string, error) {
	year := now.UTC().Year()
	var count int64
	err := scope.Scoped(tx.Model(&models.Permit{})).
		Where("permit_number LIKE ?", fmt.Sprintf("PTW-%d-%%", year)).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PTW-%d-%05d", year, count+1), nil
}
