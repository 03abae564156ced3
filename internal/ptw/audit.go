package ptw

import (
	"gorm.io/gorm"

	"athens/internal/models"
)

// appendAudit writes one append-only audit row inside the caller's
// transaction so log order matches commit order.
func appendAudit(tx *gorm.DB, tenantID, permitID, action, userID, comments, ip string, from, to *string) error {
	return tx.Create(&models.PermitAudit{
		TenantID:   tenantID,
		PermitID:   permitID,
		Action:     action,
		UserID:     userID,
		FromStatus: from,
		ToStatus:   to,
		Comments:   comments,
		IPAddress:  ip,
	}).Error
}
