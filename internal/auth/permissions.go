package auth

import "github.com/starford/certhub/internal/models"

// Permission names.
const (
	PermManageUnitCerts = "manage_unit_certs"
	PermExportData      = "export_data"
	PermViewAnalytics   = "view_analytics"
	PermAddCertificate  = "add_certificate"
)

// Allowed is the static permission table. A nil user holds no permission and
// unknown names are denied.
func Allowed(u *models.User, permission string) bool {
	if u == nil {
		return false
	}
	switch permission {
	case PermManageUnitCerts, PermExportData:
		return u.IsManager
	case PermViewAnalytics, PermAddCertificate:
		return true
	default:
		return false
	}
}
