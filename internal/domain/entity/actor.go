package entity

// Roles conocidos del sistema.
const (
	RoleVerifier      = "verifier"
	RoleAdministrator = "administrator"
	RoleManagement    = "management"
)

// Capability permiso por operación; desacopla "quién puede aprobar" del nombre del rol.
type Capability string

const (
	CapRecordPurchase     Capability = "record_purchase"
	CapDeletePurchase     Capability = "delete_purchase"
	CapApplyMovement      Capability = "apply_movement"
	CapCountInventory     Capability = "count_inventory"
	CapReviewVerification Capability = "review_verification"
	CapViewReports        Capability = "view_reports"
)

// AllCapabilities lista todas las capacidades.
var AllCapabilities = []Capability{
	CapRecordPurchase,
	CapDeletePurchase,
	CapApplyMovement,
	CapCountInventory,
	CapReviewVerification,
	CapViewReports,
}

// Actor quien ejecuta una operación (tomado del token).
type Actor struct {
	ID   string
	Role string
}
