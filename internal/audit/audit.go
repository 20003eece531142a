package audit

import "time"

// Action describes what was done.
type Action string

const (
	ActionVehicleUploaded   Action = "vehicle_uploaded"
	ActionVehicleDeleted    Action = "vehicle_deleted"
	ActionProductCreated    Action = "product_created"
	ActionProductUpdated    Action = "product_updated"
	ActionProductDeleted    Action = "product_deleted"
	ActionFirmwareReleased  Action = "firmware_released"
	ActionFirmwareDeleted   Action = "firmware_deleted"
	ActionStandardCreated   Action = "standard_created"
	ActionStandardImported  Action = "standard_imported"
	ActionStandardDeleted   Action = "standard_deleted"
	ActionPGNSaved          Action = "pgn_saved"
	ActionPGNDeleted        Action = "pgn_deleted"
	ActionSPNSaved          Action = "spn_saved"
	ActionSPNDeleted        Action = "spn_deleted"
	ActionUserCreated       Action = "user_created"
	ActionUserRoleChanged   Action = "user_role_changed"
	ActionUserStatusChanged Action = "user_status_changed"
	ActionUserDeleted       Action = "user_deleted"
)

// Scope names the kind of record an action touched.
type Scope string

const (
	ScopeVehicle  Scope = "vehicle"
	ScopeProduct  Scope = "product"
	ScopeFirmware Scope = "firmware"
	ScopeStandard Scope = "standard"
	ScopePGN      Scope = "pgn"
	ScopeSPN      Scope = "spn"
	ScopeUser     Scope = "user"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeVehicle, ScopeProduct, ScopeFirmware, ScopeStandard, ScopePGN, ScopeSPN, ScopeUser:
		return true
	}
	return false
}

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Action    Action    `json:"action"`
	Scope     Scope     `json:"scope"`
	ScopeID   string    `json:"scope_id"`
	Summary   string    `json:"summary"`
}
