package rbac

import "github.com/clinicbook/clinicbook/services/clinic-api/internal/model"

// Permissions follow the action:resource convention.
const (
	PermManageClinic      = "manage:clinic"
	PermManageStaff       = "manage:staff"
	PermManageTypes       = "manage:appointment_types"
	PermManageUsers       = "manage:users"
	PermCreateAppointment = "create:appointment"
	PermCancelAppointment = "cancel:appointment"
	PermViewAppointments  = "view:appointments"
	PermManagePatients    = "manage:patients"
)

var rolePermissions = map[string][]string{
	model.RoleOwner: {
		PermManageClinic, PermManageStaff, PermManageTypes, PermManageUsers,
		PermCreateAppointment, PermCancelAppointment, PermViewAppointments, PermManagePatients,
	},
	model.RoleAdmin: {
		PermManageStaff, PermManageTypes,
		PermCreateAppointment, PermCancelAppointment, PermViewAppointments, PermManagePatients,
	},
	model.RoleReceptionist: {
		PermCreateAppointment, PermCancelAppointment, PermViewAppointments, PermManagePatients,
	},
}

func Allowed(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
