package rbac

import (
	"testing"

	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{model.RoleOwner, PermManageClinic, true},
		{model.RoleOwner, PermManageUsers, true},
		{model.RoleAdmin, PermManageClinic, false},
		{model.RoleAdmin, PermManageStaff, true},
		{model.RoleReceptionist, PermManageStaff, false},
		{model.RoleReceptionist, PermCreateAppointment, true},
		{model.RoleReceptionist, PermCancelAppointment, true},
		{"intruder", PermViewAppointments, false},
		{"", PermViewAppointments, false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.role, tt.permission); got != tt.want {
			t.Errorf("Allowed(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{model.RoleOwner, model.RoleAdmin, model.RoleReceptionist} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	if ValidRole("superuser") {
		t.Error("ValidRole accepted unknown role")
	}
}
