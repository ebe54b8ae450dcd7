package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinicbook/clinicbook/libs/auth"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/booking"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/rbac"
	"github.com/google/uuid"
)

const testSecret = "unit-test-secret"

func testAPI() *API {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAPI(logger, nil, nil, nil, nil, nil, nil, nil, Config{JWTSecret: testSecret})
}

func signToken(t *testing.T, clinicID, role string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:      uuid.NewString(),
		ClinicID: clinicID,
		Role:     role,
		Iat:      now.Unix(),
		Exp:      now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func callProtected(t *testing.T, api *API, permission, token, pathClinic string) *httptest.ResponseRecorder {
	t.Helper()
	called := false
	handler := api.requireAuth(permission, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /clinics/{clinicID}/x", handler)

	req := httptest.NewRequest(http.MethodGet, "/clinics/"+pathClinic+"/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK && !called {
		t.Fatal("200 without invoking the wrapped handler")
	}
	return rec
}

func TestRequireAuthMissingToken(t *testing.T) {
	api := testAPI()
	rec := callProtected(t, api, "", "", uuid.NewString())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthBadSignature(t *testing.T) {
	api := testAPI()
	clinicID := uuid.NewString()
	token, err := auth.SignHS256(auth.Claims{
		Sub: "x", ClinicID: clinicID, Role: model.RoleOwner,
		Exp: time.Now().Add(time.Hour).Unix(),
	}, "some-other-secret")
	if err != nil {
		t.Fatal(err)
	}
	rec := callProtected(t, api, "", token, clinicID)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthClinicIsolation(t *testing.T) {
	api := testAPI()
	token := signToken(t, uuid.NewString(), model.RoleOwner)
	rec := callProtected(t, api, "", token, uuid.NewString())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for foreign clinic", rec.Code)
	}
}

func TestRequireAuthPermission(t *testing.T) {
	api := testAPI()
	clinicID := uuid.NewString()

	token := signToken(t, clinicID, model.RoleReceptionist)
	rec := callProtected(t, api, rbac.PermManageStaff, token, clinicID)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for missing permission", rec.Code)
	}

	rec = callProtected(t, api, rbac.PermCreateAppointment, token, clinicID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for granted permission", rec.Code)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	api := testAPI()
	tests := []struct {
		err  error
		want int
	}{
		{booking.Invalid("start", "must be in the future"), http.StatusBadRequest},
		{booking.NotFound("clinic", "abc"), http.StatusNotFound},
		{booking.ErrSlotUnavailable, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		api.writeError(rec, req, tt.err)
		if rec.Code != tt.want {
			t.Errorf("writeError(%v) status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
