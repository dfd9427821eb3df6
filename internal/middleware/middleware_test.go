package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidateClinicID(t *testing.T) {
	valid := []string{"clinic-a", "Clinic_01", "x"}
	for _, c := range valid {
		if err := ValidateClinicID(c); err != nil {
			t.Errorf("%q rejected: %v", c, err)
		}
	}
	invalid := []string{"", "clinic a", "clinic/../b", "a!b", strings.Repeat("a", 70)}
	for _, c := range invalid {
		if err := ValidateClinicID(c); err == nil {
			t.Errorf("%q accepted", c)
		}
	}
}

func TestValidateImageID(t *testing.T) {
	if err := ValidateImageID("fundus_2024.01.dcm"); err != nil {
		t.Errorf("valid image id rejected: %v", err)
	}
	invalid := []string{"", "../etc/passwd", "a/b", "img id"}
	for _, id := range invalid {
		if err := ValidateImageID(id); err == nil {
			t.Errorf("%q accepted", id)
		}
	}
}

func TestValidateAnalysisID(t *testing.T) {
	if err := ValidateAnalysisID("3b6a9c1e-0f4d-4a2b-8c7d-1e2f3a4b5c6d"); err != nil {
		t.Errorf("valid uuid rejected: %v", err)
	}
	if err := ValidateAnalysisID("not-a-uuid"); err == nil {
		t.Error("garbage accepted")
	}
}

func TestValidateLimit(t *testing.T) {
	if got := ValidateLimit(0); got != 20 {
		t.Errorf("ValidateLimit(0) = %d, want 20", got)
	}
	if got := ValidateLimit(500); got != 100 {
		t.Errorf("ValidateLimit(500) = %d, want 100", got)
	}
	if got := ValidateLimit(7); got != 7 {
		t.Errorf("ValidateLimit(7) = %d, want 7", got)
	}
}

func TestTokenBucketExhaustsAndRefills(t *testing.T) {
	tb := NewTokenBucket(3, 1000)
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d denied within capacity", i)
		}
	}
	if tb.Allow() {
		t.Fatal("request allowed past capacity")
	}
}

func TestAPIKeyAuth(t *testing.T) {
	keys := map[string]string{"clinic-a": "secret-key-1"}
	var gotClinic string
	handler := APIKeyAuth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClinic = GetClinicFromContext(r.Context())
	}))

	// Missing header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/clinic-a/credits", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status = %d, want 401", rec.Code)
	}

	// Wrong key
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/clinic-a/credits", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", rec.Code)
	}

	// Valid key pins the clinic
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/clinic-a/credits", nil)
	req.Header.Set("Authorization", "Bearer secret-key-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid key: status = %d, want 200", rec.Code)
	}
	if gotClinic != "clinic-a" {
		t.Fatalf("clinic = %q, want clinic-a", gotClinic)
	}

	// Health bypasses auth
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d, want 200", rec.Code)
	}
}
