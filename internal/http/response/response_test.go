package response

import (
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, rec.Body.String())
	}
	return env
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"day": "2026/08/29"}, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("expected success=true")
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["day"] != "2026/08/29" {
		t.Errorf("data: got %v", env.Data)
	}
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "title is required", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("expected success=false")
	}
	if env.Error != "title is required" {
		t.Errorf("error: got %q", env.Error)
	}
}

func TestHandleErrorMapsDomainCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domainerrors.NotFound("source not found"), http.StatusNotFound},
		{domainerrors.Forbidden("premium required"), http.StatusForbidden},
		{domainerrors.Unauthorized("missing token"), http.StatusUnauthorized},
		{domainerrors.Validation("bad batch"), http.StatusBadRequest},
		{domainerrors.Upstream("notion 503"), http.StatusBadGateway},
		{domainerrors.QuotaExceeded("token cap"), http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		HandleError(rec, tc.err, nil)
		if rec.Code != tc.want {
			t.Errorf("%v: got %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestHandleErrorHidesConfigurationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, domainerrors.Configuration("encryption key missing for user-1"), nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error != "Server configuration error" {
		t.Errorf("configuration detail leaked: %q", env.Error)
	}
}

func TestHandleErrorUnknownBecomes500(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, errSentinel, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d", rec.Code)
	}
}

var errSentinel = &opaqueError{}

type opaqueError struct{}

func (*opaqueError) Error() string { return "boom" }
