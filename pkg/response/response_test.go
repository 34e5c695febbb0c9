package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	appErrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	return ctx, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestSuccessSpreadsPayload(t *testing.T) {
	ctx, rec := newContext()

	Success(ctx, http.StatusCreated, gin.H{"message": "ok"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	body := decode(t, rec)
	if body["success"] != true {
		t.Fatal("expected success flag to be true")
	}
	if body["message"] != "ok" {
		t.Fatalf("expected payload to be spread, got %v", body)
	}
	if _, ok := body["error"]; ok {
		t.Fatal("expected no error information")
	}
}

func TestSuccessCannotOverrideFlag(t *testing.T) {
	ctx, rec := newContext()

	Success(ctx, http.StatusOK, gin.H{"success": false})

	if decode(t, rec)["success"] != true {
		t.Fatal("expected success flag to win over payload")
	}
}

func TestErrorWithAppError(t *testing.T) {
	ctx, rec := newContext()

	Error(ctx, appErrors.ErrForbidden)

	if rec.Code != appErrors.ErrForbidden.StatusCode {
		t.Fatalf("expected status %d got %d", appErrors.ErrForbidden.StatusCode, rec.Code)
	}

	body := decode(t, rec)
	if body["success"] != false {
		t.Fatal("expected success to be false")
	}
	if body["error"] != appErrors.ErrForbidden.Message {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
	if body["code"] != appErrors.ErrForbidden.Code {
		t.Fatal("expected forbidden error code in response")
	}
}

func TestErrorMergesFields(t *testing.T) {
	ctx, rec := newContext()

	Error(ctx, appErrors.ErrEmailNotVerified)

	body := decode(t, rec)
	if body["requiresVerification"] != true {
		t.Fatalf("expected requiresVerification flag, got %v", body)
	}
}

func TestErrorWithGenericError(t *testing.T) {
	ctx, rec := newContext()

	Error(ctx, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestErrorDetailsOnlyInDevelopment(t *testing.T) {
	t.Cleanup(func() { ExposeDetails(false) })
	depErr := appErrors.NewDependency("database", errors.New("connection refused"))

	ExposeDetails(false)
	ctx, rec := newContext()
	Error(ctx, depErr)
	if _, ok := decode(t, rec)["details"]; ok {
		t.Fatal("expected details to be suppressed")
	}

	ExposeDetails(true)
	ctx, rec = newContext()
	Error(ctx, depErr)
	body := decode(t, rec)
	if body["details"] != "database: connection refused" {
		t.Fatalf("expected details in development, got %v", body["details"])
	}
	if body["error"] != appErrors.ErrInternalServer.Message {
		t.Fatalf("expected generic message, got %v", body["error"])
	}
}
