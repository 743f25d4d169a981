package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tailorcv/internal/database"
	"tailorcv/internal/errcode"
	"tailorcv/internal/resume"
)

type allowAllGate struct{ allow bool }

func (g *allowAllGate) IncrementResumeCount(context.Context, uint) (bool, error) {
	return g.allow, nil
}

type noopCleanup struct{}

func (noopCleanup) Remove(context.Context, ...string) error { return nil }

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newResumeTestHandler(t *testing.T, allow bool) *ResumeHandler {
	t.Helper()
	db := newHandlerTestDB(t)
	svc := resume.NewService(db, &allowAllGate{allow: allow}, noopCleanup{}, slog.Default())
	return NewResumeHandler(svc, nil)
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateResume_Created(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newResumeTestHandler(t, true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v1/resumes", resume.ResumeData{
		Title:     "Acme Resume",
		FirstName: "Ada",
		Skills:    []string{"Go"},
	})
	c.Set("userID", uint(1))

	h.CreateResume(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var resp resumeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == 0 || resp.Data.Title != "Acme Resume" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateResume_QuotaExceededIs403(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newResumeTestHandler(t, false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v1/resumes", resume.ResumeData{Title: "T"})
	c.Set("userID", uint(1))

	h.CreateResume(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != errcode.ResumeQuotaExceeded {
		t.Fatalf("code = %d, want %d", resp.Code, errcode.ResumeQuotaExceeded)
	}
}

func TestGetResume_MissingIs404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newResumeTestHandler(t, true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/resumes/999", nil)
	c.Params = gin.Params{{Key: "id", Value: "999"}}
	c.Set("userID", uint(1))

	h.GetResume(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetResume_BadIDIs400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newResumeTestHandler(t, true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/resumes/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	c.Set("userID", uint(1))

	h.GetResume(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestMissingUserIDIsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newResumeTestHandler(t, true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/resumes", nil)

	h.ListResumes(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}
