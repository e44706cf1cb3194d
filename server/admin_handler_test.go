package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/UnKnowSoDev/pianissimo-gacha/auth"
	"github.com/UnKnowSoDev/pianissimo-gacha/config"
	"github.com/UnKnowSoDev/pianissimo-gacha/db/docstore"
)

func newAdminTestApp(t *testing.T) (*App, string, string) {
	t.Helper()

	storePath := filepath.Join(t.TempDir(), "database.json")
	store, err := docstore.Open(storePath, testLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{Secret: "test-secret"},
	}
	app := New(Options{Config: cfg, Logger: testLogger(), Store: store})
	app.SetBalanceProvider(newFakeBalanceProvider(map[string]string{}))
	app.RegisterGachaRoutes()

	token, err := auth.GenerateToken("test-secret", "admin-1", "Admin", true, time.Hour)
	if err != nil {
		t.Fatalf("generating admin token: %v", err)
	}
	return app, token, storePath
}

func doAdminRequest(t *testing.T, app *App, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, req)
	return w
}

func TestSetCostRejectsZeroWithPositivityMessage(t *testing.T) {
	app, token, _ := newAdminTestApp(t)

	w := doAdminRequest(t, app, token, http.MethodPut, "/api/gacha/admin/cost", `{"costPerSpin":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cost per spin must be positive") {
		t.Errorf("body = %s, want the positivity message", w.Body.String())
	}
}

func TestUpsertRewardRejectsZeroWeightWithPositivityMessage(t *testing.T) {
	app, token, _ := newAdminTestApp(t)

	w := doAdminRequest(t, app, token, http.MethodPut, "/api/gacha/admin/rewards", `{"name":"Dust","weight":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "weight must be positive") {
		t.Errorf("body = %s, want the positivity message", w.Body.String())
	}
}

func TestDeleteRewardUnknownNameDoesNotPersist(t *testing.T) {
	app, token, storePath := newAdminTestApp(t)

	before, err := os.Stat(storePath)
	if err != nil {
		t.Fatalf("stat store file: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	w := doAdminRequest(t, app, token, http.MethodDelete, "/api/gacha/admin/rewards/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	after, err := os.Stat(storePath)
	if err != nil {
		t.Fatalf("stat store file: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("store file rewritten for a delete that removed nothing")
	}

	// The built-in default table carries "Salt"; deleting it persists.
	w = doAdminRequest(t, app, token, http.MethodDelete, "/api/gacha/admin/rewards/Salt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	after, err = os.Stat(storePath)
	if err != nil {
		t.Fatalf("stat store file: %v", err)
	}
	if after.ModTime().Equal(before.ModTime()) {
		t.Error("store file not rewritten for a successful delete")
	}
}
