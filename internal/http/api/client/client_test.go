package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/ratelimit"
	internalsettings "github.com/keymint-app/keymint/internal/settings"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupVerify(t *testing.T, limiter *ratelimit.Manager) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := "file:" + filepath.Join(t.TempDir(), "keymint-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	engine := gin.New()
	RegisterClientRoutes(engine, conn, limiter)
	return engine, conn
}

func seedVerifyKey(t *testing.T, conn *gorm.DB, keyString string, deviceLimit int, expiresAt time.Time, revoked bool) models.Key {
	t.Helper()
	reseller := models.Reseller{Username: "reseller-" + keyString, Password: "hashed", Credits: decimal.Zero, Active: true}
	if errCreate := conn.Create(&reseller).Error; errCreate != nil {
		t.Fatalf("create reseller: %v", errCreate)
	}
	key := models.Key{
		KeyString:   keyString,
		Game:        models.GamePUBGMobile,
		DeviceLimit: deviceLimit,
		ExpiresAt:   expiresAt,
		CreditCost:  decimal.RequireFromString("1"),
		Revoked:     revoked,
		ResellerID:  reseller.ID,
		BatchID:     "batch-test",
	}
	if errCreate := conn.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}
	return key
}

func postVerify(t *testing.T, engine *gin.Engine, keyString, deviceID string) *httptest.ResponseRecorder {
	t.Helper()
	body, errMarshal := json.Marshal(map[string]string{"key": keyString, "device_id": deviceID})
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, "/v0/client/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func decodeVerify(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &payload); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	return payload
}

func TestVerify_Success_BindsDevice(t *testing.T) {
	engine, conn := setupVerify(t, nil)
	seedVerifyKey(t, conn, "KEY-OK", 2, time.Now().UTC().Add(24*time.Hour), false)

	recorder := postVerify(t, engine, "KEY-OK", "device-1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeVerify(t, recorder)
	if payload["ok"] != true {
		t.Fatalf("expected ok=true, got %v", payload["ok"])
	}
	if payload["already_bound"] != false {
		t.Fatalf("expected already_bound=false, got %v", payload["already_bound"])
	}
	if payload["slots_remaining"] != float64(1) {
		t.Fatalf("expected slots_remaining=1, got %v", payload["slots_remaining"])
	}

	recorder = postVerify(t, engine, "KEY-OK", "device-1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on rebind, got %d", recorder.Code)
	}
	payload = decodeVerify(t, recorder)
	if payload["already_bound"] != true {
		t.Fatalf("expected already_bound=true on rebind, got %v", payload["already_bound"])
	}
}

func TestVerify_KeyNotFound(t *testing.T) {
	engine, _ := setupVerify(t, nil)

	recorder := postVerify(t, engine, "KEY-MISSING", "device-1")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	payload := decodeVerify(t, recorder)
	if payload["ok"] != false {
		t.Fatalf("expected ok=false, got %v", payload["ok"])
	}
	if payload["reason"] != "KeyNotFound" {
		t.Fatalf("expected reason=KeyNotFound, got %v", payload["reason"])
	}
}

func TestVerify_KeyRevoked(t *testing.T) {
	engine, conn := setupVerify(t, nil)
	seedVerifyKey(t, conn, "KEY-REVOKED", 2, time.Now().UTC().Add(24*time.Hour), true)

	recorder := postVerify(t, engine, "KEY-REVOKED", "device-1")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
	if payload := decodeVerify(t, recorder); payload["reason"] != "KeyRevoked" {
		t.Fatalf("expected reason=KeyRevoked, got %v", payload["reason"])
	}
}

func TestVerify_KeyExpired(t *testing.T) {
	engine, conn := setupVerify(t, nil)
	seedVerifyKey(t, conn, "KEY-EXPIRED", 2, time.Now().UTC().Add(-time.Hour), false)

	recorder := postVerify(t, engine, "KEY-EXPIRED", "device-1")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
	if payload := decodeVerify(t, recorder); payload["reason"] != "KeyExpired" {
		t.Fatalf("expected reason=KeyExpired, got %v", payload["reason"])
	}
}

func TestVerify_DeviceLimitExceeded(t *testing.T) {
	engine, conn := setupVerify(t, nil)
	seedVerifyKey(t, conn, "KEY-FULL", 1, time.Now().UTC().Add(24*time.Hour), false)

	if recorder := postVerify(t, engine, "KEY-FULL", "device-1"); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for first device, got %d", recorder.Code)
	}

	recorder := postVerify(t, engine, "KEY-FULL", "device-2")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
	if payload := decodeVerify(t, recorder); payload["reason"] != "DeviceLimitExceeded" {
		t.Fatalf("expected reason=DeviceLimitExceeded, got %v", payload["reason"])
	}
}

func TestVerify_BadRequest(t *testing.T) {
	engine, _ := setupVerify(t, nil)

	recorder := postVerify(t, engine, "", "device-1")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestVerify_RateLimited(t *testing.T) {
	internalsettings.ReplaceSnapshot(map[string]json.RawMessage{
		internalsettings.VerifyRateLimitKey: json.RawMessage(`1`),
	})
	t.Cleanup(func() { internalsettings.ReplaceSnapshot(nil) })

	frozen := time.Now().UTC()
	engine, conn := setupVerify(t, ratelimit.NewManager(nil, func() time.Time { return frozen }, nil))
	seedVerifyKey(t, conn, "KEY-LIMITED", 5, time.Now().UTC().Add(24*time.Hour), false)

	if recorder := postVerify(t, engine, "KEY-LIMITED", "device-1"); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for first request, got %d", recorder.Code)
	}
	recorder := postVerify(t, engine, "KEY-LIMITED", "device-1")
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", recorder.Code)
	}
	if payload := decodeVerify(t, recorder); payload["reason"] != "RateLimited" {
		t.Fatalf("expected reason=RateLimited, got %v", payload["reason"])
	}
}
