package ratelimit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/settings"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "keymint-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0).UTC()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(context.Background(), "r:1", 3, now)
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("expected request %d allowed", i)
		}
		if result.Remaining != 3-i-1 {
			t.Fatalf("expected remaining=%d, got %d", 3-i-1, result.Remaining)
		}
	}

	blocked, err := limiter.Allow(context.Background(), "r:1", 3, now)
	if err != nil {
		t.Fatalf("Allow over limit: %v", err)
	}
	if blocked.Allowed {
		t.Fatalf("expected fourth request blocked")
	}

	// The window resets on the next second.
	next, err := limiter.Allow(context.Background(), "r:1", 3, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Allow next window: %v", err)
	}
	if !next.Allowed {
		t.Fatalf("expected request allowed after window reset")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0).UTC()

	if result, _ := limiter.Allow(context.Background(), "r:1", 1, now); !result.Allowed {
		t.Fatalf("expected first key allowed")
	}
	if result, _ := limiter.Allow(context.Background(), "r:1", 1, now); result.Allowed {
		t.Fatalf("expected first key exhausted")
	}
	if result, _ := limiter.Allow(context.Background(), "r:2", 1, now); !result.Allowed {
		t.Fatalf("expected second key unaffected")
	}
}

func TestKeyBuilders(t *testing.T) {
	if got := KeyForReseller(42); got != "r:42" {
		t.Fatalf("KeyForReseller: got %q", got)
	}
	if got := KeyForReseller(0); got != "" {
		t.Fatalf("expected empty key for zero reseller, got %q", got)
	}
	if got := KeyForDevice(" abc-123 "); got != "d:abc-123" {
		t.Fatalf("KeyForDevice: got %q", got)
	}
	if got := KeyForDevice("   "); got != "" {
		t.Fatalf("expected empty key for blank device, got %q", got)
	}
}

func TestResolveGenerateLimit_OverrideWinsOverSettings(t *testing.T) {
	conn := openTestDB(t)
	settings.ReplaceSnapshot(map[string]json.RawMessage{
		settings.RateLimitKey: json.RawMessage(`3`),
	})
	t.Cleanup(func() { settings.ReplaceSnapshot(nil) })

	withOverride := models.Reseller{Username: "fast", Password: "x", Credits: decimal.Zero, RateLimit: 10, Active: true}
	if errCreate := conn.Create(&withOverride).Error; errCreate != nil {
		t.Fatalf("create reseller: %v", errCreate)
	}
	withoutOverride := models.Reseller{Username: "slow", Password: "x", Credits: decimal.Zero, Active: true}
	if errCreate := conn.Create(&withoutOverride).Error; errCreate != nil {
		t.Fatalf("create reseller: %v", errCreate)
	}

	limit, err := ResolveGenerateLimit(context.Background(), conn, withOverride.ID)
	if err != nil {
		t.Fatalf("ResolveGenerateLimit: %v", err)
	}
	if limit != 10 {
		t.Fatalf("expected override 10, got %d", limit)
	}

	limit, err = ResolveGenerateLimit(context.Background(), conn, withoutOverride.ID)
	if err != nil {
		t.Fatalf("ResolveGenerateLimit: %v", err)
	}
	if limit != 3 {
		t.Fatalf("expected settings default 3, got %d", limit)
	}
}

func TestResolveVerifyLimit_FallsBackToDefault(t *testing.T) {
	settings.ReplaceSnapshot(nil)
	if limit := ResolveVerifyLimit(); limit != settings.DefaultVerifyRateLimit {
		t.Fatalf("expected default %d, got %d", settings.DefaultVerifyRateLimit, limit)
	}

	settings.ReplaceSnapshot(map[string]json.RawMessage{
		settings.VerifyRateLimitKey: json.RawMessage(`"20"`),
	})
	t.Cleanup(func() { settings.ReplaceSnapshot(nil) })
	if limit := ResolveVerifyLimit(); limit != 20 {
		t.Fatalf("expected 20, got %d", limit)
	}
}

func TestManager_FallsBackToMemoryWithoutRedis(t *testing.T) {
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{Limit: 2}
	}, nil, nil)

	for i := 0; i < 2; i++ {
		result, err := manager.Allow(context.Background(), "r:7", 2)
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("expected request %d allowed", i)
		}
	}
	result, err := manager.Allow(context.Background(), "r:7", 2)
	if err != nil {
		t.Fatalf("Allow over limit: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected third request blocked")
	}
}

func TestManager_ZeroLimitMeansUnlimited(t *testing.T) {
	manager := NewManager(nil, nil, nil)
	for i := 0; i < 50; i++ {
		result, err := manager.Allow(context.Background(), "r:9", 0)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected unlimited key always allowed")
		}
	}
}
