package keys

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keymint-app/keymint/internal/models"
)

func TestVerify_BindsUpToDeviceLimit(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, resellerID, "PUBG-LIMITTEST000001", 2, time.Now().UTC().Add(24*time.Hour))
	verifier := NewVerifier(conn)

	first, err := verifier.Verify(context.Background(), key.KeyString, "device-1")
	if err != nil {
		t.Fatalf("verify device-1: %v", err)
	}
	if first.SlotsRemaining != 1 {
		t.Fatalf("expected 1 slot remaining, got %d", first.SlotsRemaining)
	}

	second, err := verifier.Verify(context.Background(), key.KeyString, "device-2")
	if err != nil {
		t.Fatalf("verify device-2: %v", err)
	}
	if second.SlotsRemaining != 0 {
		t.Fatalf("expected 0 slots remaining, got %d", second.SlotsRemaining)
	}

	if _, errThird := verifier.Verify(context.Background(), key.KeyString, "device-3"); !errors.Is(errThird, ErrDeviceLimitExceeded) {
		t.Fatalf("expected ErrDeviceLimitExceeded, got %v", errThird)
	}

	var bound int64
	if errCount := conn.Model(&models.Device{}).Where("key_id = ?", key.ID).Count(&bound).Error; errCount != nil {
		t.Fatalf("count devices: %v", errCount)
	}
	if bound != 2 {
		t.Fatalf("expected 2 bound devices, got %d", bound)
	}
}

func TestVerify_RepeatedVerificationIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, resellerID, "PUBG-IDEMPOTENT00001", 2, time.Now().UTC().Add(24*time.Hour))
	verifier := NewVerifier(conn)

	if _, err := verifier.Verify(context.Background(), key.KeyString, "device-1"); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	for i := 0; i < 3; i++ {
		result, err := verifier.Verify(context.Background(), key.KeyString, "device-1")
		if err != nil {
			t.Fatalf("re-verify %d: %v", i, err)
		}
		if !result.AlreadyBound {
			t.Fatalf("expected already_bound on re-verify")
		}
		if result.SlotsRemaining != 1 {
			t.Fatalf("expected slots unchanged at 1, got %d", result.SlotsRemaining)
		}
	}

	var bound int64
	if errCount := conn.Model(&models.Device{}).Where("key_id = ?", key.ID).Count(&bound).Error; errCount != nil {
		t.Fatalf("count devices: %v", errCount)
	}
	if bound != 1 {
		t.Fatalf("expected re-verification to never add rows, got %d", bound)
	}
}

func TestVerify_UnknownKey(t *testing.T) {
	conn := openTestDB(t)
	verifier := NewVerifier(conn)
	if _, err := verifier.Verify(context.Background(), "PUBG-DOESNOTEXIST001", "device-1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestVerify_RevokedKey(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, resellerID, "PUBG-REVOKED00000001", 2, time.Now().UTC().Add(24*time.Hour))
	verifier := NewVerifier(conn)

	if _, err := verifier.Verify(context.Background(), key.KeyString, "device-1"); err != nil {
		t.Fatalf("verify before revoke: %v", err)
	}
	if errUpdate := conn.Model(&models.Key{}).Where("id = ?", key.ID).Update("revoked", true).Error; errUpdate != nil {
		t.Fatalf("revoke key: %v", errUpdate)
	}

	// Previously-bound devices fail too: revocation is terminal.
	if _, err := verifier.Verify(context.Background(), key.KeyString, "device-1"); !errors.Is(err, ErrKeyRevoked) {
		t.Fatalf("expected ErrKeyRevoked, got %v", err)
	}
	if _, err := verifier.Verify(context.Background(), key.KeyString, "device-2"); !errors.Is(err, ErrKeyRevoked) {
		t.Fatalf("expected ErrKeyRevoked for new device, got %v", err)
	}
}

func TestVerify_ExpiredKey(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, resellerID, "PUBG-EXPIRED00000001", 2, time.Now().UTC().Add(time.Hour))
	verifier := NewVerifier(conn)
	verifier.nowFn = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	if _, err := verifier.Verify(context.Background(), key.KeyString, "device-1"); !errors.Is(err, ErrKeyExpired) {
		t.Fatalf("expected ErrKeyExpired, got %v", err)
	}
}

func TestVerify_ConcurrentBindingsNeverExceedLimit(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	const limit = 3
	const attempts = 12
	key := seedKey(t, conn, resellerID, "PUBG-CONCURRENT00001", limit, time.Now().UTC().Add(24*time.Hour))
	verifier := NewVerifier(conn)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errVerify := verifier.Verify(context.Background(), key.KeyString, fmt.Sprintf("device-%02d", n))
			results <- errVerify
		}(i)
	}
	wg.Wait()
	close(results)

	successes, limited := 0, 0
	for errVerify := range results {
		switch {
		case errVerify == nil:
			successes++
		case errors.Is(errVerify, ErrDeviceLimitExceeded):
			limited++
		default:
			t.Fatalf("unexpected verify error: %v", errVerify)
		}
	}
	if successes != limit {
		t.Fatalf("expected exactly %d bindings, got %d", limit, successes)
	}
	if limited != attempts-limit {
		t.Fatalf("expected %d limit rejections, got %d", attempts-limit, limited)
	}

	var bound int64
	if errCount := conn.Model(&models.Device{}).Where("key_id = ?", key.ID).Count(&bound).Error; errCount != nil {
		t.Fatalf("count devices: %v", errCount)
	}
	if bound != limit {
		t.Fatalf("expected bound count=%d, got %d", limit, bound)
	}
}
