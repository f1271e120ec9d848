package keys

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
)

type captureChannel struct {
	messages [][]byte
}

func (c *captureChannel) Send(message []byte) bool {
	c.messages = append(c.messages, message)
	return true
}

func TestRevoke_SetsRevokedAndPublishes(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, resellerID, "PUBG-REVOKEME000001", 2, time.Now().UTC().Add(24*time.Hour))

	bus := push.NewBus()
	ch := &captureChannel{}
	bus.Register(resellerID, ch)
	revoker := NewRevoker(conn, bus)

	revoked, err := revoker.Revoke(context.Background(), key.ID, AdminActor{AdminID: 1})
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !revoked.Revoked || revoked.RevokedAt == nil {
		t.Fatalf("expected key marked revoked with timestamp")
	}

	if len(ch.messages) != 1 {
		t.Fatalf("expected 1 push event, got %d", len(ch.messages))
	}
	var event struct {
		Type string `json:"type"`
	}
	if errUnmarshal := json.Unmarshal(ch.messages[0], &event); errUnmarshal != nil {
		t.Fatalf("unmarshal event: %v", errUnmarshal)
	}
	if event.Type != push.EventKeyRevoked {
		t.Fatalf("expected KeyRevoked event, got %s", event.Type)
	}
}

func TestRevoke_IsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, resellerID, "PUBG-TWICE0000000001", 2, time.Now().UTC().Add(24*time.Hour))

	bus := push.NewBus()
	ch := &captureChannel{}
	bus.Register(resellerID, ch)
	revoker := NewRevoker(conn, bus)

	if _, err := revoker.Revoke(context.Background(), key.ID, AdminActor{AdminID: 1}); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	again, err := revoker.Revoke(context.Background(), key.ID, AdminActor{AdminID: 1})
	if err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if !again.Revoked {
		t.Fatalf("expected key to stay revoked")
	}
	if len(ch.messages) != 1 {
		t.Fatalf("expected no event on repeated revoke, got %d", len(ch.messages))
	}
}

func TestRevoke_ResellerCannotRevokeForeignKey(t *testing.T) {
	conn := openTestDB(t)
	ownerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, ownerID, "PUBG-FOREIGN0000001", 2, time.Now().UTC().Add(24*time.Hour))
	revoker := NewRevoker(conn, nil)

	if _, err := revoker.Revoke(context.Background(), key.ID, ResellerActor{ResellerID: ownerID + 1}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	var current models.Key
	if errFind := conn.First(&current, key.ID).Error; errFind != nil {
		t.Fatalf("find key: %v", errFind)
	}
	if current.Revoked {
		t.Fatalf("expected key to stay live after unauthorized revoke")
	}
}

func TestRevoke_OwnerResellerAllowed(t *testing.T) {
	conn := openTestDB(t)
	ownerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, ownerID, "PUBG-OWNKEY00000001", 2, time.Now().UTC().Add(24*time.Hour))
	revoker := NewRevoker(conn, nil)

	revoked, err := revoker.Revoke(context.Background(), key.ID, ResellerActor{ResellerID: ownerID})
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !revoked.Revoked {
		t.Fatalf("expected key revoked by owner")
	}
}

func TestRevoke_UnknownKey(t *testing.T) {
	conn := openTestDB(t)
	revoker := NewRevoker(conn, nil)
	if _, err := revoker.Revoke(context.Background(), 12345, AdminActor{AdminID: 1}); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestRevoke_ThenVerifyFailsForBoundDevice(t *testing.T) {
	conn := openTestDB(t)
	resellerID := seedReseller(t, conn, "10")
	key := seedKey(t, conn, resellerID, "PUBG-REVOKEBIND0001", 2, time.Now().UTC().Add(24*time.Hour))
	verifier := NewVerifier(conn)
	revoker := NewRevoker(conn, nil)

	if _, err := verifier.Verify(context.Background(), key.KeyString, "device-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := revoker.Revoke(context.Background(), key.ID, AdminActor{AdminID: 1}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), key.KeyString, "device-1"); !errors.Is(err, ErrKeyRevoked) {
		t.Fatalf("expected ErrKeyRevoked after revocation, got %v", err)
	}
}
