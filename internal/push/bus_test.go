package push

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

type recordChannel struct {
	messages [][]byte
	full     bool
}

func (c *recordChannel) Send(message []byte) bool {
	if c.full {
		return false
	}
	c.messages = append(c.messages, message)
	return true
}

func TestBus_PublishDeliversToRegisteredChannels(t *testing.T) {
	bus := NewBus()
	ch := &recordChannel{}
	bus.Register(7, ch)

	bus.Publish(7, KeyRevoked(99))

	if len(ch.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ch.messages))
	}
	var event struct {
		Type    string `json:"type"`
		Payload struct {
			KeyID uint64 `json:"key_id"`
		} `json:"payload"`
	}
	if errUnmarshal := json.Unmarshal(ch.messages[0], &event); errUnmarshal != nil {
		t.Fatalf("unmarshal event: %v", errUnmarshal)
	}
	if event.Type != EventKeyRevoked {
		t.Fatalf("expected type=%s, got %s", EventKeyRevoked, event.Type)
	}
	if event.Payload.KeyID != 99 {
		t.Fatalf("expected key_id=99, got %d", event.Payload.KeyID)
	}
}

func TestBus_PublishDropsWhenNoChannelOpen(t *testing.T) {
	bus := NewBus()
	// No channels registered: publish must be a silent no-op.
	bus.Publish(7, CreditBalanceChanged(decimal.NewFromInt(10)))
}

func TestBus_PublishSkipsOtherResellers(t *testing.T) {
	bus := NewBus()
	mine := &recordChannel{}
	other := &recordChannel{}
	bus.Register(1, mine)
	bus.Register(2, other)

	bus.Publish(1, OnlineUpdatePosted("hello"))

	if len(mine.messages) != 1 {
		t.Fatalf("expected 1 message for reseller 1, got %d", len(mine.messages))
	}
	if len(other.messages) != 0 {
		t.Fatalf("expected no messages for reseller 2, got %d", len(other.messages))
	}
}

func TestBus_UnregisterStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch := &recordChannel{}
	bus.Register(1, ch)
	bus.Unregister(1, ch)

	bus.Publish(1, KeyRevoked(5))

	if len(ch.messages) != 0 {
		t.Fatalf("expected no messages after unregister, got %d", len(ch.messages))
	}
	if bus.ChannelCount(1) != 0 {
		t.Fatalf("expected channel count 0, got %d", bus.ChannelCount(1))
	}
}

func TestBus_FullChannelDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	full := &recordChannel{full: true}
	ok := &recordChannel{}
	bus.Register(1, full)
	bus.Register(1, ok)

	bus.Publish(1, KeyRevoked(5))

	if len(ok.messages) != 1 {
		t.Fatalf("expected healthy channel to receive message, got %d", len(ok.messages))
	}
}

func TestBus_BroadcastReachesAllResellers(t *testing.T) {
	bus := NewBus()
	a := &recordChannel{}
	b := &recordChannel{}
	bus.Register(1, a)
	bus.Register(2, b)

	bus.Broadcast(OnlineUpdatePosted("maintenance tonight"))

	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Fatalf("expected both channels to receive broadcast, got %d and %d", len(a.messages), len(b.messages))
	}
}
