// Package push delivers real-time events to a reseller's open channels.
// Delivery is best-effort: events for resellers with no open channel are
// dropped, and a slow channel never blocks the publisher.
package push

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Event types delivered over push channels.
const (
	// EventCreditBalanceChanged signals a reseller balance change.
	EventCreditBalanceChanged = "CreditBalanceChanged"
	// EventKeyRevoked signals that one of the reseller's keys was revoked.
	EventKeyRevoked = "KeyRevoked"
	// EventOnlineUpdatePosted signals a new announcement.
	EventOnlineUpdatePosted = "OnlineUpdatePosted"
)

// Event is one JSON message delivered over a push channel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// CreditBalanceChanged builds a balance change event.
func CreditBalanceChanged(newBalance decimal.Decimal) Event {
	return Event{Type: EventCreditBalanceChanged, Payload: map[string]any{"new_balance": newBalance}}
}

// KeyRevoked builds a key revocation event.
func KeyRevoked(keyID uint64) Event {
	return Event{Type: EventKeyRevoked, Payload: map[string]any{"key_id": keyID}}
}

// OnlineUpdatePosted builds an announcement event.
func OnlineUpdatePosted(message string) Event {
	return Event{Type: EventOnlineUpdatePosted, Payload: map[string]any{"message": message}}
}

// Channel is one open push connection. Send must not block; it reports
// whether the message was accepted.
type Channel interface {
	Send(message []byte) bool
}

// Bus maps resellers to their currently open push channels. A Bus is
// constructed once and injected into every component that publishes.
type Bus struct {
	mu       sync.RWMutex
	channels map[uint64]map[Channel]struct{}
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{channels: make(map[uint64]map[Channel]struct{})}
}

// Register adds an open channel for the reseller.
func (b *Bus) Register(resellerID uint64, ch Channel) {
	if b == nil || ch == nil || resellerID == 0 {
		return
	}
	b.mu.Lock()
	set := b.channels[resellerID]
	if set == nil {
		set = make(map[Channel]struct{})
		b.channels[resellerID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
}

// Unregister removes a channel for the reseller.
func (b *Bus) Unregister(resellerID uint64, ch Channel) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	if set := b.channels[resellerID]; set != nil {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.channels, resellerID)
		}
	}
	b.mu.Unlock()
}

// Publish delivers the event to every open channel for the reseller.
// Channels that refuse the message are skipped.
func (b *Bus) Publish(resellerID uint64, event Event) {
	if b == nil || resellerID == 0 {
		return
	}
	message, errMarshal := json.Marshal(event)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("push: marshal event failed")
		return
	}
	b.mu.RLock()
	targets := make([]Channel, 0, len(b.channels[resellerID]))
	for ch := range b.channels[resellerID] {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()
	for _, ch := range targets {
		if !ch.Send(message) {
			log.Debugf("push: dropped %s event for reseller %d", event.Type, resellerID)
		}
	}
}

// Broadcast delivers the event to every open channel of every reseller.
func (b *Bus) Broadcast(event Event) {
	if b == nil {
		return
	}
	message, errMarshal := json.Marshal(event)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("push: marshal event failed")
		return
	}
	b.mu.RLock()
	targets := make([]Channel, 0)
	for _, set := range b.channels {
		for ch := range set {
			targets = append(targets, ch)
		}
	}
	b.mu.RUnlock()
	for _, ch := range targets {
		_ = ch.Send(message)
	}
}

// ChannelCount returns the number of open channels for the reseller.
func (b *Bus) ChannelCount(resellerID uint64) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[resellerID])
}
