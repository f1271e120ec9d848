package keys

import "github.com/keymint-app/keymint/internal/models"

// Actor is the capability view of whoever requests a key operation.
// Authorization checks the capability, never the caller's session shape.
type Actor interface {
	// CanRevokeKey reports whether the actor may revoke the key.
	CanRevokeKey(key *models.Key) bool
}

// AdminActor acts with administrative capability over every key.
type AdminActor struct {
	AdminID uint64
}

// CanRevokeKey always allows admins.
func (a AdminActor) CanRevokeKey(*models.Key) bool { return true }

// ResellerActor acts with reseller capability over its own keys only.
type ResellerActor struct {
	ResellerID uint64
}

// CanRevokeKey allows resellers to revoke keys they own.
func (a ResellerActor) CanRevokeKey(key *models.Key) bool {
	return key != nil && key.ResellerID == a.ResellerID
}
