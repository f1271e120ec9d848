package settings

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
)

// snapshot holds the in-memory copy of the settings table. Readers never
// touch the database; Reload replaces the whole map on every settings write.
var (
	snapshotMu sync.RWMutex
	snapshot   = map[string]json.RawMessage{}
)

// Reload replaces the settings snapshot from the database.
func Reload(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("settings: nil connection")
	}
	var rows []models.Setting
	if errFind := conn.Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}
	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		value := make(json.RawMessage, len(row.Value))
		copy(value, row.Value)
		next[row.Key] = value
	}
	snapshotMu.Lock()
	snapshot = next
	snapshotMu.Unlock()
	return nil
}

// DBConfigValue returns the raw JSON value for a settings key from the snapshot.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snapshotMu.RLock()
	value, ok := snapshot[key]
	snapshotMu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out, true
}

// SiteName returns the configured site name, falling back to the default.
func SiteName() string {
	raw, ok := DBConfigValue(SiteNameKey)
	if !ok {
		return DefaultSiteName
	}
	var name string
	if errUnmarshal := json.Unmarshal(raw, &name); errUnmarshal != nil {
		return DefaultSiteName
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultSiteName
	}
	return name
}

// ReplaceSnapshot swaps the snapshot directly. Used by tests.
func ReplaceSnapshot(values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		copied := make(json.RawMessage, len(value))
		copy(copied, value)
		next[key] = copied
	}
	snapshotMu.Lock()
	snapshot = next
	snapshotMu.Unlock()
}
