package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"gorm.io/gorm"
)

type captureChannel struct {
	messages [][]byte
}

func (c *captureChannel) Send(message []byte) bool {
	c.messages = append(c.messages, message)
	return true
}

func openAdminTestDB(t *testing.T) *gorm.DB {
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

func TestCreateAnnouncement_BroadcastsMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := openAdminTestDB(t)
	bus := push.NewBus()
	channel := &captureChannel{}
	bus.Register(1, channel)

	engine := gin.New()
	engine.Use(func(c *gin.Context) { c.Set("adminID", uint64(1)) })
	engine.POST("/v0/admin/announcements", NewAnnouncementHandler(conn, bus).Create)

	body, errMarshal := json.Marshal(map[string]string{
		"title":   "Maintenance",
		"message": "Servers restart at midnight UTC",
	})
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, "/v0/admin/announcements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var stored models.Announcement
	if errFind := conn.First(&stored).Error; errFind != nil {
		t.Fatalf("find announcement: %v", errFind)
	}
	if stored.Message != "Servers restart at midnight UTC" {
		t.Fatalf("expected stored message, got %q", stored.Message)
	}

	if len(channel.messages) != 1 {
		t.Fatalf("expected 1 broadcast message, got %d", len(channel.messages))
	}
	var event struct {
		Type    string `json:"type"`
		Payload struct {
			Message string `json:"message"`
		} `json:"payload"`
	}
	if errDecode := json.Unmarshal(channel.messages[0], &event); errDecode != nil {
		t.Fatalf("decode event: %v", errDecode)
	}
	if event.Type != push.EventOnlineUpdatePosted {
		t.Fatalf("expected %s event, got %q", push.EventOnlineUpdatePosted, event.Type)
	}
	if event.Payload.Message != "Servers restart at midnight UTC" {
		t.Fatalf("expected announcement body in event payload, got %q", event.Payload.Message)
	}
}
