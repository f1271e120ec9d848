package voucher

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/keymint-app/keymint/internal/models"
	"github.com/shopspring/decimal"
)

func sampleKeys(n int) []models.Key {
	keys := make([]models.Key, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, models.Key{
			KeyString:   fmt.Sprintf("PUBG-SAMPLE%08d", i),
			Game:        models.GamePUBGMobile,
			DeviceLimit: 2,
			ExpiresAt:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			CreditCost:  decimal.RequireFromString("3"),
		})
	}
	return keys
}

func TestGeneratePDF_ProducesDocument(t *testing.T) {
	pdf, err := GeneratePDF("KeyMint", sampleKeys(3))
	if err != nil {
		t.Fatalf("GeneratePDF: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("expected PDF header, got %q", pdf[:8])
	}
}

func TestGeneratePDF_MultiPageBatch(t *testing.T) {
	// 25 cards at 10 per page spans 3 pages.
	pdf, err := GeneratePDF("KeyMint", sampleKeys(25))
	if err != nil {
		t.Fatalf("GeneratePDF: %v", err)
	}
	if count := bytes.Count(pdf, []byte("/Type /Page")); count < 3 {
		t.Fatalf("expected at least 3 page objects, got %d", count)
	}
}

func TestGeneratePDF_EmptyBatchRejected(t *testing.T) {
	if _, err := GeneratePDF("KeyMint", nil); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}
