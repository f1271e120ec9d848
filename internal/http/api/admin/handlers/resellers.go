package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbutil "github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/ledger"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"github.com/keymint-app/keymint/internal/security"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ResellerHandler manages reseller account endpoints.
type ResellerHandler struct {
	db  *gorm.DB
	bus *push.Bus
}

// NewResellerHandler constructs a ResellerHandler.
func NewResellerHandler(db *gorm.DB, bus *push.Bus) *ResellerHandler {
	return &ResellerHandler{db: db, bus: bus}
}

// List returns resellers with optional filters.
func (h *ResellerHandler) List(c *gin.Context) {
	var (
		usernameQ = strings.TrimSpace(c.Query("username"))
		idQ       = strings.TrimSpace(c.Query("id"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Reseller{})
	if usernameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+usernameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "username"), pattern)
	}
	if idQ != "" {
		if id, errParse := strconv.ParseUint(idQ, 10, 64); errParse == nil {
			q = q.Where("id = ?", id)
		}
	}

	var rows []models.Reseller
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list resellers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatReseller(&row))
	}
	c.JSON(http.StatusOK, gin.H{"resellers": out})
}

// Get returns a reseller by ID.
func (h *ResellerHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var reseller models.Reseller
	if errFind := h.db.WithContext(c.Request.Context()).First(&reseller, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatReseller(&reseller))
}

// Disable deactivates a reseller account.
func (h *ResellerHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// Enable reactivates a reseller account.
func (h *ResellerHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

func (h *ResellerHandler) setActive(c *gin.Context, active bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Reseller{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// changeResellerPasswordRequest defines the request body for password changes.
type changeResellerPasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword updates a reseller's password.
func (h *ResellerHandler) ChangePassword(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body changeResellerPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Reseller{}).
		Where("id = ?", id).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// adjustCreditRequest defines the request body for manual credit adjustments.
type adjustCreditRequest struct {
	Amount decimal.Decimal `json:"amount"` // Positive grants, negative deducts.
	Note   string          `json:"note"`
}

// AdjustCredit applies a manual balance adjustment through the ledger.
// Deductions that would take the balance negative are rejected.
func (h *ResellerHandler) AdjustCredit(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body adjustCreditRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be non-zero"})
		return
	}

	refID := "adjust-" + strconv.FormatUint(GetAdminID(c), 10) + "-" + strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	var balanceAfter decimal.Decimal
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var errApply error
		if body.Amount.Sign() > 0 {
			balanceAfter, errApply = ledger.Credit(tx, id, body.Amount, models.CreditEntryAdminAdjust, refID, body.Note)
		} else {
			balanceAfter, errApply = ledger.Debit(tx, id, body.Amount.Neg(), models.CreditEntryAdminAdjust, refID, body.Note)
		}
		return errApply
	})
	if errTx != nil {
		switch {
		case errors.Is(errTx, ledger.ErrResellerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errTx, ledger.ErrInsufficientCredit):
			c.JSON(http.StatusBadRequest, gin.H{"error": "InsufficientCredit"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "adjust credit failed"})
		}
		return
	}

	if h.bus != nil {
		h.bus.Publish(id, push.CreditBalanceChanged(balanceAfter))
	}
	c.JSON(http.StatusOK, gin.H{"balance": balanceAfter})
}

// Journal returns the credit journal for a reseller, newest first.
func (h *ResellerHandler) Journal(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var rows []models.CreditEntry
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("reseller_id = ?", id).
		Order("id DESC").
		Limit(200).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list journal failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":            row.ID,
			"kind":          row.Kind,
			"amount":        row.Amount,
			"balance_after": row.BalanceAfter,
			"ref_id":        row.RefID,
			"note":          row.Note,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// formatReseller formats a reseller row into response JSON.
func (h *ResellerHandler) formatReseller(reseller *models.Reseller) gin.H {
	return gin.H{
		"id":         reseller.ID,
		"username":   reseller.Username,
		"credits":    reseller.Credits,
		"rate_limit": reseller.RateLimit,
		"active":     reseller.Active,
		"created_at": reseller.CreatedAt,
		"updated_at": reseller.UpdatedAt,
	}
}
