package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/kiosk/internal/loop"
	"github.com/your-org/kiosk/internal/storage"
	"github.com/your-org/kiosk/pkg/dto"
)

// StatusProvider exposes the recognition loop's last observed state.
type StatusProvider interface {
	StatusSnapshot() loop.Status
}

// KioskHandler serves the read-only operator surface: loop status and the
// recorded time-entry history with evidence photos.
type KioskHandler struct {
	db     *storage.PostgresStore
	photos *storage.PhotoStore
	status StatusProvider
}

func NewKioskHandler(db *storage.PostgresStore, photos *storage.PhotoStore, status StatusProvider) *KioskHandler {
	return &KioskHandler{db: db, photos: photos, status: status}
}

func (h *KioskHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.StatusSnapshot())
}

func (h *KioskHandler) ListEntries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.db.RecentEntries(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entries"})
		return
	}

	out := make([]dto.EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.EntryResponse{
			ID:         e.ID,
			PersonID:   e.PersonID,
			FirstName:  e.FirstName,
			LastName:   e.LastName,
			Action:     string(e.Action),
			ActionTime: e.ActionTime,
			PhotoURL:   fmt.Sprintf("/v1/entries/%d/photo", e.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

func (h *KioskHandler) EntryPhoto(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	key, err := h.db.GetEntryPhotoKey(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entry"})
		return
	}
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	data, err := h.photos.GetPhoto(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load photo"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}
