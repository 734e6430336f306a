package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/models"
)

// UpdateLocation records the user's reported coordinate and runs arrival
// detection on it. Malformed coordinates are rejected before reaching the
// core.
func (h *Handler) UpdateLocation(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	lat, latErr := strconv.ParseFloat(c.PostForm("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.PostForm("long"), 64)
	if latErr != nil || lonErr != nil {
		// Location services must be on.
		c.JSON(http.StatusBadRequest, gin.H{"error": "location required"})
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinate out of range"})
		return
	}

	updated, changed, err := h.Directory.UpdateLocation(user.ID, geo.Point{Lat: lat, Lon: lon})
	if err != nil {
		var ambiguous *models.AmbiguousRegionError
		if errors.As(err, &ambiguous) {
			// Data-integrity fault; surface loudly instead of picking a
			// region.
			c.JSON(http.StatusInternalServerError, gin.H{"error": ambiguous.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update location"})
		return
	}

	arrived, err := h.Sessions.CheckArrived(updated)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check arrival"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"update":  changed,
		"success": true,
		"arrived": arrived,
	})
}
