package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/services"
)

// defaultFeedLimit: limit parametresi verilmediğinde dönen aktivite sayısı.
const defaultFeedLimit = 50

// ActivityHandler, set aktivite akışı endpoint'lerini yönetir.
type ActivityHandler struct {
	activityService services.ActivityService
}

// NewActivityHandler, constructor.
func NewActivityHandler(activityService services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// GetFeed godoc
// GET /api/activities?limit=50
func (h *ActivityHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	feed, err := h.activityService.Feed(r.Context(), limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, feed)
}

// PostActivity godoc
// POST /api/activities
// Body: { "verb": "wrapped", "subject": "Gece çekimi — 14. gün" }
func (h *ActivityHandler) PostActivity(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	var req models.PostActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	activity, err := h.activityService.Post(r.Context(), identity.UserID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, activity)
}
