package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/services"
)

// ProfileHandler, profil çözümleme endpoint'lerini yönetir.
type ProfileHandler struct {
	profileService services.ProfileService
}

// NewProfileHandler, constructor.
func NewProfileHandler(profileService services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetProfile godoc
// GET /api/profiles/{userId}
//
// Profil bulunamazsa 404 yerine placeholder döner — UI "kim bu?"
// sorusuna her zaman gösterilebilir bir cevap alır.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	profile, ok := h.profileService.GetProfile(r.Context(), userID)
	if !ok {
		pkg.JSON(w, http.StatusOK, map[string]any{
			"id":           userID,
			"display_name": h.profileService.GetDisplayName(r.Context(), userID),
			"resolved":     false,
		})
		return
	}

	pkg.JSON(w, http.StatusOK, profile)
}

// BatchProfiles godoc
// POST /api/profiles/batch
// Body: { "ids": ["a", "b", ...] }
//
// Mesaj listesi gibi ekranların tek istekte tüm görünen profilleri
// çekmesi için. Çözülemeyen id'ler response map'inde yer almaz.
func (h *ProfileHandler) BatchProfiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.IDs) == 0 {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "ids is required")
		return
	}
	if len(req.IDs) > 200 {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "too many ids (max 200)")
		return
	}

	profiles := h.profileService.GetMany(r.Context(), req.IDs)
	pkg.JSON(w, http.StatusOK, profiles)
}
