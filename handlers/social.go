package handlers

import (
	"net/http"

	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/services"
)

// SocialHandler, takip ilişkisi endpoint'lerini yönetir.
type SocialHandler struct {
	socialService services.SocialService
}

// NewSocialHandler, constructor.
func NewSocialHandler(socialService services.SocialService) *SocialHandler {
	return &SocialHandler{socialService: socialService}
}

// SendRequest godoc
// POST /api/follows/{userId}
func (h *SocialHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	followeeID := r.PathValue("userId")
	if followeeID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	follow, err := h.socialService.SendFollowRequest(r.Context(), identity.UserID, followeeID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, follow)
}

// AcceptRequest godoc
// POST /api/follows/requests/{id}/accept
func (h *SocialHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	requestID := r.PathValue("id")
	if requestID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "id is required")
		return
	}

	follow, err := h.socialService.AcceptRequest(r.Context(), identity.UserID, requestID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, follow)
}

// DeclineRequest godoc
// DELETE /api/follows/requests/{id}
// Hem gelen isteği reddetme hem gönderilen isteği iptal etme için kullanılır.
func (h *SocialHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	requestID := r.PathValue("id")
	if requestID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.socialService.DeclineRequest(r.Context(), identity.UserID, requestID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "follow request removed"})
}

// Unfollow godoc
// DELETE /api/follows/{userId}
func (h *SocialHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	followeeID := r.PathValue("userId")
	if followeeID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.socialService.Unfollow(r.Context(), identity.UserID, followeeID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "unfollowed"})
}

// ListRequests godoc
// GET /api/follows/requests
// Hem gelen hem giden bekleyen istekleri döner.
func (h *SocialHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	requests, err := h.socialService.ListRequests(r.Context(), identity.UserID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, requests)
}
