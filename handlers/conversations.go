package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/services"
)

// ConversationHandler, direkt mesajlaşma endpoint'lerini yönetir.
type ConversationHandler struct {
	conversationService services.ConversationService
}

// NewConversationHandler, constructor.
func NewConversationHandler(conversationService services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// ListSummaries godoc
// GET /api/conversations
func (h *ConversationHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	summaries, err := h.conversationService.Summaries(r.Context(), identity.UserID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, summaries)
}

// GetMessages godoc
// GET /api/conversations/{userId}/messages
func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	peerID := r.PathValue("userId")
	if peerID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	messages, err := h.conversationService.Messages(r.Context(), identity.UserID, peerID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, messages)
}

// SendMessage godoc
// POST /api/conversations/{userId}/messages
// Body: { "content": "..." }
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	peerID := r.PathValue("userId")
	if peerID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RecipientID = peerID

	message, err := h.conversationService.Send(r.Context(), identity.UserID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, message)
}

// MarkRead godoc
// POST /api/conversations/{userId}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	peerID := r.PathValue("userId")
	if peerID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.conversationService.MarkRead(r.Context(), identity.UserID, peerID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

// GetUnreadCount godoc
// GET /api/conversations/{userId}/unread
func (h *ConversationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	peerID := r.PathValue("userId")
	if peerID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	count, err := h.conversationService.UnreadCount(r.Context(), identity.UserID, peerID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]int{"unread": count})
}
