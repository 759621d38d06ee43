package handlers

import (
	"net/http"

	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/services"
)

// maxMultipartMemory: multipart parse sırasında bellekte tutulan üst sınır.
// Aşan kısım geçici dosyaya taşar.
const maxMultipartMemory = 10 << 20 // 10MB

// UploadHandler, avatar yükleme endpoint'ini yönetir.
type UploadHandler struct {
	uploadService services.UploadService
}

// NewUploadHandler, constructor.
func NewUploadHandler(uploadService services.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadAvatar godoc
// POST /api/users/me/avatar
// Content-Type: multipart/form-data, field adı "file".
func (h *UploadHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	url, err := h.uploadService.UploadAvatar(r.Context(), identity.UserID, file, header)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}
