package handlers

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// multipart parts above this size are spooled to temp files
const multipartMemory = 10 << 20

type uploadResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

type imagesResponse struct {
	Success bool     `json:"success"`
	Images  []string `json:"images"`
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.Warnf("unable to parse upload form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "No file uploaded"})
		return
	}
	defer file.Close()

	path, err := h.images.Save(r.Context(), file)
	if err != nil {
		log.WithError(err).Errorf("failed to store upload %q", header.Filename)
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Error: "Failed to store image"})
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Path: path})
}

func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.images.List(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to list images")
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Error: "Failed to read images"})
		return
	}
	writeJSON(w, http.StatusOK, imagesResponse{Success: true, Images: images})
}
