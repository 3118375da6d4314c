package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marvinalivio/p4-backend/internal/services"
	"go.uber.org/zap"
)

const (
	maxAssetBytes      = 10 << 20
	maxMultipartMemory = 1 << 20
	formFieldFile      = "file"
	sniffLen           = 512
)

var errFileTooLarge = errors.New("file exceeds the upload limit")

// AssetHandler accepts image uploads for profile photos and portfolio
// items.
type AssetHandler struct {
	assets *services.AssetService
	logger *zap.Logger
}

func NewAssetHandler(assets *services.AssetService, logger *zap.Logger) *AssetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetHandler{assets: assets, logger: logger}
}

type DeleteAssetResponse struct {
	Message string `json:"message"`
}

// AssetRouter registers upload routes on the given router.
func AssetRouter(r chi.Router, h *AssetHandler) {
	r.Post("/assets/{id}", h.Upload)
	r.Get("/assets/users/*", h.Serve)
	r.Delete("/assets/users/{id}/{name}", h.Delete)
}

// Upload stores the multipart "file" field and returns its key and URL.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Allow some room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxAssetBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errFileTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, maxAssetBytes)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	asset, err := h.assets.Upload(r.Context(), chi.URLParam(r, "id"), services.AssetUpload{
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

// Serve streams a stored asset back to the client.
func (h *AssetHandler) Serve(w http.ResponseWriter, r *http.Request) {
	obj, err := h.assets.Open(r.Context(), "users/"+chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer obj.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(obj, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		writeServiceError(w, r, h.logger, fmt.Errorf("read asset: %w", err))
		return
	}
	head = head[:n]

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warn("asset stream interrupted", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

// Delete removes one of the user's assets.
func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.assets.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteAssetResponse{Message: "asset deleted"})
}

func readFileLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}
