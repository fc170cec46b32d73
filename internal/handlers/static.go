package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HandleImage streams an item photo from storage for the review page.
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if fileID == "" {
		h.writeError(w, "Missing file ID", http.StatusBadRequest)
		return
	}

	body, contentType, err := h.runner.OpenImage(r.Context(), fileID)
	if err != nil {
		h.writeError(w, "Error fetching image: "+err.Error(), statusFor(err, http.StatusBadGateway))
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("Image stream interrupted", "file_id", fileID, "err", err)
	}
}

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	switch {
	case strings.HasSuffix(path, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(path, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(path, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, filepath.Join(h.staticDir, filepath.FromSlash(path)))
}
