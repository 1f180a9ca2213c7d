package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/asemyonov/jarvis/internal/store"
)

// maxFileSize bounds uploaded project files (1 MiB of text is plenty for
// prompts and notes).
const maxFileSize = 1 << 20

// handleListFiles returns a project's file metadata, without content.
func (r *Router) handleListFiles(w http.ResponseWriter, req *http.Request) {
	files, err := r.store.ListFiles(req.Context(), req.PathValue("id"))
	if err != nil {
		r.logger.Printf("files: list failed: %v", err)
		captureError(req, err, "failed to list files")
		http.Error(w, `{"error": "failed to list files"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// handleSaveFile uploads or replaces a file in a project.
func (r *Router) handleSaveFile(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name        string `json:"name"`
		ContentType string `json:"content_type"`
		Content     string `json:"content"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxFileSize*2)).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		http.Error(w, `{"error": "name is required"}`, http.StatusBadRequest)
		return
	}
	if len(body.Content) > maxFileSize {
		http.Error(w, `{"error": "file too large"}`, http.StatusRequestEntityTooLarge)
		return
	}
	if body.ContentType == "" {
		body.ContentType = "text/plain"
	}

	file, err := r.store.SaveFile(req.Context(), uuid.NewString(), req.PathValue("id"),
		body.Name, body.ContentType, []byte(body.Content))
	if err != nil {
		r.logger.Printf("files: save failed: %v", err)
		captureError(req, err, "failed to save file")
		http.Error(w, `{"error": "failed to save file"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

// handleGetFile serves a file's raw content.
func (r *Router) handleGetFile(w http.ResponseWriter, req *http.Request) {
	file, content, err := r.store.GetFileContent(req.Context(), req.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error": "file not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("files: get failed: %v", err)
		captureError(req, err, "failed to get file")
		http.Error(w, `{"error": "failed to get file"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
