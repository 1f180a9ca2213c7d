package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/asemyonov/jarvis/internal/store"
)

// handleListProjects returns all projects, newest first.
func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) {
	projects, err := r.store.ListProjects(req.Context())
	if err != nil {
		r.logger.Printf("projects: list failed: %v", err)
		captureError(req, err, "failed to list projects")
		http.Error(w, `{"error": "failed to list projects"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleCreateProject creates a project.
func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		http.Error(w, `{"error": "name is required"}`, http.StatusBadRequest)
		return
	}

	project, err := r.store.CreateProject(req.Context(), uuid.NewString(), body.Name, body.Description)
	if err != nil {
		r.logger.Printf("projects: create failed: %v", err)
		captureError(req, err, "failed to create project")
		http.Error(w, `{"error": "failed to create project"}`, http.StatusInternalServerError)
		return
	}

	r.discord.NotifyNewProject(req.Context(), project.ID, project.Name)
	writeJSON(w, http.StatusCreated, project)
}

// handleGetProject returns one project by ID.
func (r *Router) handleGetProject(w http.ResponseWriter, req *http.Request) {
	project, err := r.store.GetProject(req.Context(), req.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error": "project not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("projects: get failed: %v", err)
		captureError(req, err, "failed to get project")
		http.Error(w, `{"error": "failed to get project"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleUpdateProject renames a project or changes its description.
func (r *Router) handleUpdateProject(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		http.Error(w, `{"error": "name is required"}`, http.StatusBadRequest)
		return
	}

	if err := r.store.UpdateProject(req.Context(), req.PathValue("id"), body.Name, body.Description); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error": "project not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("projects: update failed: %v", err)
		captureError(req, err, "failed to update project")
		http.Error(w, `{"error": "failed to update project"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDeleteProject removes a project and its conversation state.
func (r *Router) handleDeleteProject(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.store.DeleteProject(req.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error": "project not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("projects: delete failed: %v", err)
		captureError(req, err, "failed to delete project")
		http.Error(w, `{"error": "failed to delete project"}`, http.StatusInternalServerError)
		return
	}

	r.conversations.Remove(id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
