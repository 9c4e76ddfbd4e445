package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Metzpapa/bleai/internal/task"
)

// handleListTasks serves the task catalog, ordered by title.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		s.internalError(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// handleCreateTask accepts an authored task definition as JSON.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task JSON: "+err.Error())
		return
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.tasks.Add(r.Context(), t)
	switch {
	case errors.Is(err, task.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.internalError(w, "create task", err)
	default:
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.internalError(w, "get task", err)
	default:
		writeJSON(w, http.StatusOK, t)
	}
}

// handleUpdateTask replaces a task. The id in the path wins over any id in
// the body.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task JSON: "+err.Error())
		return
	}
	t.ID = r.PathValue("id")
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.tasks.Update(r.Context(), t); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			s.internalError(w, "update task", err)
		}
		return
	}

	updated, err := s.tasks.Get(r.Context(), t.ID)
	if err != nil {
		s.internalError(w, "reload task", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRemoveTask(w http.ResponseWriter, r *http.Request) {
	err := s.tasks.Remove(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.internalError(w, "remove task", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
