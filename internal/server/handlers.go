package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/history"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"mode":   string(s.interp.Mode()),
	})
}

// runStep executes one device operation as a single-step plan.
func (s *Server) runStep(r *http.Request, step schemas.ActionStep) schemas.ExecutionResult {
	ctx, cancel := context.WithTimeout(r.Context(), s.taskTimeout)
	defer cancel()
	return s.interp.ExecutePlan(ctx, schemas.ActionPlan{step}, nil)
}

func (s *Server) handleScreenCapture(w http.ResponseWriter, r *http.Request) {
	result := s.runStep(r, schemas.ActionStep{Kind: schemas.StepCaptureScreen})
	if !result.Success {
		s.writeError(w, http.StatusInternalServerError, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"image":   result.Outcomes[0].Data,
	})
}

func (s *Server) handleScreenText(w http.ResponseWriter, r *http.Request) {
	result := s.runStep(r, schemas.ActionStep{Kind: schemas.StepReadScreenText})
	if !result.Success {
		s.writeError(w, http.StatusInternalServerError, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"text":    result.Outcomes[0].Data,
	})
}

func (s *Server) handleMouseMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	step := schemas.ActionStep{Kind: schemas.StepMoveMouse, X: req.X, Y: req.Y}
	if err := step.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.runStep(r, step)
	if !result.Success {
		s.writeError(w, http.StatusInternalServerError, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMouseClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X      *int   `json:"x"`
		Y      *int   `json:"y"`
		Button string `json:"button"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	button := schemas.MouseButton(req.Button)
	if button == "" {
		button = schemas.ButtonLeft
	}

	step := schemas.ActionStep{Kind: schemas.StepClick, X: req.X, Y: req.Y, Button: button}
	if err := step.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result := s.runStep(r, step)
	if !result.Success {
		s.writeError(w, http.StatusInternalServerError, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleKeyboardType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "missing text")
		return
	}

	result := s.runStep(r, schemas.ActionStep{Kind: schemas.StepTypeText, Text: req.Text})
	if !result.Success {
		s.writeError(w, http.StatusInternalServerError, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleKeyboardHotkey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Keys) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid or missing keys")
		return
	}

	result := s.runStep(r, schemas.ActionStep{Kind: schemas.StepHotkey, Keys: req.Keys})
	if !result.Success {
		s.writeError(w, http.StatusInternalServerError, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAppOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppName string `json:"app_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppName == "" {
		s.writeError(w, http.StatusBadRequest, "missing application name")
		return
	}

	result := s.runStep(r, schemas.ActionStep{Kind: schemas.StepOpenApp, App: req.AppName})
	if !result.Success {
		s.writeError(w, http.StatusInternalServerError, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": result.Outcomes[0].Data,
	})
}

// taskResponse is the wire shape for one executed task.
type taskResponse struct {
	Success  bool                  `json:"success"`
	TaskID   string                `json:"task_id"`
	Mode     string                `json:"mode"`
	Summary  string                `json:"summary"`
	Outcomes []schemas.StepOutcome `json:"outcomes,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) handleTaskExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Task == "" {
		s.writeError(w, http.StatusBadRequest, "missing task description")
		return
	}

	taskID := uuid.NewString()
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), s.taskTimeout)
	defer cancel()
	result := s.interp.Execute(ctx, req.Task, nil)

	s.persistRecord(taskID, req.Task, result, started, time.Now())

	resp := taskResponse{
		Success:  result.Success,
		TaskID:   taskID,
		Mode:     string(s.interp.Mode()),
		Summary:  result.Summary,
		Outcomes: result.Outcomes,
	}
	status := http.StatusOK
	if !result.Success {
		resp.Error = result.Summary
		// No outcomes means the task never reached a device: the text itself
		// was rejected.
		if len(result.Outcomes) == 0 {
			status = http.StatusBadRequest
		} else {
			status = http.StatusInternalServerError
		}
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "task history is disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := s.history.ListRecords(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list task history", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list task history")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "tasks": records})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "task history is disabled")
		return
	}
	taskID := chi.URLParam(r, "taskID")

	rec, err := s.history.GetRecord(r.Context(), taskID)
	if errors.Is(err, history.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load task record", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load task record")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": rec})
}

// persistRecord writes an execution trace when history is enabled. Failures
// are logged, never surfaced: persistence is diagnostic, not correctness.
func (s *Server) persistRecord(taskID, text string, result schemas.ExecutionResult, started, finished time.Time) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := schemas.TaskRecord{
		TaskID:     taskID,
		Text:       text,
		Mode:       string(s.interp.Mode()),
		Success:    result.Success,
		Summary:    result.Summary,
		Outcomes:   result.Outcomes,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err := s.history.SaveRecord(ctx, rec); err != nil {
		s.logger.Warn("failed to persist task record",
			zap.String("task_id", taskID), zap.Error(err))
	}
}
