package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"

	"dev/bravebird/airline-entry/pkg/config"
	"dev/bravebird/airline-entry/pkg/models"
	"dev/bravebird/airline-entry/pkg/temporal/workflows"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	pollInterval     = 500 * time.Millisecond
)

// RunStore is the persistence the handlers need. *database.DB implements it.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.Run) error
	SetTemporalIDs(ctx context.Context, id, workflowID, runID string) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
}

// Handlers contains API handlers
type Handlers struct {
	store          RunStore
	temporalClient client.Client
	cfg            *config.Config
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers. store may be nil.
func NewHandlers(store RunStore, temporalClient client.Client, cfg *config.Config) *Handlers {
	return &Handlers{
		store:          store,
		temporalClient: temporalClient,
		cfg:            cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WorkflowID returns the Temporal workflow id serving run id
func WorkflowID(runID string) string {
	return "airline-entry-" + runID
}

// ==================== Run Handlers ====================

// StartRun starts an entry workflow
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	input := h.cfg.EntryInput(runID)
	input.Params = input.Params.Merge(req.Params)
	input.Output.Dir = filepath.Join(h.cfg.Output.Dir, runID)
	if req.Headless != nil {
		input.Browser.Headless = *req.Headless
	}

	if h.store != nil {
		paramsJSON, _ := json.Marshal(input.Params)
		run := &models.Run{
			ID:             runID,
			Status:         models.StatusPending,
			ParametersJSON: string(paramsJSON),
		}
		if err := h.store.CreateRun(ctx, run); err != nil {
			http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        WorkflowID(runID),
		TaskQueue: config.TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, "EntryWorkflow", input)
	if err != nil {
		if h.store != nil {
			if dbErr := h.store.UpdateRunStatus(ctx, runID, models.StatusFailed, err.Error()); dbErr != nil {
				log.Printf("Failed to mark run %s as failed: %v", runID, dbErr)
			}
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.store != nil {
		if err := h.store.SetTemporalIDs(ctx, runID, we.GetID(), we.GetRunID()); err != nil {
			log.Printf("Failed to store workflow ids for run %s: %v", runID, err)
		}
	}

	respondJSON(w, models.StartRunResponse{
		RunID:              runID,
		TemporalWorkflowID: we.GetID(),
		TemporalRunID:      we.GetRunID(),
		Status:             models.StatusRunning,
	})
}

// ListRuns lists the most recent runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, runs)
}

// GetRun retrieves a run. Without a database the workflow is queried directly.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		progress, err := h.queryProgress(ctx, id)
		if err != nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		respondJSON(w, runFromProgress(progress))
		return
	}

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	// Phases are only stored at the end, ask the workflow while it is running
	if !run.Status.Terminal() {
		if progress, err := h.queryProgress(ctx, id); err == nil {
			run.Phases = progress.Phases
		}
	}

	respondJSON(w, run)
}

// CancelRun cancels a running workflow
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	workflowID, temporalRunID := WorkflowID(id), ""
	if h.store != nil {
		run, err := h.store.GetRun(ctx, id)
		if err != nil || run == nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if run.Status.Terminal() {
			http.Error(w, "Run already finished", http.StatusConflict)
			return
		}
		if run.TemporalWorkflowID != "" {
			workflowID, temporalRunID = run.TemporalWorkflowID, run.TemporalRunID
		}
	}

	if err := h.temporalClient.CancelWorkflow(ctx, workflowID, temporalRunID); err != nil {
		http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.store != nil {
		if err := h.store.UpdateRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user"); err != nil {
			log.Printf("Failed to mark run %s as canceled: %v", id, err)
		}
	}

	respondJSON(w, map[string]string{"status": string(models.StatusCanceled)})
}

// StreamRunUpdates streams run updates via WebSocket
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The server never cancels a hijacked request, so watch for the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastStatus models.RunStatus
	lastPhaseCount := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update, ok := h.currentUpdate(ctx, runID)
			if !ok {
				continue
			}

			if update.Status == lastStatus && len(update.Phases) == lastPhaseCount {
				continue
			}

			msg := models.WSMessage{Type: "run_update", Payload: update}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

			lastStatus = update.Status
			lastPhaseCount = len(update.Phases)

			if update.Status.Terminal() {
				return
			}
		}
	}
}

// currentUpdate prefers the live workflow state and falls back to the database
func (h *Handlers) currentUpdate(ctx context.Context, runID string) (models.RunUpdate, bool) {
	if progress, err := h.queryProgress(ctx, runID); err == nil {
		return models.RunUpdate{RunID: runID, Status: progress.Status, Phases: progress.Phases}, true
	}

	if h.store == nil {
		return models.RunUpdate{}, false
	}
	run, err := h.store.GetRun(ctx, runID)
	if err != nil || run == nil {
		return models.RunUpdate{}, false
	}
	return models.RunUpdate{RunID: runID, Status: run.Status, Phases: run.Phases}, true
}

func (h *Handlers) queryProgress(ctx context.Context, runID string) (models.RunResult, error) {
	var result models.RunResult
	if h.temporalClient == nil {
		return result, errors.New("temporal client not available")
	}

	resp, err := h.temporalClient.QueryWorkflow(ctx, WorkflowID(runID), "", workflows.ProgressQuery)
	if err != nil {
		return result, err
	}
	err = resp.Get(&result)
	return result, err
}

func runFromProgress(progress models.RunResult) models.Run {
	run := models.Run{
		ID:                 progress.RunID,
		TemporalWorkflowID: WorkflowID(progress.RunID),
		Status:             progress.Status,
		ErrorMessage:       progress.ErrorMessage,
		Phases:             progress.Phases,
	}
	if progress.Snapshot != nil {
		run.ScreenshotPath = progress.Snapshot.ScreenshotPath
		run.HTMLPath = progress.Snapshot.HTMLPath
	}
	return run
}

// ==================== Artifact Handlers ====================

// ServeArtifact serves the screenshot or the HTML captured by a run
func (h *Handlers) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, kind := vars["id"], vars["kind"]

	var ext, contentType string
	switch kind {
	case "screenshot":
		ext, contentType = ".png", "image/png"
	case "html":
		ext, contentType = ".html", "text/html; charset=utf-8"
	default:
		http.Error(w, "Unknown artifact kind", http.StatusBadRequest)
		return
	}

	// Security: run ids never contain path elements
	if id != filepath.Base(id) || id == ".." {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	filePath := filepath.Join(h.cfg.Output.Dir, id, h.cfg.Output.BaseName+ext)
	if h.store != nil {
		if run, err := h.store.GetRun(r.Context(), id); err == nil && run != nil {
			if kind == "screenshot" && run.ScreenshotPath != "" {
				filePath = run.ScreenshotPath
			}
			if kind == "html" && run.HTMLPath != "" {
				filePath = run.HTMLPath
			}
		}
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Artifact not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
