package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/registry"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const maxBodyBytes = 64 << 10

// SyncHandler serves the session endpoint of the reconciliation protocol.
//
// Every request is a POST whose JSON body names an action. Session references are parsed once
// into a [models.LookupKey]; six characters mean a join code, anything else a full id.
type SyncHandler struct {
	registry *registry.Registry
	logger   *log.Logger
}

// NewSyncHandler creates a handler over reg.
func NewSyncHandler(reg *registry.Registry, logger *log.Logger) *SyncHandler {
	return &SyncHandler{registry: reg, logger: shared.WithLogger(logger, "handler", "sync")}
}

// Routes returns the HTTP routes this handler serves.
func (h *SyncHandler) Routes() []string {
	return []string{"POST /api/sync/session"}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.SyncRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}

	var (
		resp any
		err  error
	)
	switch req.Action {
	case models.ActionCreate:
		resp, err = h.create(r, req)
	case models.ActionJoin:
		resp, err = h.join(r, req)
	case models.ActionUpdate:
		resp, err = h.update(r, req)
	case models.ActionGet:
		resp, err = h.get(r, req)
	case models.ActionLeave:
		resp, err = h.leave(r, req)
	default:
		err = shared.ErrInvalidAction
	}

	if err != nil {
		if status, _ := statusFor(err); status >= http.StatusInternalServerError {
			h.logger.Error("sync action failed", "action", req.Action, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) create(r *http.Request, _ models.SyncRequest) (any, error) {
	s, err := h.registry.Create(r.Context())
	if err != nil {
		return nil, err
	}
	return models.CreateResponse{SessionID: s.ID, Code: s.Code}, nil
}

func (h *SyncHandler) join(r *http.Request, req models.SyncRequest) (any, error) {
	s, err := h.resolve(r, req)
	if err != nil {
		return nil, err
	}

	if err := h.registry.AddDevice(r.Context(), s.ID, req.DeviceID, req.DeviceName, req.ProgressMs); err != nil {
		return nil, err
	}

	state, err := h.registry.State(r.Context(), models.IDKey(s.ID))
	if err != nil {
		return nil, err
	}
	return models.JoinResponse{Success: true, Session: *state}, nil
}

func (h *SyncHandler) update(r *http.Request, req models.SyncRequest) (any, error) {
	s, err := h.resolve(r, req)
	if err != nil {
		return nil, err
	}

	if err := h.registry.UpdateProgress(r.Context(), s.ID, req.DeviceID, req.ProgressMs, req.IsPlaying); err != nil {
		return nil, err
	}
	return models.SuccessResponse{Success: true}, nil
}

func (h *SyncHandler) get(r *http.Request, req models.SyncRequest) (any, error) {
	key, err := lookupKey(req)
	if err != nil {
		return nil, err
	}
	return h.registry.State(r.Context(), key)
}

func (h *SyncHandler) leave(r *http.Request, req models.SyncRequest) (any, error) {
	s, err := h.resolve(r, req)
	if err != nil {
		return nil, err
	}

	if err := h.registry.RemoveDevice(r.Context(), s.ID, req.DeviceID); err != nil {
		return nil, err
	}
	return models.SuccessResponse{Success: true}, nil
}

func (h *SyncHandler) resolve(r *http.Request, req models.SyncRequest) (*models.Session, error) {
	key, err := lookupKey(req)
	if err != nil {
		return nil, err
	}
	return h.registry.Resolve(r.Context(), key)
}

func lookupKey(req models.SyncRequest) (models.LookupKey, error) {
	key, err := models.ParseLookupKey(req.Key())
	if err != nil {
		return models.LookupKey{}, fmt.Errorf("%w: sessionId or code is required", shared.ErrInvalidInput)
	}
	return key, nil
}
