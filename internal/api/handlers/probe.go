package handlers

import (
	"net/http"

	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/protocol"
)

// ProbeHandler serves line-protocol requests over plain HTTP.
type ProbeHandler struct {
	dispatcher *protocol.Dispatcher
	logger     *logging.Logger
}

// NewProbeHandler creates a new probe handler.
func NewProbeHandler(dispatcher *protocol.Dispatcher, logger *logging.Logger) *ProbeHandler {
	return &ProbeHandler{
		dispatcher: dispatcher,
		logger:     logger.WithFields("handler", "probe"),
	}
}

// Probe handles one protocol request.
// @Summary Run a protocol request
// @Description Dispatches a metadata, help or run request. Run probes the targets with the given flags.
// @Tags Probe
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body protocol.Request true "Protocol request"
// @Success 200 {object} protocol.Response
// @Failure 400 {object} protocol.Response
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 502 {object} protocol.Response
// @Failure 504 {object} protocol.Response
// @Router /probe [post]
func (h *ProbeHandler) Probe(w http.ResponseWriter, r *http.Request) {
	var req protocol.Request
	if err := parseJSON(r, &req); err != nil {
		writeJSON(w, r, h.logger, http.StatusBadRequest, protocol.Failure("Invalid request: "+err.Error()))
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), req)
	writeJSON(w, r, h.logger, statusForError(err), resp)
}
