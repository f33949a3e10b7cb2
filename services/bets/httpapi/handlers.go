// Package httpapi exposes the bets service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/lotterybets/internal/httputil"
	"github.com/R3E-Network/lotterybets/internal/middleware"
	"github.com/R3E-Network/lotterybets/pkg/logger"
	"github.com/R3E-Network/lotterybets/services/bets"
)

// DrawSource looks up official draws. contest 0 asks for the most recent one.
type DrawSource interface {
	Draw(ctx context.Context, modalityID string, contest int) (bets.DrawResult, error)
}

// Handler serves the bets API.
type Handler struct {
	svc   *bets.Service
	draws DrawSource
	log   *logger.Logger
}

// NewHandler creates a handler for svc. draws may be nil, which disables /draws.
func NewHandler(svc *bets.Service, draws DrawSource, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Handler{svc: svc, draws: draws, log: log}
}

// RegisterRoutes mounts the API on router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bets", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/bets", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/bets/stats", h.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/bets/reconcile", h.handleReconcileAll).Methods(http.MethodPost)
	router.HandleFunc("/bets/{id}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/bets/{id}/reconcile", h.handleReconcile).Methods(http.MethodPost)
	router.HandleFunc("/rules", h.handleRules).Methods(http.MethodGet)
	router.HandleFunc("/rules/{modality}", h.handleRule).Methods(http.MethodGet)
	router.HandleFunc("/validate", h.handleValidate).Methods(http.MethodPost)
	if h.draws != nil {
		router.HandleFunc("/draws/{modality}/latest", h.handleDraw).Methods(http.MethodGet)
		router.HandleFunc("/draws/{modality}/{contest:[0-9]+}", h.handleDraw).Methods(http.MethodGet)
	}
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// Bets
// =============================================================================

type submitResponse struct {
	bets.BatchReport
	Summary string `json:"summary"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req bets.SubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	req.OwnerID = id.UserID
	req.Creator = bets.Participant{Email: id.Email}

	report, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	switch {
	case report.Succeeded == 0:
		status = http.StatusInternalServerError
	case !report.Complete():
		status = http.StatusMultiStatus
	}
	httputil.WriteJSON(w, status, submitResponse{BatchReport: report, Summary: report.Summary()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	list, err := h.svc.List(r.Context(), id.UserID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []bets.BetSpec{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	bet, err := h.svc.Get(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bet)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// =============================================================================
// Reconciliation
// =============================================================================

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	outcome, err := h.svc.Reconcile(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

type batchItemResponse struct {
	BetID   string                `json:"bet_id"`
	Outcome *bets.Outcome         `json:"outcome,omitempty"`
	Error   *httputil.ErrorDetail `json:"error,omitempty"`
}

type reconcileAllResponse struct {
	Total      int                 `json:"total"`
	Reconciled int                 `json:"reconciled"`
	Items      []batchItemResponse `json:"items"`
}

func (h *Handler) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	items, err := h.svc.ReconcileOwner(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := reconcileAllResponse{Total: len(items), Items: make([]batchItemResponse, 0, len(items))}
	for _, item := range items {
		out := batchItemResponse{BetID: item.BetID, Outcome: item.Outcome}
		if item.Err != nil {
			out.Error = &httputil.ErrorDetail{Code: bets.Kind(item.Err), Message: item.Err.Error()}
		} else {
			resp.Reconciled++
		}
		resp.Items = append(resp.Items, out)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Rules and validation
// =============================================================================

func (h *Handler) handleRules(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.svc.Registry().Rules())
}

func (h *Handler) handleRule(w http.ResponseWriter, r *http.Request) {
	modality := mux.Vars(r)["modality"]
	rule, ok := h.svc.Registry().Lookup(modality)
	if !ok {
		httputil.NotFound(w, "unknown modality "+modality)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleDraw(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	modality := vars["modality"]
	rule, ok := h.svc.Registry().Lookup(modality)
	if !ok {
		httputil.NotFound(w, "unknown modality "+modality)
		return
	}

	contest := 0
	if raw, ok := vars["contest"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, r, fmt.Errorf("%w: %s", bets.ErrInvalidContest, raw))
			return
		}
		contest = n
	}

	result, err := h.draws.Draw(r.Context(), modality, contest)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, bets.CanonicalizeDraw(result, rule))
	case errors.Is(err, bets.ErrResultNotFound):
		httputil.NotFound(w, "no draw published for "+modality)
	case errors.Is(err, bets.ErrNotYetDrawn):
		h.writeError(w, r, err)
	case errors.Is(err, bets.ErrMalformedResult):
		h.writeError(w, r, fmt.Errorf("%w: %w", bets.ErrProviderUnavailable, err))
	default:
		h.writeError(w, r, fmt.Errorf("%w: %v", bets.ErrProviderUnavailable, err))
	}
}

type validateRequest struct {
	ModalityID string `json:"modality_id"`
	Numbers    []int  `json:"numbers"`
	Clovers    []int  `json:"clovers,omitempty"`
}

type validateResponse struct {
	Valid   bool                  `json:"valid"`
	Numbers *httputil.ErrorDetail `json:"numbers,omitempty"`
	Clovers *httputil.ErrorDetail `json:"clovers,omitempty"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	report := h.svc.Validate(req.ModalityID, req.Numbers, req.Clovers)
	httputil.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:   report.OK(),
		Numbers: detail(report.Numbers),
		Clovers: detail(report.Clovers),
	})
}

// =============================================================================
// Helpers
// =============================================================================

func requireIdentity(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "")
		return middleware.Identity{}, false
	}
	return id, true
}

func parseListFilter(r *http.Request) (bets.ListFilter, error) {
	q := r.URL.Query()
	filter := bets.ListFilter{ModalityID: strings.TrimSpace(q.Get("modality"))}

	if raw := q.Get("status"); raw != "" {
		status, err := bets.ParseStatus(raw)
		if err != nil {
			return bets.ListFilter{}, err
		}
		filter.Status = status
	}
	if raw := q.Get("contest"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return bets.ListFilter{}, errors.New("contest must be a positive integer")
		}
		filter.Contest = n
	}
	if raw := q.Get("repeating"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return bets.ListFilter{}, errors.New("repeating must be a boolean")
		}
		filter.Repeating = &b
	}
	return filter, nil
}

func detail(err error) *httputil.ErrorDetail {
	if err == nil {
		return nil
	}
	return &httputil.ErrorDetail{Code: bets.Kind(err), Message: err.Error()}
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case bets.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bets.ErrNotYetDrawn):
		return http.StatusAccepted
	case errors.Is(err, bets.ErrInProgress), errors.Is(err, bets.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, bets.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, bets.ErrBetNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := bets.Kind(err)
	message := err.Error()

	entry := h.log.WithField("request_id", middleware.GetRequestID(r.Context())).
		WithField("code", code).
		WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
		if code == "internal" || code == "persistence_error" {
			message = "internal error"
		}
	} else {
		entry.Debug("request rejected")
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	httputil.WriteErrorResponse(w, status, code, message, nil)
}
