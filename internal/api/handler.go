package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pizzaparty/slices/internal/count"
	"github.com/pizzaparty/slices/internal/diagram"
	"github.com/pizzaparty/slices/internal/division"
	"github.com/pizzaparty/slices/internal/planner"
	"github.com/pizzaparty/slices/internal/storage"
	"github.com/pizzaparty/slices/internal/topping"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Planner turns an aggregate order into pies and diagrams.
type Planner interface {
	Plan(demand count.Count) (planner.Result, error)
}

// Recorder receives order update measurements.
type Recorder interface {
	UpdateApplied(kind string)
	Participants(n int)
}

type nopRecorder struct{}

func (nopRecorder) UpdateApplied(string) {}
func (nopRecorder) Participants(int)     {}

// Handler wires storage and planner dependencies into HTTP handlers.
type Handler struct {
	storage  storage.Storage
	planner  Planner
	pie      division.PieConfig
	recorder Recorder
	logger   *zap.Logger

	clock func() time.Time

	mu             sync.RWMutex
	orderUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = r
	}
}

// WithHandlerLogger attaches a logger for handler-level events.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler constructs a Handler with the provided dependencies. pie is the
// configuration plan was built with and is reported by the config endpoint.
func NewHandler(store storage.Storage, plan Planner, pie division.PieConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage:  store,
		planner:  plan,
		pie:      pie,
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.orderUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, h.configResponse())
}

func (h *Handler) handlePutToppings(w http.ResponseWriter, r *http.Request) {
	var req toppingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if err := h.storage.SetToppings(req.Toppings); err != nil {
		if errors.Is(err, storage.ErrInvalidToppings) {
			writeError(w, http.StatusBadRequest, "Invalid toppings", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.recordUpdate("toppings")

	resp := h.configResponse()
	resp.Message = "Toppings updated successfully"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	_ = r
	participants := h.storage.Participants()
	resp := participantsResponse{Participants: make([]participantResponse, 0, len(participants))}
	for _, p := range participants {
		resp.Participants = append(resp.Participants, newParticipantResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	role, err := storage.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err.Error(), `role must be "host" or "guest"`)
		return
	}

	p, err := h.storage.Join(role)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	h.recordUpdate("join")
	h.logger.Info("participant joined", zap.String("participant", p.ID), zap.Stringer("role", p.Role))
	writeJSON(w, http.StatusCreated, newParticipantResponse(p))
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.storage.Remove(id); err != nil {
		writeStorageError(w, err)
		return
	}

	h.recordUpdate("leave")
	h.logger.Info("participant left", zap.String("participant", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetTopping(w http.ResponseWriter, r *http.Request) {
	var req setToppingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if req.Slices == nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "slices is required")
		return
	}

	t, ok := h.parseTopping(w, req.Parts)
	if !ok {
		return
	}

	id := r.PathValue("id")
	value, err := h.storage.Set(id, t, *req.Slices)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	h.recordUpdate("set")
	writeJSON(w, http.StatusOK, toppingUpdateResponse{
		Participant: strings.TrimSpace(id),
		Topping:     newPairResponse(count.Pair{Topping: t, Slices: value}),
	})
}

func (h *Handler) handleAddTopping(w http.ResponseWriter, r *http.Request) {
	var req addToppingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	t, ok := h.parseTopping(w, req.Parts)
	if !ok {
		return
	}

	id := r.PathValue("id")
	value, err := h.storage.Add(id, t, req.Delta)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	h.recordUpdate("add")
	writeJSON(w, http.StatusOK, toppingUpdateResponse{
		Participant: strings.TrimSpace(id),
		Topping:     newPairResponse(count.Pair{Topping: t, Slices: value}),
	})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	_ = r
	snap := h.storage.Aggregate()
	pairs := count.Ordered(snap.Order, h.storage.Toppings())

	resp := orderResponse{
		Version:      snap.Version,
		Participants: snap.Participants,
		TotalSlices:  snap.Order.Total(),
		Toppings:     make([]pairResponse, 0, len(pairs)),
		UpdatedAt:    h.currentOrderUpdatedAt(),
	}
	for _, p := range pairs {
		resp.Toppings = append(resp.Toppings, newPairResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPies(w http.ResponseWriter, r *http.Request) {
	snap, res, err := h.currentPlan()
	if err != nil {
		writePlanError(w, err)
		return
	}

	etag := res.ETag()
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	pies := res.Plan.AllPies()
	resp := piesResponse{
		Fingerprint:     fmt.Sprintf("%016x", res.Fingerprint),
		Version:         snap.Version,
		SlicesPerPie:    res.Plan.Config.SlicesPerPie(),
		TotalSlices:     res.Demand,
		WholePies:       len(res.Plan.Pies),
		PartPies:        res.Plan.PartPies,
		UncoveredSlices: res.Plan.Uncovered.Total(),
		Pies:            make([]pieResponse, 0, len(pies)),
	}
	for i, pie := range pies {
		pr := pieResponse{
			Index:     i,
			Slices:    pie.Slices(),
			Uncovered: i >= len(res.Plan.Pies),
			Toppings:  make([]pairResponse, 0, len(pie)),
			Diagram:   res.Diagrams[i],
		}
		for _, p := range pie {
			pr.Toppings = append(pr.Toppings, newPairResponse(p))
		}
		resp.Pies = append(resp.Pies, pr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPieSVG(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "Invalid request", "pie index must be a non-negative integer")
		return
	}

	_, res, err := h.currentPlan()
	if err != nil {
		writePlanError(w, err)
		return
	}
	if index >= len(res.Diagrams) {
		writeError(w, http.StatusNotFound, "Pie not found",
			fmt.Sprintf("the current order has %d pies", len(res.Diagrams)))
		return
	}

	var buf bytes.Buffer
	if err := diagram.WriteSVG(&buf, res.Diagrams[index]); err != nil {
		writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("ETag", res.ETag())
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) currentPlan() (storage.Snapshot, planner.Result, error) {
	snap := h.storage.Aggregate()
	res, err := h.planner.Plan(snap.Order)
	return snap, res, err
}

// parseTopping builds a topping from request parts and checks every part is a
// configured base topping. It writes the error response itself.
func (h *Handler) parseTopping(w http.ResponseWriter, parts []string) (topping.Topping, bool) {
	t, err := topping.Parse(parts)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid topping", err.Error())
		return topping.Topping{}, false
	}

	bases := h.storage.Toppings()
	known := make(map[topping.Base]struct{}, len(bases))
	for _, b := range bases {
		known[b] = struct{}{}
	}
	for _, part := range t.Parts() {
		if _, ok := known[part]; !ok {
			writeError(w, http.StatusBadRequest, "Unknown topping",
				fmt.Sprintf("%q is not on the menu", part),
				"choose from: "+strings.Join(baseNames(bases), ", "))
			return topping.Topping{}, false
		}
	}
	return t, true
}

func (h *Handler) configResponse() configResponse {
	return configResponse{
		SlicesPerPart: h.pie.SlicesPerPart,
		PartsPerPie:   h.pie.PartsPerPie,
		SlicesPerPie:  h.pie.SlicesPerPie(),
		Toppings:      baseNames(h.storage.Toppings()),
	}
}

func (h *Handler) recordUpdate(kind string) {
	h.recorder.UpdateApplied(kind)
	h.recorder.Participants(len(h.storage.Participants()))
	h.markOrderUpdated()
}

func (h *Handler) currentOrderUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.orderUpdatedAt
}

func (h *Handler) markOrderUpdated() {
	h.mu.Lock()
	h.orderUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func baseNames(bases []topping.Base) []string {
	out := make([]string, len(bases))
	for i, b := range bases {
		out[i] = string(b)
	}
	return out
}

type toppingsRequest struct {
	Toppings []string `json:"toppings"`
}

type joinRequest struct {
	Role string `json:"role"`
}

type setToppingRequest struct {
	Parts  []string `json:"parts"`
	Slices *int     `json:"slices"`
}

type addToppingRequest struct {
	Parts []string `json:"parts"`
	Delta int      `json:"delta"`
}

type configResponse struct {
	SlicesPerPart int      `json:"slicesPerPart"`
	PartsPerPie   int      `json:"partsPerPie"`
	SlicesPerPie  int      `json:"slicesPerPie"`
	Toppings      []string `json:"toppings"`
	Message       string   `json:"message,omitempty"`
}

type participantResponse struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Slices int    `json:"slices"`
}

func newParticipantResponse(p storage.Participant) participantResponse {
	return participantResponse{ID: p.ID, Role: p.Role.String(), Slices: p.Toppings.Total()}
}

type participantsResponse struct {
	Participants []participantResponse `json:"participants"`
}

type pairResponse struct {
	Key    string   `json:"key"`
	Label  string   `json:"label"`
	Parts  []string `json:"parts"`
	Slices int      `json:"slices"`
}

func newPairResponse(p count.Pair) pairResponse {
	return pairResponse{
		Key:    string(p.Topping.Key()),
		Label:  p.Topping.String(),
		Parts:  p.Topping.Names(),
		Slices: p.Slices,
	}
}

type toppingUpdateResponse struct {
	Participant string       `json:"participant"`
	Topping     pairResponse `json:"topping"`
}

type orderResponse struct {
	Version      uint64         `json:"version"`
	Participants int            `json:"participants"`
	TotalSlices  int            `json:"totalSlices"`
	Toppings     []pairResponse `json:"toppings"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type pieResponse struct {
	Index     int             `json:"index"`
	Slices    int             `json:"slices"`
	Uncovered bool            `json:"uncovered"`
	Toppings  []pairResponse  `json:"toppings"`
	Diagram   diagram.Diagram `json:"diagram"`
}

type piesResponse struct {
	Fingerprint     string        `json:"fingerprint"`
	Version         uint64        `json:"version"`
	SlicesPerPie    int           `json:"slicesPerPie"`
	TotalSlices     int           `json:"totalSlices"`
	WholePies       int           `json:"wholePies"`
	PartPies        int           `json:"partPies"`
	UncoveredSlices int           `json:"uncoveredSlices"`
	Pies            []pieResponse `json:"pies"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidCount):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error(),
			fmt.Sprintf("one participant may order at most %d slices", storage.MaxSlices))
	case errors.Is(err, storage.ErrInvalidParticipant),
		errors.Is(err, storage.ErrInvalidRole),
		errors.Is(err, topping.ErrEmptyTopping):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, storage.ErrUnknownParticipant):
		writeError(w, http.StatusNotFound, "Participant not found", err.Error())
	case errors.Is(err, storage.ErrHostTaken):
		writeError(w, http.StatusConflict, "Host already present", err.Error(), `join with role "guest" instead`)
	case errors.Is(err, storage.ErrPartyFull):
		writeError(w, http.StatusConflict, "Order is full", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func writePlanError(w http.ResponseWriter, err error) {
	if errors.Is(err, division.ErrInvalidConfig) {
		writeError(w, http.StatusUnprocessableEntity, "Cannot allocate order", err.Error(),
			"slices per part and parts per pie must both be positive")
		return
	}
	writeInternalError(w, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
