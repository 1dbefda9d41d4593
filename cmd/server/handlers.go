package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ge-ledger-go/internal/ledger"
	"ge-ledger-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log      *zap.Logger
	db       *gorm.DB
	service  *ledger.Service
	reporter *ledger.Reporter
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB, service *ledger.Service, reporter *ledger.Reporter) *APIHandler {
	return &APIHandler{log: log, db: db, service: service, reporter: reporter}
}

// Routes builds the API mux.
func (h *APIHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HealthHandler)

	mux.HandleFunc("POST /api/characters", h.CreateCharacterHandler)
	mux.HandleFunc("GET /api/characters", h.ListCharactersHandler)

	mux.HandleFunc("GET /api/characters/{id}/trades", h.ListTradesHandler)
	mux.HandleFunc("POST /api/characters/{id}/trades", h.CreateTradeHandler)
	mux.HandleFunc("PATCH /api/characters/{id}/trades/{tradeId}", h.UpdateTradeHandler)
	mux.HandleFunc("DELETE /api/characters/{id}/trades/{tradeId}", h.DeleteTradeHandler)
	mux.HandleFunc("GET /api/characters/{id}/trades/{tradeId}/delete-impact", h.DeleteImpactHandler)

	mux.HandleFunc("POST /api/characters/{id}/recalculate", h.RecalculateHandler)
	mux.HandleFunc("GET /api/characters/{id}/positions", h.ListPositionsHandler)
	mux.HandleFunc("GET /api/characters/{id}/profit-summary", h.ProfitSummaryHandler)
	mux.HandleFunc("GET /api/characters/{id}/bankroll", h.GetBankrollHandler)
	mux.HandleFunc("PUT /api/characters/{id}/bankroll", h.SetBankrollHandler)

	return mux
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK\n"))
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps service errors onto HTTP statuses. Validation failures
// return 400 with the code and available-amount context; everything else
// is a 500.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, verr)
		return
	}
	h.log.Error("Request failed", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (h *APIHandler) characterID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid character id"})
		return 0, false
	}
	return uint(id), true
}

func (h *APIHandler) tradeID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("tradeId"), 10, 32)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trade id"})
		return 0, false
	}
	return uint(id), true
}

func (h *APIHandler) CreateCharacterHandler(w http.ResponseWriter, r *http.Request) {
	var character models.Character
	if err := json.NewDecoder(r.Body).Decode(&character); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if character.Name == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := h.db.Create(&character).Error; err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, character)
}

func (h *APIHandler) ListCharactersHandler(w http.ResponseWriter, r *http.Request) {
	var characters []models.Character
	if err := h.db.Order("name asc").Find(&characters).Error; err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, characters)
}

func (h *APIHandler) ListTradesHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}

	var itemID *int64
	if v := r.URL.Query().Get("item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
			return
		}
		itemID = &id
	}

	trades, err := h.service.ListTrades(characterID, itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trades)
}

func (h *APIHandler) CreateTradeHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}

	var input ledger.CreateTradeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	trade, err := h.service.CreateTrade(characterID, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, trade)
}

func (h *APIHandler) UpdateTradeHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}
	tradeID, ok := h.tradeID(w, r)
	if !ok {
		return
	}

	var input ledger.UpdateTradeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	trade, err := h.service.UpdateTrade(characterID, tradeID, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if trade == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, trade)
}

func (h *APIHandler) DeleteTradeHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}
	tradeID, ok := h.tradeID(w, r)
	if !ok {
		return
	}

	result, err := h.service.DeleteTrade(characterID, tradeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !result.Success {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) DeleteImpactHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}
	tradeID, ok := h.tradeID(w, r)
	if !ok {
		return
	}

	impact, err := h.service.GetDeleteTradeImpact(characterID, tradeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if impact == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, impact)
}

func (h *APIHandler) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}

	result, err := h.service.RecalculateProfitMatches(characterID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) ListPositionsHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}

	positions, err := h.service.ListPositions(characterID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

func (h *APIHandler) ProfitSummaryHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}

	period := r.URL.Query().Get("period")
	summary, err := h.reporter.GetProfitSummary(characterID, period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) GetBankrollHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}

	bankroll, err := h.service.GetBankroll(characterID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, bankroll)
}

func (h *APIHandler) SetBankrollHandler(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.characterID(w, r)
	if !ok {
		return
	}

	var body struct {
		InitialBalance int64 `json:"initial_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	bankroll, err := h.service.SetBankroll(characterID, body.InitialBalance)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, bankroll)
}
