// Package orders_api serves the storefront-facing order tracking endpoints.
package orders_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pinecart/shipsync/internal/models"
	"github.com/pinecart/shipsync/internal/scans"
	"github.com/pinecart/shipsync/internal/services/tracking"
	"github.com/pinecart/shipsync/internal/status"
	"github.com/pinecart/shipsync/internal/storage/pgorders"
)

// OrderCreator seeds order rows. Checkout lives elsewhere; this surface
// exists for fixtures and local demos.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in models.OrderCreateInput) (*models.Order, error)
}

type Handler struct {
	svc     *tracking.Service
	creator OrderCreator
}

func New(svc *tracking.Service, creator OrderCreator) *Handler {
	return &Handler{svc: svc, creator: creator}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.handleCreateOrder)
	r.Get("/orders/{orderID}/tracking", h.handleGetTracking)
	r.Post("/orders/{orderID}/refresh", h.handleRefresh)
}

type orderResponse struct {
	ID              uuid.UUID     `json:"id"`
	OrderCode       string        `json:"order_code"`
	ShipmentID      *string       `json:"shipment_id,omitempty"`
	CarrierOrderID  *int64        `json:"carrier_order_id,omitempty"`
	Waybill         string        `json:"waybill,omitempty"`
	CourierName     string        `json:"courier_name,omitempty"`
	CanonicalStatus status.Status `json:"canonical_status"`
	TrackingURL     string        `json:"tracking_url,omitempty"`
	ScanEvents      []scans.Event `json:"scan_events"`
	LastSyncedAt    *time.Time    `json:"last_synced_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func toOrderResponse(o *models.Order) orderResponse {
	events := o.ScanEvents
	if events == nil {
		events = []scans.Event{}
	}
	return orderResponse{
		ID:              o.ID,
		OrderCode:       o.OrderCode,
		ShipmentID:      o.CarrierShipmentID,
		CarrierOrderID:  o.CarrierOrderID,
		Waybill:         o.CarrierWaybill,
		CourierName:     o.CarrierName,
		CanonicalStatus: o.CanonicalStatus,
		TrackingURL:     o.TrackingURL,
		ScanEvents:      events,
		LastSyncedAt:    o.LastSyncedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type createOrderRequest struct {
	OrderCode      string  `json:"order_code"`
	ShipmentID     *string `json:"shipment_id,omitempty"`
	CarrierOrderID *int64  `json:"carrier_order_id,omitempty"`
	Waybill        string  `json:"waybill,omitempty"`
}

// handleCreateOrder seeds an order row.
//
//	@Summary	Create an order
//	@Tags		orders
//	@Accept		json
//	@Produce	json
//	@Param		request	body		createOrderRequest	true	"order to create"
//	@Success	201		{object}	orderResponse
//	@Router		/orders [post]
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.OrderCode == "" {
		writeError(w, http.StatusBadRequest, "order_code is required")
		return
	}

	o, err := h.creator.CreateOrder(r.Context(), models.OrderCreateInput{
		OrderCode:         req.OrderCode,
		CarrierShipmentID: req.ShipmentID,
		CarrierOrderID:    req.CarrierOrderID,
		CarrierWaybill:    req.Waybill,
	})
	if err != nil {
		slog.Error("create order failed", "order_code", req.OrderCode, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "create order failed")
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// handleGetTracking returns the stored tracking state, cache-first.
//
//	@Summary	Get order tracking
//	@Tags		orders
//	@Produce	json
//	@Param		orderID	path		string	true	"order id"
//	@Success	200		{object}	orderResponse
//	@Router		/orders/{orderID}/tracking [get]
func (h *Handler) handleGetTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetTracking(r.Context(), id)
	if errors.Is(err, pgorders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		slog.Error("get tracking failed", "order_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "get tracking failed")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// handleRefresh pulls the carrier once and returns the freshest stored state.
// A carrier failure is not surfaced; the response is then simply the state we
// already had.
//
//	@Summary	Refresh order tracking from the carrier
//	@Tags		orders
//	@Produce	json
//	@Param		orderID	path		string	true	"order id"
//	@Success	200		{object}	orderResponse
//	@Router		/orders/{orderID}/refresh [post]
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.Refresh(r.Context(), id)
	if errors.Is(err, pgorders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		slog.Error("refresh failed", "order_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
