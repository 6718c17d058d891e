// Package webhook_api receives carrier push notifications. Everything except
// an authentication failure is answered with a success-shaped response: a
// carrier that sees errors starts retrying, and retry storms hurt more than a
// dropped update the next poll cycle will repair anyway.
package webhook_api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/pinecart/shipsync/internal/broker/messages"
	"github.com/pinecart/shipsync/internal/scans"
	"github.com/pinecart/shipsync/internal/services/tracking"
	"github.com/pinecart/shipsync/internal/status"
	"github.com/pinecart/shipsync/internal/storage/pgorders"
)

// AuthHeader carries the shared webhook secret configured at the carrier.
const AuthHeader = "x-api-key"

type Handler struct {
	svc    *tracking.Service
	secret string
}

func New(svc *tracking.Service, secret string) *Handler {
	return &Handler{svc: svc, secret: secret}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/carrier", h.handleCarrierPush)
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) handleCarrierPush(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get(AuthHeader) != h.secret {
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Success: false, Message: "unauthorized"})
		return
	}

	fields := parseBody(r)
	p := extractPayload(fields)

	if p.candidates.Empty() {
		slog.Warn("webhook without any order identifier", "candidates", p.candidates)
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "no identifier in payload"})
		return
	}

	ctx := r.Context()
	o, err := h.svc.Resolve(ctx, p.candidates)
	if errors.Is(err, pgorders.ErrNotFound) {
		slog.Warn("webhook did not resolve to an order", "candidates", p.candidates)
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "no matching order"})
		return
	}
	if err != nil {
		slog.Error("webhook order resolution failed", "candidates", p.candidates, "error", err.Error())
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "accepted"})
		return
	}

	upd := tracking.Update{
		Status:      status.Normalize(p.statusText, p.statusCode),
		Waybill:     p.candidates.Waybill,
		CourierName: p.courierName,
		Events:      p.events,
		Source:      messages.SourceWebhook,
	}
	if _, err := h.svc.ApplyUpdate(ctx, o, upd); err != nil {
		// the sender still gets success; surfacing this would only trigger replays
		slog.Error("webhook update apply failed", "order_id", o.ID, "error", err.Error())
	}

	writeJSON(w, http.StatusOK, webhookResponse{Success: true})
}

// parseBody turns whatever arrived into a flat field bag. JSON objects,
// JSON-encoded-as-string bodies and form posts are all accepted; anything
// unparsable degrades to an empty bag instead of failing the request.
func parseBody(r *http.Request) map[string]any {
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/x-www-form-urlencoded") || strings.Contains(ct, "multipart/form-data") {
		if err := r.ParseForm(); err == nil {
			fields := make(map[string]any, len(r.PostForm))
			for k := range r.PostForm {
				fields[k] = r.PostForm.Get(k)
			}
			return fields
		}
		return map[string]any{}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return map[string]any{}
	}
	return decodeFields(body)
}

func decodeFields(body []byte) map[string]any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return map[string]any{}
	}
	for {
		switch t := v.(type) {
		case map[string]any:
			return t
		case string:
			// string-encoded nested JSON, decode one more level
			var inner any
			if err := json.Unmarshal([]byte(t), &inner); err != nil {
				return map[string]any{}
			}
			v = inner
		case []any:
			if len(t) == 0 {
				return map[string]any{}
			}
			v = t[0]
		default:
			return map[string]any{}
		}
	}
}

// Alias tables for the carrier's inconsistent webhook field naming.
// Tried in order, first present value wins.
var (
	shipmentIDAliases  = []string{"shipment_id", "sy_shipment_id", "shipment"}
	orderCodeAliases   = []string{"order_id", "order_code", "channel_order_id", "order"}
	waybillAliases     = []string{"awb", "awb_code", "waybill"}
	carrierIDAliases   = []string{"carrier_order_id", "sy_order_id"}
	statusTextAliases  = []string{"current_status", "shipment_status", "status"}
	statusCodeAliases  = []string{"shipment_status_id", "current_status_id", "status_code"}
	courierAliases     = []string{"courier_name", "courier"}
	scanPayloadAliases = []string{"scans", "scan", "event_details", "shipment_track_activities"}
)

type payload struct {
	candidates  tracking.Candidates
	statusText  string
	statusCode  *int
	courierName string
	events      []scans.Event
}

func extractPayload(fields map[string]any) payload {
	var p payload
	p.candidates = tracking.Candidates{
		OrderCode:      firstString(fields, orderCodeAliases),
		ShipmentID:     firstString(fields, shipmentIDAliases),
		Waybill:        firstString(fields, waybillAliases),
		CarrierOrderID: firstInt64(fields, carrierIDAliases),
	}
	p.statusText = firstString(fields, statusTextAliases)
	p.statusCode = firstInt(fields, statusCodeAliases)
	p.courierName = firstString(fields, courierAliases)

	for _, k := range scanPayloadAliases {
		if v, ok := fields[k]; ok {
			p.events = scans.FromAny(v)
			break
		}
	}
	return p
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstInt(m map[string]any, keys []string) *int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			n := int(v)
			return &n
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return &n
			}
		}
	}
	return nil
}

func firstInt64(m map[string]any, keys []string) *int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			n := int64(v)
			return &n
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
