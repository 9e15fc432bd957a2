package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/biz"
	"github.com/sugartom/nexus/internal/kerror"
	"github.com/sugartom/nexus/internal/klogging"
)

// Handler exposes the scheduler over HTTP. All endpoints speak JSON; errors
// are rendered by ErrorHandlingMiddleware.
type Handler struct {
	app *biz.App
}

func NewHandler(app *biz.App) *Handler {
	return &Handler{app: app}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/ping", ErrorHandlingMiddleware(http.HandlerFunc(h.PingHandler)))
	mux.Handle("/api/get_status", ErrorHandlingMiddleware(http.HandlerFunc(h.GetStatusHandler)))
	mux.Handle("/api/get_route", ErrorHandlingMiddleware(http.HandlerFunc(h.GetRouteHandler)))
	mux.Handle("/api/register", ErrorHandlingMiddleware(http.HandlerFunc(h.RegisterHandler)))
	mux.Handle("/api/unregister", ErrorHandlingMiddleware(http.HandlerFunc(h.UnregisterHandler)))
	mux.Handle("/api/load_model", ErrorHandlingMiddleware(http.HandlerFunc(h.LoadModelHandler)))
	mux.Handle("/api/update_stats", ErrorHandlingMiddleware(http.HandlerFunc(h.UpdateStatsHandler)))
	mux.Handle("/api/keepalive", ErrorHandlingMiddleware(http.HandlerFunc(h.KeepAliveHandler)))
}

func requireMethod(r *http.Request, method string) {
	if r.Method != method {
		panic(kerror.Create("MethodNotAllowed", "only "+method+" method is allowed").
			WithErrorCode(kerror.EC_INVALID_PARAMETER).
			With("method", r.Method))
	}
}

func decodeBody(r *http.Request, v interface{}) {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		panic(kerror.Wrap(err, "DecodingError", "failed to decode request body", false).
			WithErrorCode(kerror.EC_INVALID_PARAMETER))
	}
}

func encodeResponse(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(kerror.Create("EncodingError", "failed to encode response").
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("error", err.Error()))
	}
}

func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodGet)
	encodeResponse(w, h.app.Ping(r.Context()))
}

func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodGet)
	resp := h.app.GetStatus(r.Context())
	klogging.Verbose(r.Context()).
		With("backends", len(resp.Backends)).
		With("frontends", len(resp.Frontends)).
		With("models", len(resp.Models)).
		Log("GetStatusResponse", "sending status response")
	encodeResponse(w, resp)
}

func (h *Handler) GetRouteHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodGet)
	sessionId := r.URL.Query().Get("session")
	if sessionId == "" {
		panic(kerror.Create("InvalidParameter", "missing session query parameter").
			WithErrorCode(kerror.EC_INVALID_PARAMETER))
	}
	encodeResponse(w, h.app.GetRoute(r.Context(), sessionId))
}

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodPost)
	var req api.RegisterRequest
	decodeBody(r, &req)
	klogging.Info(r.Context()).
		With("nodeId", req.NodeId).
		With("kind", req.Kind).
		With("address", req.Address).
		Log("RegisterRequest", "received register request")
	encodeResponse(w, h.app.Register(r.Context(), &req))
}

func (h *Handler) UnregisterHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodPost)
	var req api.UnregisterRequest
	decodeBody(r, &req)
	klogging.Info(r.Context()).
		With("nodeId", req.NodeId).
		With("kind", req.Kind).
		Log("UnregisterRequest", "received unregister request")
	encodeResponse(w, h.app.Unregister(r.Context(), &req))
}

func (h *Handler) LoadModelHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodPost)
	var req api.LoadModelRequest
	decodeBody(r, &req)
	klogging.Info(r.Context()).
		With("frontendId", req.FrontendId).
		With("modelId", req.ModelId).
		With("version", req.Version).
		With("requestRate", req.RequestRate).
		Log("LoadModelRequest", "received load model request")
	encodeResponse(w, h.app.LoadModel(r.Context(), &req))
}

func (h *Handler) UpdateStatsHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodPost)
	var req api.BackendStatsRequest
	decodeBody(r, &req)
	encodeResponse(w, h.app.UpdateStats(r.Context(), &req))
}

func (h *Handler) KeepAliveHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodPost)
	var req api.KeepAliveRequest
	decodeBody(r, &req)
	encodeResponse(w, h.app.KeepAlive(r.Context(), &req))
}
