package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"ipkv/internal/shared"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type API struct {
	Config Config
	Lists  *ListService
}

// NewAPI wires the list service to cfg.Store. With no store bound, Lists is
// nil and store-backed routes answer with a binding error.
func NewAPI(cfg Config) *API {
	a := &API{Config: cfg}
	if cfg.Store != nil {
		a.Lists = NewListService(cfg.Store)
	}
	return a
}

// Handler returns the full HTTP surface, with request logging through log.
func (a *API) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, r, errNotFound)
			return
		}
		methods{http.MethodGet: a.Index}.ServeHTTP(w, r)
	})
	mux.Handle("/api/health", methods{http.MethodGet: a.Health})
	mux.Handle("/api/ips", methods{
		http.MethodGet:  a.protected(a.GetIPs),
		http.MethodPost: a.protected(a.UpdateIPs),
	})
	mux.Handle("/api/stats", methods{http.MethodGet: a.protected(a.Stats)})

	var h http.Handler = withCORS(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(log)(h)
	return h
}

// methods dispatches on the request method; anything unlisted is a 404.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	writeError(w, r, errNotFound)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// protected runs next only when a store is bound and the caller presents
// the configured key.
func (a *API) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.Lists == nil {
			writeError(w, r, errStoreNotBound)
			return
		}
		if err := Authenticate(r, a.Config.APIKey); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindInternal {
		msg = "internal error"
	}

	ev := hlog.FromRequest(r).Warn()
	if kind.Status() >= 500 {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("request failed")

	writeJSON(w, kind.Status(), shared.Envelope{Success: false, Error: msg})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, newError(KindValidation, "bad body")
	}
	if len(b) > maxBodyBytes {
		return nil, newError(KindSizeLimit, fmt.Sprintf("request body exceeds %d MB", maxBodyBytes>>20))
	}
	return b, nil
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if a.Lists == nil {
		writeError(w, r, errStoreNotBound)
		return
	}
	now := time.Now().UTC().Format(shared.TimeLayout)

	healthy, err := a.Lists.Health(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("health probe failed")
		writeJSON(w, http.StatusInternalServerError, shared.HealthResponse{
			Success:   false,
			Status:    "unhealthy",
			Timestamp: now,
			Error:     err.Error(),
		})
		return
	}

	// A probe that read back the wrong value is still a 200.
	resp := shared.HealthResponse{
		Success:   true,
		Status:    "healthy",
		Timestamp: now,
		Message:   "KV store read/write probe succeeded",
	}
	if !healthy {
		resp.Status = "unhealthy"
		resp.Message = "KV store returned an unexpected probe value"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) GetIPs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	snap, err := a.Lists.Get(r.Context(), q.Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, snap.Raw)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": snap.Data})
}

func (a *API) UpdateIPs(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req, err := decodeUpdate(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := a.Lists.Update(r.Context(), req.Key, req.IPs, req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, out.Message, out.Data)
}

// decodeUpdate reads a POST /api/ips body. JSON bodies must carry an ips
// array; any other content type is read as newline-delimited entries and
// replaces the default list.
func decodeUpdate(contentType string, body []byte) (*shared.UpdateRequest, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	if !strings.EqualFold(mt, "application/json") {
		return &shared.UpdateRequest{
			IPs:    Parse(string(body)),
			Action: shared.ActionReplace,
			Key:    DefaultKey,
		}, nil
	}

	var raw struct {
		IPs    json.RawMessage `json:"ips"`
		Action string          `json:"action"`
		Key    string          `json:"key"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, newError(KindValidation, "invalid format: body is not a valid update object")
	}
	ipsJSON := strings.TrimSpace(string(raw.IPs))
	if ipsJSON == "" || ipsJSON == "null" || !strings.HasPrefix(ipsJSON, "[") {
		return nil, newError(KindValidation, "invalid format: ips must be an array")
	}
	var ips []string
	if err := json.Unmarshal(raw.IPs, &ips); err != nil {
		return nil, newError(KindValidation, "invalid format: ips must be an array of strings")
	}
	return &shared.UpdateRequest{IPs: ips, Action: raw.Action, Key: raw.Key}, nil
}

func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Lists.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}
