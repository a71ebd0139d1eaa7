// Package httpapi exposes the inspection and verification services over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/extractor"
	"github.com/mikey/mailtrust/internal/ports"
)

// Handlers holds the HTTP handlers and their dependencies
type Handlers struct {
	inspector      ports.Inspector
	verifier       ports.Verifier
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewHandlers creates a new Handlers instance
func NewHandlers(inspector ports.Inspector, verifier ports.Verifier, logger *zap.Logger, maxUploadBytes int64) *Handlers {
	return &Handlers{
		inspector:      inspector,
		verifier:       verifier,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Router returns the routes of the service
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/inspect", h.Inspect)
		r.Get("/verify", h.Verify)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type inspectRequest struct {
	Raw string `json:"raw"`
}

// Health reports that the process is serving
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Inspect scores a message sent as a multipart upload or as JSON {raw}
func (h *Handlers) Inspect(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	filename, data, err := h.readMessage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "message too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := h.inspector.Inspect(r.Context(), filename, data)
	if err != nil {
		if errors.Is(err, extractor.ErrEmptyInput) || errors.Is(err, extractor.ErrCorruptArchive) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: rootMessage(err)})
			return
		}
		h.logger.Error("Failed to inspect message",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("filename", filename),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("X-Inspection-Id", result.ID)
	writeJSON(w, http.StatusOK, result)
}

// Verify classifies the address in the email query parameter. It always answers 200.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	result := h.verifier.Verify(r.Context(), r.URL.Query().Get("email"))
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) readMessage(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", nil, err
		}
		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return "", nil, err
			}
			if len(data) > 0 {
				return header.Filename, data, nil
			}
		}
		return "", []byte(r.FormValue("raw")), nil

	default:
		var req inspectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, err
			}
			return "", nil, errors.New("invalid JSON body")
		}
		return "", []byte(req.Raw), nil
	}
}

// rootMessage strips wrapping context so users see the actionable message
func rootMessage(err error) string {
	for _, sentinel := range []error{extractor.ErrEmptyInput, extractor.ErrCorruptArchive} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return strings.TrimSpace(err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
