package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sagarc03/hashdrop"
)

const (
	// multipartSlack bounds the form overhead allowed on top of the content.
	multipartSlack = 1 << 20
	// multipartMemory is the part size kept in memory before spilling to disk.
	multipartMemory = 32 << 20

	immutableCacheControl = "public, max-age=31536000, immutable"
)

// Service is the gateway used by the handlers. Every call receives the
// environment bound to the request.
type Service interface {
	Stat(ctx context.Context, env *hashdrop.Environment, digest string) (hashdrop.StoredObject, error)
	Upload(ctx context.Context, env *hashdrop.Environment, in hashdrop.UploadInput) (hashdrop.UploadResult, error)
	Fetch(ctx context.Context, env *hashdrop.Environment, digest string) (hashdrop.Retrieval, error)
	Open(ctx context.Context, env *hashdrop.Environment, digest string) (hashdrop.StoredObject, io.ReadCloser, error)
	MaxUploadSize() int64
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// Provider supplies the environment for each request. When nil, requests
	// must be bound by an outer middleware.
	Provider EnvironmentProvider
	CORS     CORSConfig
	// MetricsPath exposes Prometheus metrics when non-empty.
	MetricsPath string
}

// Handler provides HTTP handlers for content-addressed object operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns an http.Handler with every route configured.
//
//	HEAD /objects?digest=     metadata headers only
//	GET  /objects?digest=     stream or redirect depending on serve mode
//	POST /objects             multipart upload
//	GET  /objects/check?digest=  JSON existence check
//	GET  /raw/{digest}        always streams
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	if h.config.MetricsPath != "" {
		r.Handle(h.config.MetricsPath, promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(BindEnvironment(h.config.Provider))
		r.Use(RequireEnvironment)

		r.Head("/objects", h.handleHead)
		r.Get("/objects", h.handleGet)
		r.Post("/objects", h.handleUpload)
		r.Get("/objects/check", h.handleCheck)
		r.Get("/raw/{digest}", h.handleRaw)
	})

	return r
}

// digestParam reads the digest from the "digest" query parameter, falling
// back to "hash". The value is lowercased before validation.
func digestParam(r *http.Request) (string, error) {
	q := r.URL.Query()
	digest := q.Get("digest")
	if digest == "" {
		digest = q.Get("hash")
	}
	if digest == "" {
		return "", ErrMissingParameter
	}

	digest = strings.ToLower(digest)
	if !hashdrop.IsValidDigest(digest) {
		return "", fmt.Errorf("%w: %q", hashdrop.ErrInvalidDigest, digest)
	}
	return digest, nil
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	env, _ := Resolve(r)

	digest, err := digestParam(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	obj, err := h.service.Stat(r.Context(), env, digest)
	if err != nil {
		HandleError(w, err)
		return
	}

	writeObjectHeaders(w, obj)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	env, _ := Resolve(r)

	digest, err := digestParam(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	res, err := h.service.Fetch(r.Context(), env, digest)
	if err != nil {
		HandleError(w, err)
		return
	}

	if res.IsRedirect() {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}

	serveContent(w, r, res.Object, res.Content)
}

func (h *Handler) handleRaw(w http.ResponseWriter, r *http.Request) {
	env, _ := Resolve(r)

	digest := strings.ToLower(chi.URLParam(r, "digest"))
	if !hashdrop.IsValidDigest(digest) {
		HandleError(w, hashdrop.ErrInvalidDigest)
		return
	}

	obj, content, err := h.service.Open(r.Context(), env, digest)
	if err != nil {
		HandleError(w, err)
		return
	}

	serveContent(w, r, obj, content)
}

type checkResponse struct {
	Exists bool   `json:"exists"`
	Digest string `json:"digest"`
	// Hash repeats Digest under the key older clients read.
	Hash        string `json:"hash"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        *int64 `json:"size,omitempty"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	env, _ := Resolve(r)

	digest, err := digestParam(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	obj, err := h.service.Stat(r.Context(), env, digest)
	if errors.Is(err, hashdrop.ErrNotFound) {
		_ = WriteJSON(w, http.StatusOK, checkResponse{Exists: false, Digest: digest, Hash: digest})
		return
	}
	if err != nil {
		HandleError(w, err)
		return
	}

	size := obj.Size
	_ = WriteJSON(w, http.StatusOK, checkResponse{
		Exists:      true,
		Digest:      digest,
		Hash:        digest,
		Filename:    obj.OriginalFilename,
		ContentType: obj.ContentType,
		Size:        &size,
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	env, _ := Resolve(r)
	maxSize := h.service.MaxUploadSize()

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartSlack)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			HandleError(w, fmt.Errorf("parse upload: %w", hashdrop.ErrTooLarge))
			return
		}
		HandleError(w, fmt.Errorf("parse upload: %w: %w", hashdrop.ErrInvalidInput, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := hashdrop.UploadInput{
		Size:          -1,
		ClaimedDigest: r.FormValue("hash"),
		Filename:      r.FormValue("filename"),
		ContentType:   r.FormValue("contentType"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		HandleError(w, fmt.Errorf("read upload file: %w: %w", hashdrop.ErrInvalidInput, err))
		return
	default:
		defer func(f multipart.File) { _ = f.Close() }(file)
		in.Content = file
		in.Size = header.Size
	}

	result, err := h.service.Upload(r.Context(), env, in)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func writeObjectHeaders(w http.ResponseWriter, obj hashdrop.StoredObject) {
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("ETag", `"`+obj.Digest+`"`)
	if obj.OriginalFilename != "" {
		w.Header().Set("X-Filename", obj.OriginalFilename)
	}
}

// serveContent streams content with immutable cache headers. Seekable content
// goes through http.ServeContent so that range and conditional requests work.
func serveContent(w http.ResponseWriter, r *http.Request, obj hashdrop.StoredObject, content io.ReadCloser) {
	defer func() { _ = content.Close() }()

	w.Header().Set("Cache-Control", immutableCacheControl)

	if rs, ok := content.(io.ReadSeeker); ok {
		w.Header().Set("Content-Type", obj.ContentType)
		w.Header().Set("ETag", `"`+obj.Digest+`"`)
		if obj.OriginalFilename != "" {
			w.Header().Set("X-Filename", obj.OriginalFilename)
		}
		http.ServeContent(w, r, obj.Digest, obj.CreatedAt, rs)
		return
	}

	writeObjectHeaders(w, obj)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, content)
}
