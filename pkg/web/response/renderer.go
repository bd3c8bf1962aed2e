// Package response renders JSON bodies and maps errors to HTTP statuses with
// messages localized from the request's Accept-Language header.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/conduit-lang/scaffold/pkg/repository"
	"github.com/conduit-lang/scaffold/pkg/web/query"
)

// InvalidDataMessage is the message of 422 responses
const InvalidDataMessage = "The given data was invalid."

// MessageResponse is the body of error and confirmation responses
type MessageResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Option configures a Renderer
type Option func(*Renderer)

// WithPrettyPrint indents JSON output
func WithPrettyPrint() Option {
	return func(r *Renderer) {
		r.prettyPrint = true
	}
}

// WithMessages sets the catalog used to localize repository errors
func WithMessages(m *repository.Messages) Option {
	return func(r *Renderer) {
		r.messages = m
	}
}

// WithDefaultLocale sets the locale used when the request names none we
// support
func WithDefaultLocale(tag language.Tag) Option {
	return func(r *Renderer) {
		r.defaultLocale = tag
	}
}

// WithLogger sets the logger for unexpected errors
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithDefaultHeader sets a header written on every response
func WithDefaultHeader(key, value string) Option {
	return func(r *Renderer) {
		r.defaultHeaders[key] = value
	}
}

// Renderer handles rendering of HTTP responses
type Renderer struct {
	prettyPrint    bool
	messages       *repository.Messages
	defaultLocale  language.Tag
	supported      []language.Tag
	matcher        language.Matcher
	defaultHeaders map[string]string
	logger         *zap.Logger
}

// NewRenderer creates a renderer using the default message catalog
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		messages:       repository.DefaultMessages(),
		defaultLocale:  language.English,
		defaultHeaders: make(map[string]string),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// the matcher falls back to its first tag
	r.supported = []language.Tag{r.defaultLocale}
	for _, tag := range r.messages.Languages() {
		if tag != r.defaultLocale {
			r.supported = append(r.supported, tag)
		}
	}
	r.matcher = language.NewMatcher(r.supported)
	return r
}

// Locale picks the supported locale that best matches the request's
// Accept-Language header
func (r *Renderer) Locale(req *http.Request) language.Tag {
	if req == nil {
		return r.defaultLocale
	}
	accept := req.Header.Get("Accept-Language")
	if accept == "" {
		return r.defaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return r.defaultLocale
	}
	_, index, _ := r.matcher.Match(tags...)
	return r.supported[index]
}

// JSON renders data as JSON with the given status
func (r *Renderer) JSON(w http.ResponseWriter, statusCode int, data any) error {
	for key, value := range r.defaultHeaders {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	if r.prettyPrint {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Message renders {"message": message}
func (r *Renderer) Message(w http.ResponseWriter, statusCode int, message string) error {
	return r.JSON(w, statusCode, MessageResponse{Message: message})
}

// Error renders err with the status it maps to:
//   - *query.ValidationError: 422 with the failed fields
//   - *repository.Error: the kind's status and its localized message
//   - any error with a StatusCode() int method: that status and its text
//   - anything else: 500 with a generic message; the error is logged
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, err error) {
	var verr *query.ValidationError
	if errors.As(err, &verr) {
		r.JSON(w, http.StatusUnprocessableEntity, MessageResponse{Message: InvalidDataMessage, Errors: verr.Fields})
		return
	}

	var repoErr *repository.Error
	if errors.As(err, &repoErr) {
		r.Message(w, repoErr.StatusCode(), r.messages.Render(r.Locale(req), repoErr))
		return
	}

	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		r.Message(w, coded.StatusCode(), err.Error())
		return
	}

	r.logger.Error("unhandled request error", zap.Error(err))
	r.Message(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// NoContent sends a 204 No Content response
func (r *Renderer) NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
