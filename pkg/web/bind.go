package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/conduit-lang/scaffold/pkg/repository"
	"github.com/conduit-lang/scaffold/pkg/web/query"
)

// DefaultMaxBodySize caps request bodies at 10MB
const DefaultMaxBodySize = 10 << 20

// BodyError reports a request body that could not be decoded
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string {
	return e.Err.Error()
}

func (e *BodyError) Unwrap() error {
	return e.Err
}

// StatusCode is always 400
func (e *BodyError) StatusCode() int {
	return http.StatusBadRequest
}

func bodyError(format string, args ...any) error {
	return &BodyError{Err: fmt.Errorf(format, args...)}
}

// DecodeJSON decodes a single JSON value from the request body into dst.
// Numbers are decoded as json.Number when dst is a map or interface.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, DefaultMaxBodySize)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return bodyError("request body is empty")
		case errors.As(err, &maxErr):
			return bodyError("request body exceeds %d bytes", maxErr.Limit)
		default:
			return bodyError("invalid JSON: %w", err)
		}
	}

	if decoder.More() {
		return bodyError("request body contains multiple JSON values")
	}
	return nil
}

// BindJSON decodes the body into dst and validates it with its `validate`
// tags
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := DecodeJSON(w, r, dst); err != nil {
		return err
	}
	return query.Struct(dst)
}

// DecodeRecord decodes a JSON object body into a record. Integral numbers
// become int64, others float64.
func DecodeRecord(w http.ResponseWriter, r *http.Request) (repository.Record, error) {
	var raw map[string]any
	if err := DecodeJSON(w, r, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, bodyError("request body must be a JSON object")
	}
	return normalizeRecord(raw), nil
}

// Attributes converts a bound request struct into a record using its json
// tags
func Attributes(v any) (repository.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("attributes must encode to a JSON object: %w", err)
	}
	return normalizeRecord(raw), nil
}

func normalizeRecord(raw map[string]any) repository.Record {
	out := make(repository.Record, len(raw))
	for key, value := range raw {
		out[key] = normalizeValue(value)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return normalizeRecord(val)
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	default:
		return v
	}
}
