package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/orbisplace/orbis-api/middleware"
	"github.com/orbisplace/orbis-api/services"
)

const (
	maxJSONBytes = 1_048_576 // 1MB
	// Multipart body cap: the file itself is at most 5MB, the rest covers part headers.
	maxUploadBytes  = 6 << 20
	multipartMemory = 8 << 20
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // dst must be a non-nil pointer
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// responder holds the shared error responses and is embedded in every handler.
type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (h responder) errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write error response",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h responder) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	h.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (h responder) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (h responder) failedValidationResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	h.errorResponse(w, r, http.StatusUnprocessableEntity, errors)
}

func (h responder) notFoundResponse(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "the requested resource could not be found"
	}
	h.errorResponse(w, r, http.StatusNotFound, message)
}

func (h responder) conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	h.errorResponse(w, r, http.StatusConflict, message)
}

func (h responder) unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	h.errorResponse(w, r, http.StatusUnauthorized, message)
}

func (h responder) forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	h.errorResponse(w, r, http.StatusForbidden, message)
}

// mapServiceErrorToHTTP maps a service error to a response by its category.
func (h responder) mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *services.ValidationError

	switch {
	case errors.As(err, &validationErr):
		h.failedValidationResponse(w, r, validationErr.Fields)
	case errors.Is(err, services.ErrNotFound):
		h.notFoundResponse(w, r, err.Error())
	case errors.Is(err, services.ErrConflict):
		h.conflictResponse(w, r, err.Error())
	case errors.Is(err, services.ErrForbiddenOperation):
		h.forbiddenResponse(w, r, err.Error())
	case errors.Is(err, services.ErrBadRequest):
		h.badRequestResponse(w, r, err)
	case errors.Is(err, services.ErrAuthenticationFailed):
		h.unauthorizedResponse(w, r, err.Error())
	default:
		h.serverErrorResponse(w, r, err)
	}
}

// currentUserID reads the caller from the context and writes 401 when it is missing.
func (h responder) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorizedResponse(w, r, "failed to identify current user")
		return "", false
	}
	return userID, true
}

// viewerID returns the caller on routes with optional auth, or "".
func viewerID(r *http.Request) string {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		return ""
	}
	return userID
}

func (h responder) writeOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := writeJSON(w, status, data, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// urlParam returns a trimmed path parameter, writing 400 when it is empty.
func (h responder) urlParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		h.badRequestResponse(w, r, fmt.Errorf("missing %s in URL path", name))
		return "", false
	}
	return value, true
}

// queryReader collects typed query parameters and remembers the invalid ones.
type queryReader struct {
	values url.Values
	errors map[string]string
}

func newQueryReader(r *http.Request) *queryReader {
	return &queryReader{values: r.URL.Query(), errors: make(map[string]string)}
}

func (q *queryReader) String(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *queryReader) Int(key string, fallback int) int {
	s := q.String(key)
	if s == "" {
		return fallback
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		q.errors[key] = "must be an integer value"
		return fallback
	}
	return i
}

func (q *queryReader) IntPtr(key string) *int {
	if q.String(key) == "" {
		return nil
	}
	i := q.Int(key, 0)
	if _, bad := q.errors[key]; bad {
		return nil
	}
	return &i
}

func (q *queryReader) Bool(key string) bool {
	s := q.String(key)
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		q.errors[key] = "must be a boolean value"
		return false
	}
	return b
}

// List accepts both ?tags=a&tags=b and ?tags=a,b.
func (q *queryReader) List(key string) []string {
	var out []string
	for _, raw := range q.values[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (q *queryReader) Valid() bool {
	return len(q.errors) == 0
}

// readImageUpload reads a single image part from a multipart form.
func readImageUpload(w http.ResponseWriter, r *http.Request, field string) (*services.FileUpload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, services.ErrFileTooLarge
		}
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, services.ErrFileRequired
		}
		return nil, nil, fmt.Errorf("failed to read %s file: %w", field, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("failed to rewind %s file: %w", field, err)
		}
	}

	upload := &services.FileUpload{
		Reader:      file,
		ContentType: contentType,
		Size:        header.Size,
		Filename:    header.Filename,
	}
	return upload, func() { file.Close() }, nil
}

// uploadError tells service errors apart from form parsing errors.
func (h responder) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrBadRequest) {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.badRequestResponse(w, r, err)
}
