package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	logpkg "github.com/benvon/restaurant-finder/internal/logger"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"go.uber.org/zap"
)

const maxClientMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage bounds the length of client-facing messages.
func sanitizeErrorMessage(message string) string {
	if utf8.RuneCountInString(message) > maxClientMessageLength {
		return string([]rune(message)[:maxClientMessageLength]) + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps a service error onto a status code. Storage and
// unexpected errors are logged and answered with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, fallback string) {
	var upstream *places.UpstreamError
	switch {
	case errors.As(err, &upstream):
		status := upstream.PropagatedStatus(http.StatusInternalServerError)
		logger.Warn("upstream_request_failed",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("operation", upstream.Operation),
			zap.Int("status_code", status),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, status, "Upstream Error", upstream.ClientMessage())
	case errors.Is(err, models.ErrInvalidArgument):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", clientMessage(err, models.ErrInvalidArgument))
	case errors.Is(err, models.ErrUnauthorized):
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", clientMessage(err, models.ErrUnauthorized))
	case errors.Is(err, models.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", clientMessage(err, models.ErrNotFound))
	case errors.Is(err, models.ErrConflict):
		respondJSONError(w, http.StatusConflict, "Conflict", clientMessage(err, models.ErrConflict))
	case errors.Is(err, models.ErrUnavailable):
		logger.Warn("dependency_unavailable",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", clientMessage(err, models.ErrUnavailable))
	default:
		logger.Error("request_failed",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("method", r.Method),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", fallback)
	}
}

// clientMessage strips the sentinel suffix from a wrapped error and
// capitalises the rest: "missing code: invalid argument" -> "Missing code".
func clientMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" || msg == sentinel.Error() {
		msg = sentinel.Error()
	}
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}

// decodeJSON decodes a request body into dst. An empty or malformed body is
// reported as models.ErrInvalidArgument.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required: %w", models.ErrInvalidArgument)
		}
		return fmt.Errorf("invalid request body: %w", models.ErrInvalidArgument)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, models.ErrInvalidArgument)
	}
	return v, nil
}

// pathInt64 parses a positive integer path variable.
func pathInt64(raw, name string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %w", name, models.ErrInvalidArgument)
	}
	return v, nil
}

// writeImage streams photo bytes with the upstream content type.
func writeImage(w http.ResponseWriter, img *places.Image, cacheControl string) {
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
