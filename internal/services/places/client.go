package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benvon/restaurant-finder/internal/models"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultPhotoMaxWidth is used when a photo request carries no width.
	DefaultPhotoMaxWidth = 400
	// DefaultTextSearchFieldMask is sent when the caller asks for no specific fields.
	DefaultTextSearchFieldMask = "places.id,places.location,places.formattedAddress,places.displayName"

	maxJSONBodyBytes  = 2 << 20
	maxPhotoBodyBytes = 10 << 20

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// DetailFields are requested when showing a restaurant page.
var DetailFields = []string{
	"formatted_address", "formatted_phone_number", "opening_hours", "website", "url", "reviews", "photos",
}

// RefreshFields are requested when re-synchronising a cached restaurant row.
var RefreshFields = []string{
	"place_id", "name", "vicinity", "formatted_address", "geometry", "rating",
	"user_ratings_total", "photos", "types", "price_level",
}

var errServerStatus = errors.New("upstream server error")

// Config configures the gateway.
type Config struct {
	APIKey    string
	BaseURL   string
	V1BaseURL string
	Language  string
	Timeout   time.Duration

	// BreakerFailures consecutive failures open the breaker for BreakerOpenTimeout.
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// Recorder receives gateway observations; metrics.Collector implements it.
type Recorder interface {
	ObserveUpstreamCall(operation, outcome string, duration time.Duration)
	RecordCircuitState(name, state string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveUpstreamCall(string, string, time.Duration) {}
func (nopRecorder) RecordCircuitState(string, string)                {}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (tests point it at httptest servers).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(cl *Client) {
		if r != nil {
			cl.recorder = r
		}
	}
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// Client is the gateway to the Google Places APIs. It performs no retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*rawResponse]
	recorder   Recorder
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewClient creates a gateway client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "zh-TW"
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.V1BaseURL = strings.TrimRight(cfg.V1BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		recorder:   nopRecorder{},
		logger:     logger,
		tracer:     otel.Tracer("github.com/benvon/restaurant-finder/internal/services/places"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.recorder.RecordCircuitState("google-places", gobreaker.StateClosed.String())
	c.breaker = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        "google-places",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("places_circuit_state_changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.recorder.RecordCircuitState(name, to.String())
		},
	})

	return c
}

// Language returns the default response language.
func (c *Client) Language() string {
	return c.cfg.Language
}

// NearbySearch returns the candidates around a point. ZERO_RESULTS yields an empty slice.
func (c *Client) NearbySearch(ctx context.Context, req NearbyRequest) ([]Place, error) {
	lang := req.Language
	if lang == "" {
		lang = c.cfg.Language
	}
	q := url.Values{}
	q.Set("location", strconv.FormatFloat(req.Lat, 'f', -1, 64)+","+strconv.FormatFloat(req.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(req.Radius))
	q.Set("type", req.Type)
	q.Set("language", lang)
	q.Set("key", c.cfg.APIKey)

	var resp nearbyResponse
	if err := c.getLegacyJSON(ctx, "nearby_search", c.cfg.BaseURL+"/nearbysearch/json?"+q.Encode(), &resp, &resp.legacyEnvelope); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []Place{}, nil
	}
	return resp.Results, nil
}

// Details fetches the requested fields of one place.
func (c *Client) Details(ctx context.Context, placeID string, fields []string) (*Details, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", strings.Join(fields, ","))
	q.Set("language", c.cfg.Language)
	q.Set("key", c.cfg.APIKey)

	var resp detailsResponse
	if err := c.getLegacyJSON(ctx, "details", c.cfg.BaseURL+"/details/json?"+q.Encode(), &resp, &resp.legacyEnvelope); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// Photo fetches a legacy photo reference; the provider's redirect is followed.
func (c *Client) Photo(ctx context.Context, photoReference string, maxWidth int) (*Image, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultPhotoMaxWidth
	}
	q := url.Values{}
	q.Set("photoreference", photoReference)
	q.Set("maxwidth", strconv.Itoa(maxWidth))
	q.Set("key", c.cfg.APIKey)

	return c.getImage(ctx, "photo", c.cfg.BaseURL+"/photo?"+q.Encode(), nil)
}

// PlacePhoto fetches a photo through the Places API (New) media endpoint.
// photoReference may be a full "places/{id}/photos/{ref}" name or a bare
// reference combined with placeID.
func (c *Client) PlacePhoto(ctx context.Context, placeID, photoReference string, maxWidth int) (*Image, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultPhotoMaxWidth
	}
	name, err := PhotoResourceName(placeID, photoReference)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("maxWidthPx", strconv.Itoa(maxWidth))

	header := http.Header{}
	header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	return c.getImage(ctx, "place_photo", c.cfg.V1BaseURL+"/"+name+"/media?"+q.Encode(), header)
}

// PhotoResourceName builds the v1 photo resource name.
func PhotoResourceName(placeID, photoReference string) (string, error) {
	photoReference = strings.Trim(photoReference, "/")
	if photoReference == "" {
		return "", fmt.Errorf("photo reference is required: %w", models.ErrInvalidArgument)
	}
	if strings.HasPrefix(photoReference, "places/") {
		return photoReference, nil
	}
	if placeID == "" {
		return "", fmt.Errorf("placeId is required for a bare photo reference: %w", models.ErrInvalidArgument)
	}
	return "places/" + url.PathEscape(placeID) + "/photos/" + url.PathEscape(photoReference), nil
}

// FieldMask turns requested text-search fields into the X-Goog-FieldMask header value.
func FieldMask(fields []string) string {
	if len(fields) == 0 {
		return DefaultTextSearchFieldMask
	}
	masked := make([]string, 0, len(fields))
	for _, f := range fields {
		masked = append(masked, "places."+f)
	}
	return strings.Join(masked, ",")
}

// TextSearch runs a Places API (New) text search and returns the first place
// exactly as upstream encoded it. No match yields models.ErrNotFound.
func (c *Client) TextSearch(ctx context.Context, textQuery string, fields []string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]string{
		"textQuery":    textQuery,
		"languageCode": c.cfg.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode text search: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	header.Set("X-Goog-FieldMask", FieldMask(fields))

	raw, err := c.do(ctx, "text_search", http.MethodPost, c.cfg.V1BaseURL+"/places:searchText", header, payload, maxJSONBodyBytes)
	if err != nil {
		return nil, err
	}
	if raw.status != http.StatusOK {
		return nil, &UpstreamError{
			Operation:  "text_search",
			HTTPStatus: raw.status,
			Message:    truncate(string(raw.body), 500),
		}
	}

	var resp struct {
		Places []json.RawMessage `json:"places"`
	}
	if err := json.Unmarshal(raw.body, &resp); err != nil {
		return nil, &UpstreamError{Operation: "text_search", HTTPStatus: raw.status, Message: "malformed response", Err: err}
	}
	if len(resp.Places) == 0 {
		return nil, fmt.Errorf("no place matches %q: %w", textQuery, models.ErrNotFound)
	}
	return resp.Places[0], nil
}

// getLegacyJSON performs a legacy GET and checks both HTTP and envelope status.
func (c *Client) getLegacyJSON(ctx context.Context, op, rawURL string, out any, env *legacyEnvelope) error {
	raw, err := c.do(ctx, op, http.MethodGet, rawURL, nil, nil, maxJSONBodyBytes)
	if err != nil {
		return err
	}
	if raw.status < 200 || raw.status > 299 {
		return &UpstreamError{Operation: op, HTTPStatus: raw.status, Message: http.StatusText(raw.status)}
	}
	if err := json.Unmarshal(raw.body, out); err != nil {
		return &UpstreamError{Operation: op, HTTPStatus: raw.status, Message: "malformed response", Err: err}
	}
	if env.Status != statusOK && env.Status != statusZeroResults {
		return &UpstreamError{Operation: op, HTTPStatus: raw.status, Status: env.Status, Message: env.ErrorMessage}
	}
	return nil
}

func (c *Client) getImage(ctx context.Context, op, rawURL string, header http.Header) (*Image, error) {
	raw, err := c.do(ctx, op, http.MethodGet, rawURL, header, nil, maxPhotoBodyBytes)
	if err != nil {
		return nil, err
	}
	if raw.status != http.StatusOK {
		return nil, &UpstreamError{Operation: op, HTTPStatus: raw.status, Message: http.StatusText(raw.status)}
	}
	contentType := raw.header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &Image{ContentType: contentType, Data: raw.body}, nil
}

// do sends one request through the circuit breaker. Transport failures and 5xx
// responses count against the breaker; any received response is returned.
func (c *Client) do(ctx context.Context, op, method, rawURL string, header http.Header, body []byte, limit int64) (*rawResponse, error) {
	ctx, span := c.tracer.Start(ctx, "places."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	raw, err := c.breaker.Execute(func() (*rawResponse, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{status: resp.StatusCode, header: resp.Header, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return raw, errServerStatus
		}
		return raw, nil
	})

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "circuit_open"
		err = &UpstreamError{Operation: op, HTTPStatus: http.StatusServiceUnavailable, Status: "CIRCUIT_OPEN", Message: "places provider temporarily disabled", Err: err}
	case errors.Is(err, errServerStatus):
		outcome = "server_error"
		err = nil
	case err != nil:
		outcome = "transport_error"
		err = &UpstreamError{Operation: op, Err: redactKey(err, c.cfg.APIKey)}
	case raw.status >= http.StatusBadRequest:
		outcome = "client_error"
	}
	c.recorder.ObserveUpstreamCall(op, outcome, time.Since(start))

	span.SetAttributes(attribute.String("places.operation", op), attribute.String("places.outcome", outcome))
	if raw != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", raw.status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return raw, nil
}

// redactKey strips the API key from transport errors, which embed the request URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}

// truncate bounds s to n runes. Invalid UTF-8 from upstream is replaced.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
