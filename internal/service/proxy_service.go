package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/dyana-web/internal/port"
)

// Upstream endpoints of the astrology service.
const (
	NatalPath     = "/tema_ai"
	SynastryPath  = "/sinastria_ai"
	HoroscopePath = "/oroscopo_ai/"
)

// EngineHeader selects the computation engine for horoscope requests.
const EngineHeader = "X-Engine"

// HoroscopePeriods lists the accepted horoscope period segments.
var HoroscopePeriods = []string{"daily", "weekly", "monthly", "yearly"}

var (
	natalRequired  = []string{"citta", "data", "ora", "tier"}
	personRequired = []string{"nome", "citta", "data", "ora"}
)

// ValidationError lists the missing or invalid request fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return port.ErrValidation }

// ProxyService validates form submissions and relays them to the astrology
// service. It adds no business logic and never retries.
type ProxyService struct {
	astro  port.AstroService
	engine string
}

// NewProxyService creates a proxy over astro. engine is sent with
// horoscope requests.
func NewProxyService(astro port.AstroService, engine string) *ProxyService {
	return &ProxyService{astro: astro, engine: engine}
}

// Natal forwards a natal chart request. citta, data, ora and tier are
// required; nome is optional.
func (s *ProxyService) Natal(ctx context.Context, body []byte) (*port.UpstreamResponse, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if missing := missingFields(payload, "", natalRequired); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}
	return s.forward(ctx, NatalPath, body, nil)
}

// Synastry forwards a compatibility request for persons A and B.
func (s *ProxyService) Synastry(ctx context.Context, body []byte) (*port.UpstreamResponse, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range []string{"A", "B"} {
		person, ok := payload[key].(map[string]any)
		if !ok {
			missing = append(missing, key)
			continue
		}
		missing = append(missing, missingFields(person, key+".", personRequired)...)
	}
	missing = append(missing, missingFields(payload, "", []string{"tier"})...)
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}
	return s.forward(ctx, SynastryPath, body, nil)
}

// Horoscope forwards a horoscope request for period. An empty body is sent
// as an empty object.
func (s *ProxyService) Horoscope(ctx context.Context, period string, body []byte) (*port.UpstreamResponse, error) {
	if !validPeriod(period) {
		return nil, &ValidationError{Fields: []string{"period"}}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	} else if _, err := decodeObject(body); err != nil {
		return nil, err
	}

	var headers map[string]string
	if s.engine != "" {
		headers = map[string]string{EngineHeader: s.engine}
	}
	return s.forward(ctx, HoroscopePath+period, body, headers)
}

func (s *ProxyService) forward(ctx context.Context, path string, body []byte, headers map[string]string) (*port.UpstreamResponse, error) {
	resp, err := s.astro.Forward(ctx, path, body, headers)
	if err != nil {
		slog.Error("astro forward failed", "path", path, "error", err)
		return nil, err
	}
	slog.Debug("astro forward", "path", path, "status", resp.Status)
	return resp, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", port.ErrValidation)
	}
	return payload, nil
}

// missingFields returns the keys of required that are absent, null or
// blank strings in obj, each prefixed with prefix.
func missingFields(obj map[string]any, prefix string, required []string) []string {
	var missing []string
	for _, key := range required {
		switch v := obj[key].(type) {
		case nil:
			missing = append(missing, prefix+key)
		case string:
			if strings.TrimSpace(v) == "" {
				missing = append(missing, prefix+key)
			}
		}
	}
	return missing
}

func validPeriod(period string) bool {
	for _, p := range HoroscopePeriods {
		if p == period {
			return true
		}
	}
	return false
}
