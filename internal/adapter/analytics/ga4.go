// Package analytics delivers events to Google Analytics 4 through the
// Measurement Protocol.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/arturoeanton/dyana-web/internal/port"
	"github.com/google/uuid"
)

// ConsentSource reports whether the visitor accepted analytics cookies.
type ConsentSource interface {
	Consent(ctx context.Context) (bool, error)
}

// GA4Config holds the Measurement Protocol credentials.
type GA4Config struct {
	Endpoint      string // https://www.google-analytics.com/mp/collect
	MeasurementID string
	APISecret     string
	ClientID      string // empty = random per sink
}

// GA4Sink implements port.AnalyticsSink.
type GA4Sink struct {
	cfg        GA4Config
	consent    ConsentSource
	httpClient *http.Client
}

// NewGA4Sink creates a sink. consent may be nil, meaning consent is implied.
func NewGA4Sink(cfg GA4Config, consent ConsentSource) *GA4Sink {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	return &GA4Sink{
		cfg:        cfg,
		consent:    consent,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Ready reports whether credentials are configured and consent was granted.
func (g *GA4Sink) Ready() bool {
	if g.cfg.MeasurementID == "" || g.cfg.APISecret == "" {
		return false
	}
	if g.consent == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ok, err := g.consent.Consent(ctx)
	return err == nil && ok
}

// Event sends a generic event.
func (g *GA4Sink) Event(ctx context.Context, name string, params map[string]any) error {
	return g.send(ctx, name, params)
}

// Conversion sends a conversion event carrying the label and monetary value.
func (g *GA4Sink) Conversion(ctx context.Context, label string, value float64, currency string) error {
	return g.send(ctx, "conversion", map[string]any{
		"send_to":  label,
		"value":    value,
		"currency": currency,
	})
}

func (g *GA4Sink) send(ctx context.Context, name string, params map[string]any) error {
	payload := map[string]any{
		"client_id": g.cfg.ClientID,
		"events": []map[string]any{
			{"name": name, "params": params},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ga4 marshal: %w", err)
	}

	q := url.Values{
		"measurement_id": {g.cfg.MeasurementID},
		"api_secret":     {g.cfg.APISecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ga4 create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", port.ErrAnalyticsDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: ga4 status %d", port.ErrAnalyticsDelivery, resp.StatusCode)
	}
	return nil
}
