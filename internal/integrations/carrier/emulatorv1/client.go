package emulatorv1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/integrations/carrier"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type respEvent struct {
	Status    string          `json:"status"`
	StatusRaw string          `json:"status_raw"`
	EventTime time.Time       `json:"event_time"`
	Location  *string         `json:"location,omitempty"`
	Message   *string         `json:"message,omitempty"`
	Lat       *float64        `json:"lat,omitempty"`
	Lng       *float64        `json:"lng,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type respBody struct {
	Carrier        string      `json:"carrier"`
	TrackingNumber string      `json:"track_number"`
	Status         string      `json:"status"`
	StatusRaw      string      `json:"status_raw"`
	StatusAt       *time.Time  `json:"status_at"`
	Events         []respEvent `json:"events"`
}

func (c *Client) GetTracking(ctx context.Context, carrierCode, trackingNumber string) (carrier.TrackingResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/tracking/%s/%s", url.PathEscape(carrierCode), url.PathEscape(trackingNumber))
	q := u.Query()
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return carrier.TrackingResult{}, errs.Upstream("carrier emulator", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return carrier.TrackingResult{}, errs.Upstream("carrier emulator rate limit (429)", nil)
	case resp.StatusCode == http.StatusNotFound:
		return carrier.TrackingResult{}, errs.NotFound("tracking number", trackingNumber)
	case resp.StatusCode/100 == 5:
		return carrier.TrackingResult{}, errs.Upstream(fmt.Sprintf("carrier emulator http %d", resp.StatusCode), nil)
	case resp.StatusCode/100 != 2:
		return carrier.TrackingResult{}, errors.Errorf("carrier emulator http %d", resp.StatusCode)
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return carrier.TrackingResult{}, errors.Wrap(err, "decode")
	}

	status := rb.Status
	if status == "" {
		status = "UNKNOWN"
	}

	evs := make([]carrier.Event, 0, len(rb.Events))
	for _, e := range rb.Events {
		evs = append(evs, carrier.Event{
			Status:    e.Status,
			StatusRaw: e.StatusRaw,
			EventTime: e.EventTime,
			Location:  e.Location,
			Message:   e.Message,
			Lat:       e.Lat,
			Lng:       e.Lng,
			Payload:   e.Payload,
		})
	}

	return carrier.TrackingResult{
		Status:    status,
		StatusRaw: rb.StatusRaw,
		StatusAt:  rb.StatusAt,
		Events:    evs,
	}, nil
}
