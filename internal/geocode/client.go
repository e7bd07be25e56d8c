package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrNoResults = errors.New("no geocoding results")

// Client talks to a Google Maps style geocoding and places API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL, apiKey string, rps float64) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type apiStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (s apiStatus) err() error {
	switch s.Status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return ErrNoResults
	}
	if s.ErrorMessage != "" {
		return fmt.Errorf("geocoder status %s: %s", s.Status, s.ErrorMessage)
	}
	return fmt.Errorf("geocoder status %s", s.Status)
}

// ReverseGeocode resolves coordinates to the best matching address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (Result, error) {
	var body struct {
		apiStatus
		Results []Result `json:"results"`
	}
	params := url.Values{}
	params.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	if err := c.get(ctx, "/geocode/json", params, &body); err != nil {
		return Result{}, err
	}
	if err := body.err(); err != nil {
		return Result{}, err
	}
	if len(body.Results) == 0 {
		return Result{}, ErrNoResults
	}
	return body.Results[0], nil
}

// SearchPlaceText returns autocomplete predictions for free text.
func (c *Client) SearchPlaceText(ctx context.Context, text string) ([]Prediction, error) {
	var body struct {
		apiStatus
		Predictions []Prediction `json:"predictions"`
	}
	params := url.Values{}
	params.Set("input", text)
	if err := c.get(ctx, "/place/autocomplete/json", params, &body); err != nil {
		return nil, err
	}
	if err := body.err(); err != nil {
		if errors.Is(err, ErrNoResults) {
			return []Prediction{}, nil
		}
		return nil, err
	}
	return body.Predictions, nil
}

// PlaceDetails resolves a prediction's place id to coordinates and address parts.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (Place, error) {
	var body struct {
		apiStatus
		Result struct {
			PlaceID          string      `json:"place_id"`
			Name             string      `json:"name"`
			FormattedAddress string      `json:"formatted_address"`
			Components       []Component `json:"address_components"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
	}
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "place_id,name,formatted_address,address_component,geometry")
	if err := c.get(ctx, "/place/details/json", params, &body); err != nil {
		return Place{}, err
	}
	if err := body.err(); err != nil {
		return Place{}, err
	}
	r := body.Result
	return Place{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		Components:       r.Components,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode geocoder response: %w", err)
	}
	return nil
}
