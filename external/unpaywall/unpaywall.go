// Package unpaywall resolves open-access PDF locations for a DOI via the
// Unpaywall API, one of SPEC_FULL.md §6's thin net/http JSON ingestion
// clients. Grounded on `tool/brave.go`'s request/JSON-decode/timeout
// pattern.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

const defaultBaseURL = "https://api.unpaywall.org/v2"
const defaultTimeout = 10 * time.Second

// Location is one open-access host location for a work.
type Location struct {
	URL              string
	HostType         string // "publisher" or "repository"
	License          string
	IsBestOpenAccess bool
}

// Client resolves DOIs to open-access locations.
type Client struct {
	BaseURL    string
	Email      string // Unpaywall requires a contact email as a query parameter
	HTTPClient *http.Client
}

// New constructs a Client. email is required by the Unpaywall API's terms
// of use.
func New(email string) *Client {
	return &Client{BaseURL: defaultBaseURL, Email: email, HTTPClient: &http.Client{Timeout: defaultTimeout}}
}

type unpaywallResponse struct {
	BestOALocation *rawLocation  `json:"best_oa_location"`
	OALocations    []rawLocation `json:"oa_locations"`
}

type rawLocation struct {
	URL      string `json:"url_for_pdf"`
	HostType string `json:"host_type"`
	License  string `json:"license"`
}

// Resolve returns every known open-access location for doi, best location
// first.
func (c *Client) Resolve(ctx context.Context, doi string) ([]Location, error) {
	if c.Email == "" {
		return nil, kinderr.New(kinderr.ValidationError, "unpaywall: contact email not configured").WithField("email")
	}

	params := url.Values{}
	params.Set("email", c.Email)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL(), url.PathEscape(doi), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Fatal, err, "unpaywall: build request")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "unpaywall: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, kinderr.New(kinderr.NotFound, "unpaywall: no record for doi %q", doi)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, kinderr.New(kinderr.TransientIO, "unpaywall: provider returned status %d", resp.StatusCode)
	}

	var parsed unpaywallResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, kinderr.Wrap(kinderr.Fatal, err, "unpaywall: decode response")
	}

	var locations []Location
	if parsed.BestOALocation != nil && parsed.BestOALocation.URL != "" {
		locations = append(locations, Location{
			URL: parsed.BestOALocation.URL, HostType: parsed.BestOALocation.HostType,
			License: parsed.BestOALocation.License, IsBestOpenAccess: true,
		})
	}
	for _, l := range parsed.OALocations {
		if l.URL == "" || (parsed.BestOALocation != nil && l.URL == parsed.BestOALocation.URL) {
			continue
		}
		locations = append(locations, Location{URL: l.URL, HostType: l.HostType, License: l.License})
	}
	return locations, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}
