// Package arxiv fetches paper metadata from arXiv's public Atom export API,
// one of SPEC_FULL.md §6's "thin net/http JSON clients" for ingestion
// discovery. Grounded on `tool/brave.go`'s request/timeout/header shape
// (same context-aware http.Client pattern), adapted for arXiv's XML Atom
// feed rather than JSON since that is the only format arXiv's export API
// offers.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"
const defaultTimeout = 10 * time.Second

// Paper is one arXiv entry's metadata.
type Paper struct {
	ID        string
	Title     string
	Summary   string
	Authors   []string
	Published time.Time
	PDFURL    string
}

// Client queries the arXiv export API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New constructs a Client pointed at arXiv's public export endpoint.
func New() *Client {
	return &Client{BaseURL: defaultBaseURL, HTTPClient: &http.Client{Timeout: defaultTimeout}}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

// Search returns up to maxResults papers matching query against arXiv's
// "all fields" search.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", fmt.Sprintf("%d", maxResults))

	reqURL := fmt.Sprintf("%s?%s", c.baseURL(), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Fatal, err, "arxiv: build request")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "arxiv: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, kinderr.New(kinderr.TransientIO, "arxiv: provider returned status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, kinderr.Wrap(kinderr.Fatal, err, "arxiv: decode atom feed")
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		p := Paper{
			ID:      strings.TrimSpace(e.ID),
			Title:   strings.Join(strings.Fields(e.Title), " "),
			Summary: strings.Join(strings.Fields(e.Summary), " "),
		}
		for _, a := range e.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
			p.Published = t
		}
		for _, l := range e.Links {
			if l.Type == "application/pdf" || l.Rel == "related" {
				p.PDFURL = l.Href
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
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
