// Package translate provides machine translation for non-English ingestion
// sources and for `path.Explainer`'s locale output (spec.md §6), behind one
// small interface with two thin net/http backends: DeepL and Google
// Cloud Translation. Grounded on `tool/brave.go`'s request/JSON-decode
// pattern, and on `llmclient`'s "one interface, many providers" shape so
// callers depend on `translate.Client`, never a concrete backend.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

const defaultTimeout = 2 * time.Second

// Client translates text from one language to another.
type Client interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// DeepLClient translates via the DeepL API.
type DeepLClient struct {
	APIKey     string
	BaseURL    string // e.g. https://api-free.deepl.com/v2/translate
	HTTPClient *http.Client
}

// NewDeepL constructs a DeepLClient against the free-tier endpoint by
// default; set BaseURL for the Pro endpoint.
func NewDeepL(apiKey string) *DeepLClient {
	return &DeepLClient{
		APIKey:     apiKey,
		BaseURL:    "https://api-free.deepl.com/v2/translate",
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type deeplResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (c *DeepLClient) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if c.APIKey == "" {
		return "", kinderr.New(kinderr.ValidationError, "translate: deepl API key not configured").WithField("api_key")
	}
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(targetLang))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", kinderr.Wrap(kinderr.Fatal, err, "translate: build deepl request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", kinderr.Wrap(kinderr.TransientIO, err, "translate: deepl request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", kinderr.New(kinderr.RateLimited, "translate: deepl rate limited").WithRetryAfter(30)
	}
	if resp.StatusCode != http.StatusOK {
		return "", kinderr.New(kinderr.TransientIO, "translate: deepl returned status %d", resp.StatusCode)
	}

	var parsed deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", kinderr.Wrap(kinderr.Fatal, err, "translate: decode deepl response")
	}
	if len(parsed.Translations) == 0 {
		return "", kinderr.New(kinderr.TransientIO, "translate: deepl returned no translations")
	}
	return parsed.Translations[0].Text, nil
}

func (c *DeepLClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// GoogleClient translates via the Google Cloud Translation v2 REST API.
type GoogleClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGoogle constructs a GoogleClient against the public v2 endpoint.
func NewGoogle(apiKey string) *GoogleClient {
	return &GoogleClient{
		APIKey:     apiKey,
		BaseURL:    "https://translation.googleapis.com/language/translate/v2",
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

func (c *GoogleClient) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if c.APIKey == "" {
		return "", kinderr.New(kinderr.ValidationError, "translate: google API key not configured").WithField("api_key")
	}
	params := url.Values{}
	params.Set("key", c.APIKey)
	params.Set("q", text)
	params.Set("target", targetLang)
	params.Set("format", "text")

	reqURL := fmt.Sprintf("%s?%s", c.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return "", kinderr.Wrap(kinderr.Fatal, err, "translate: build google request")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", kinderr.Wrap(kinderr.TransientIO, err, "translate: google request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", kinderr.New(kinderr.RateLimited, "translate: google rate limited").WithRetryAfter(30)
	}
	if resp.StatusCode != http.StatusOK {
		return "", kinderr.New(kinderr.TransientIO, "translate: google returned status %d", resp.StatusCode)
	}

	var parsed googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", kinderr.Wrap(kinderr.Fatal, err, "translate: decode google response")
	}
	if len(parsed.Data.Translations) == 0 {
		return "", kinderr.New(kinderr.TransientIO, "translate: google returned no translations")
	}
	return parsed.Data.Translations[0].TranslatedText, nil
}

func (c *GoogleClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}
