// Package postal resolves Brazilian postal codes (CEP) through a
// ViaCEP-compatible web service.
package postal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
)

const DefaultBaseURL = "https://viacep.com.br"

// Client talks to the lookup service.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ domain.PostalLookup = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type viaCEPResponse struct {
	Logradouro  string          `json:"logradouro"`
	Complemento string          `json:"complemento"`
	Bairro      string          `json:"bairro"`
	Localidade  string          `json:"localidade"`
	UF          string          `json:"uf"`
	Erro        json.RawMessage `json:"erro"`
}

// notFound handles both `"erro": true` and `"erro": "true"`.
func (r viaCEPResponse) notFound() bool {
	v := bytes.Trim(r.Erro, `"`)
	return bytes.Equal(v, []byte("true"))
}

// Lookup expects an 8 digit code.
func (c *Client) Lookup(ctx context.Context, postalCode string) (domain.PostalAddress, bool, error) {
	endpoint := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, postalCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PostalAddress{}, false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PostalAddress{}, false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return domain.PostalAddress{}, false, nil
	case resp.StatusCode != http.StatusOK:
		return domain.PostalAddress{}, false, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.PostalAddress{}, false, fmt.Errorf("decode response: %w", err)
	}
	if body.notFound() {
		return domain.PostalAddress{}, false, nil
	}

	return domain.PostalAddress{
		AddressLine:  body.Logradouro,
		Neighborhood: body.Bairro,
		City:         body.Localidade,
		Region:       body.UF,
	}, true, nil
}
