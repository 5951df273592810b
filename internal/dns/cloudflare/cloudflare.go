// Package cloudflare implements dns.Provider against the Cloudflare v4 API.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/dns"
)

// defaultBaseURL is the production Cloudflare API endpoint.
const defaultBaseURL = "https://api.cloudflare.com/client/v4"

const defaultPerPage = 100

func init() {
	dns.Register("cloudflare", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for Cloudflare.
type Provider struct {
	baseURL  string
	apiToken string
	email    string
	apiKey   string
	perPage  int
	client   *http.Client
	log      logr.Logger
}

// New creates a Cloudflare provider from the given settings map.
// Required settings: either api_token, or both email and api_key.
// Optional settings: base_url (for testing), per_page (default 100).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	apiToken := settings["api_token"]
	email := settings["email"]
	apiKey := settings["api_key"]
	if apiToken == "" && (email == "" || apiKey == "") {
		return nil, fmt.Errorf("cloudflare: either setting 'api_token' or both 'email' and 'api_key' are required")
	}
	if apiToken != "" && apiKey != "" {
		return nil, fmt.Errorf("cloudflare: settings 'api_token' and 'api_key' cannot both be set")
	}

	baseURL := settings["base_url"]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	perPage := defaultPerPage
	if v := settings["per_page"]; v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("cloudflare: invalid per_page %q", v)
		}
		perPage = parsed
	}

	return &Provider{
		baseURL:  baseURL,
		apiToken: apiToken,
		email:    email,
		apiKey:   apiKey,
		perPage:  perPage,
		client:   &http.Client{},
		log:      log,
	}, nil
}

// apiError is one entry of the "errors" array in a Cloudflare response.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the common Cloudflare v4 response wrapper.
type envelope struct {
	Success    bool            `json:"success"`
	Errors     []apiError      `json:"errors"`
	Result     json.RawMessage `json:"result"`
	ResultInfo struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"result_info"`
}

// doRequest executes one API call and decodes the response envelope.
func (p *Provider) doRequest(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := strings.TrimRight(p.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: build request: %w", err)
	}
	if p.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiToken)
	} else {
		req.Header.Set("X-Auth-Email", p.email)
		req.Header.Set("X-Auth-Key", p.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		msg := ""
		if decodeErr == nil && len(env.Errors) > 0 {
			msg = env.Errors[0].Message
		}
		status := resp.StatusCode
		if status >= 200 && status < 300 {
			// success=false under a 2xx status; report it as a client error.
			status = http.StatusBadRequest
		}
		return nil, &dns.StatusError{StatusCode: status, Endpoint: method + " " + path, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("cloudflare: decode %s %s response: %w", method, path, decodeErr)
	}
	return &env, nil
}

// zoneJSON is the subset of the zone object this tool needs.
type zoneJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// recordJSON is the wire shape of a DNS record.
type recordJSON struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	TTL      *int   `json:"ttl,omitempty"`
	Proxied  *bool  `json:"proxied,omitempty"`
	Priority *int   `json:"priority,omitempty"`
}

// ListZones returns all zones visible to the credentials, paginated.
func (p *Provider) ListZones(ctx context.Context) ([]dns.Zone, error) {
	var zones []dns.Zone
	for page := 1; ; page++ {
		env, err := p.doRequest(ctx, http.MethodGet,
			fmt.Sprintf("zones?page=%d&per_page=%d", page, p.perPage), nil)
		if err != nil {
			return nil, err
		}
		var batch []zoneJSON
		if err := json.Unmarshal(env.Result, &batch); err != nil {
			return nil, fmt.Errorf("cloudflare: decode zone list: %w", err)
		}
		for _, z := range batch {
			zones = append(zones, dns.Zone{ID: z.ID, Name: z.Name})
		}
		if env.ResultInfo.TotalPages == 0 || page >= env.ResultInfo.TotalPages {
			break
		}
	}
	p.log.V(1).Info("listed zones", "count", len(zones))
	return zones, nil
}

// ListRecords returns all records in the zone, paginated.
func (p *Provider) ListRecords(ctx context.Context, zoneID string) ([]dns.Record, error) {
	var records []dns.Record
	for page := 1; ; page++ {
		env, err := p.doRequest(ctx, http.MethodGet,
			fmt.Sprintf("zones/%s/dns_records?page=%d&per_page=%d", zoneID, page, p.perPage), nil)
		if err != nil {
			return nil, err
		}
		var batch []recordJSON
		if err := json.Unmarshal(env.Result, &batch); err != nil {
			return nil, fmt.Errorf("cloudflare: decode record list: %w", err)
		}
		for _, r := range batch {
			records = append(records, recordFromJSON(r))
		}
		if env.ResultInfo.TotalPages == 0 || page >= env.ResultInfo.TotalPages {
			break
		}
	}
	return records, nil
}

// CreateZone creates a new zone.
func (p *Provider) CreateZone(ctx context.Context, name string) (dns.Zone, error) {
	p.log.Info("creating zone", "zone", name)
	env, err := p.doRequest(ctx, http.MethodPost, "zones", map[string]interface{}{"name": name})
	if err != nil {
		return dns.Zone{}, err
	}
	var z zoneJSON
	if err := json.Unmarshal(env.Result, &z); err != nil {
		return dns.Zone{}, fmt.Errorf("cloudflare: decode created zone: %w", err)
	}
	return dns.Zone{ID: z.ID, Name: z.Name}, nil
}

// CreateRecord creates a record in the zone.
func (p *Provider) CreateRecord(ctx context.Context, zoneID string, record dns.Record) (dns.Record, error) {
	p.log.Info("creating record", "zone", zoneID, "name", record.Name, "type", record.Type)
	env, err := p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("zones/%s/dns_records", zoneID), recordToJSON(record))
	if err != nil {
		return dns.Record{}, err
	}
	var r recordJSON
	if err := json.Unmarshal(env.Result, &r); err != nil {
		return dns.Record{}, fmt.Errorf("cloudflare: decode created record: %w", err)
	}
	return recordFromJSON(r), nil
}

// UpdateRecord replaces an existing record.
func (p *Provider) UpdateRecord(ctx context.Context, zoneID, recordID string, record dns.Record) error {
	p.log.Info("updating record", "zone", zoneID, "id", recordID, "name", record.Name)
	_, err := p.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("zones/%s/dns_records/%s", zoneID, recordID), recordToJSON(record))
	return err
}

// DeleteRecord removes a record.
func (p *Provider) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	p.log.Info("deleting record", "zone", zoneID, "id", recordID)
	_, err := p.doRequest(ctx, http.MethodDelete,
		fmt.Sprintf("zones/%s/dns_records/%s", zoneID, recordID), nil)
	return err
}

func recordToJSON(r dns.Record) recordJSON {
	out := recordJSON{
		Type:     r.Type,
		Name:     r.Name,
		Content:  r.Value,
		TTL:      r.TTL,
		Proxied:  r.Proxied,
		Priority: r.Priority,
	}
	if out.TTL == nil {
		// 1 means "automatic" to Cloudflare; an absent ttl is rejected.
		auto := 1
		out.TTL = &auto
	}
	return out
}

func recordFromJSON(r recordJSON) dns.Record {
	rec := dns.Record{
		ID:       r.ID,
		Name:     r.Name,
		Type:     r.Type,
		Value:    r.Content,
		Proxied:  r.Proxied,
		Priority: r.Priority,
	}
	// Report the automatic TTL as unset so it compares equal to specs that
	// leave ttl to the provider default.
	if r.TTL != nil && *r.TTL != 1 {
		rec.TTL = r.TTL
	}
	return rec
}
