package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"condosync/config"
)

// Filter is the predicate for a listing fetch, rendered into the provider's
// boolean filter syntax by Encode.
type Filter struct {
	PropertyType  string
	ModifiedSince *time.Time
	City          string
	AddressPrefix string
	ListingKey    string
}

func (f Filter) Encode() string {
	var parts []string
	if f.PropertyType != "" {
		parts = append(parts, fmt.Sprintf("PropertyType eq '%s'", escapeLiteral(f.PropertyType)))
	}
	if f.ModifiedSince != nil {
		parts = append(parts, fmt.Sprintf("ModificationTimestamp gt '%s'", f.ModifiedSince.UTC().Format(time.RFC3339)))
	}
	if f.City != "" {
		parts = append(parts, fmt.Sprintf("City eq '%s'", escapeLiteral(f.City)))
	}
	if f.AddressPrefix != "" {
		parts = append(parts, fmt.Sprintf("startswith(UnparsedAddress,'%s')", escapeLiteral(f.AddressPrefix)))
	}
	if f.ListingKey != "" {
		parts = append(parts, fmt.Sprintf("ListingKey eq '%s'", escapeLiteral(f.ListingKey)))
	}
	return strings.Join(parts, " and ")
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Client talks to the upstream listing provider. All calls go through one
// rate limiter and one retry policy; pagination is strictly sequential
// because the upstream does not guarantee a stable sort across concurrent
// offset reads.
type Client struct {
	cfg     config.ProviderConfig
	http    *http.Client
	limiter *rate.Limiter
	retry   RetryPolicy
}

func NewClient(cfg config.ProviderConfig, httpClient *http.Client, retry RetryPolicy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retry,
	}
}

func (c *Client) resource(name string) string {
	if r, ok := c.cfg.Resources[name]; ok && r != "" {
		return r
	}
	return name
}

// FetchListings returns the complete set matching the filter by walking
// pages at increasing offsets until a short page. A failed page stops
// pagination and surfaces the partial set gathered so far together with the
// error; the caller decides whether partial results are acceptable.
func (c *Client) FetchListings(ctx context.Context, f Filter) ([]PropertyRecord, error) {
	var all []PropertyRecord
	pageSize := c.cfg.PageSize

	for skip := 0; ; skip += pageSize {
		rows, err := c.fetchValues(ctx, c.resource("property"), f.Encode(), pageSize, skip)
		if err != nil {
			return all, fmt.Errorf("page at offset %d: %w", skip, err)
		}

		for _, raw := range rows {
			rec, err := parseProperty(raw)
			if err != nil {
				log.Printf("Warning: skipping malformed property row: %v", err)
				continue
			}
			all = append(all, rec)
		}

		if len(rows) < pageSize {
			break
		}
	}

	return all, nil
}

// Count asks the provider for the total match count in lieu of rows.
func (c *Client) Count(ctx context.Context, f Filter) (int, error) {
	q := url.Values{}
	if filter := f.Encode(); filter != "" {
		q.Set("$filter", filter)
	}
	q.Set("$top", "0")
	q.Set("$count", "true")

	body, err := c.get(ctx, c.resource("property"), q)
	if err != nil {
		return 0, err
	}

	var envelope struct {
		Count *int `json:"@odata.count"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	if envelope.Count == nil {
		return 0, fmt.Errorf("count response missing @odata.count")
	}
	return *envelope.Count, nil
}

// FetchRooms returns the room layouts for one listing.
func (c *Client) FetchRooms(ctx context.Context, listingKey string) ([]RoomRecord, error) {
	rows, err := c.fetchAllValues(ctx, c.resource("room"), keyFilter(listingKey))
	if err != nil {
		return nil, err
	}
	out := make([]RoomRecord, 0, len(rows))
	for _, raw := range rows {
		var r RoomRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Printf("Warning: skipping malformed room row for %s: %v", listingKey, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FetchMedia returns the raw, undeduplicated media variants for one listing.
func (c *Client) FetchMedia(ctx context.Context, listingKey string) ([]MediaRecord, error) {
	filter := fmt.Sprintf("ResourceRecordKey eq '%s'", escapeLiteral(listingKey))
	rows, err := c.fetchAllValues(ctx, c.resource("media"), filter)
	if err != nil {
		return nil, err
	}
	out := make([]MediaRecord, 0, len(rows))
	for _, raw := range rows {
		var m MediaRecord
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Printf("Warning: skipping malformed media row for %s: %v", listingKey, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// FetchOpenHouses returns the open-house events for one listing.
func (c *Client) FetchOpenHouses(ctx context.Context, listingKey string) ([]OpenHouseRecord, error) {
	rows, err := c.fetchAllValues(ctx, c.resource("openhouse"), keyFilter(listingKey))
	if err != nil {
		return nil, err
	}
	out := make([]OpenHouseRecord, 0, len(rows))
	for _, raw := range rows {
		var o OpenHouseRecord
		if err := json.Unmarshal(raw, &o); err != nil {
			log.Printf("Warning: skipping malformed open house row for %s: %v", listingKey, err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func keyFilter(listingKey string) string {
	return fmt.Sprintf("ListingKey eq '%s'", escapeLiteral(listingKey))
}

// fetchAllValues pages through a sub-resource until a short page. Unlike
// FetchListings it does not surface partials; sub-resource sets are small
// and the caller degrades to empty on error.
func (c *Client) fetchAllValues(ctx context.Context, resource, filter string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	pageSize := c.cfg.PageSize

	for skip := 0; ; skip += pageSize {
		rows, err := c.fetchValues(ctx, resource, filter, pageSize, skip)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < pageSize {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchValues(ctx context.Context, resource, filter string, top, skip int) ([]json.RawMessage, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("$filter", filter)
	}
	q.Set("$top", fmt.Sprintf("%d", top))
	if skip > 0 {
		q.Set("$skip", fmt.Sprintf("%d", skip))
	}

	body, err := c.get(ctx, resource, q)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", resource, err)
	}
	// Absent value means end of pages.
	return envelope.Value, nil
}

func (c *Client) get(ctx context.Context, resource string, q url.Values) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + resource
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	var body []byte
	err := c.retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", resource, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			err := fmt.Errorf("%s returned %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(respBody)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s body: %w", resource, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
