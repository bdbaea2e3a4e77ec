package mailchimp

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"giftsync/lib/sl"
)

type Config struct {
	APIKey       string
	ServerPrefix string
	AudienceID   string
	// BaseURL overrides https://<prefix>.api.mailchimp.com, used in tests.
	BaseURL string
}

type Client struct {
	hc         *http.Client
	baseURL    string
	apiKey     string
	audienceID string
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" && cfg.ServerPrefix != "" {
		baseURL = fmt.Sprintf("https://%s.api.mailchimp.com", cfg.ServerPrefix)
	}
	return &Client{
		hc:         &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		audienceID: cfg.AudienceID,
		log:        logger.With(sl.Module("mailchimp")),
	}
}

// Enabled reports whether the audience can be reached at all.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.audienceID != "" && c.apiKey != ""
}

// SubscriberHash is the member ID Mailchimp derives from an address.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

type memberRequest struct {
	EmailAddress string            `json:"email_address"`
	StatusIfNew  string            `json:"status_if_new"`
	MergeFields  map[string]string `json:"merge_fields,omitempty"`
}

type tag struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type tagsRequest struct {
	Tags []tag `json:"tags"`
}

// problem is the error body of the Marketing API.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// UpsertContact creates the member or updates its merge fields. An empty
// email or a client without configuration is a no-op.
func (c *Client) UpsertContact(ctx context.Context, email string, mergeFields map[string]string) error {
	email = strings.TrimSpace(email)
	if email == "" || !c.Enabled() {
		return nil
	}
	path := fmt.Sprintf("/3.0/lists/%s/members/%s", c.audienceID, SubscriberHash(email))
	_, err := c.request(ctx, http.MethodPut, path, memberRequest{
		EmailAddress: email,
		StatusIfNew:  "subscribed",
		MergeFields:  mergeFields,
	})
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// TagContact activates a tag on the member. An empty email is a no-op.
func (c *Client) TagContact(ctx context.Context, email, tagName string) error {
	email = strings.TrimSpace(email)
	if email == "" || tagName == "" || !c.Enabled() {
		return nil
	}
	path := fmt.Sprintf("/3.0/lists/%s/members/%s/tags", c.audienceID, SubscriberHash(email))
	_, err := c.request(ctx, http.MethodPost, path, tagsRequest{
		Tags: []tag{{Name: tagName, Status: "active"}},
	})
	if err != nil {
		return fmt.Errorf("tag contact %s: %w", tagName, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	log := c.log.With(
		slog.String("method", method),
		slog.String("path", path),
	)

	status := "ERROR"
	t1 := time.Now()
	defer func() {
		log.Debug("mailchimp API request completed",
			slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
			slog.String("status", status))
	}()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("anystring", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	status = resp.Status
	if resp.StatusCode >= 300 {
		var p problem
		if json.Unmarshal(body, &p) == nil && p.Detail != "" {
			return nil, fmt.Errorf("mailchimp %s: %s", resp.Status, p.Detail)
		}
		return nil, fmt.Errorf("mailchimp %s: %s", resp.Status, body)
	}
	return body, nil
}
