package mailchimp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type member struct {
	Email       string
	Status      string
	MergeFields map[string]string
	Tags        map[string]string
}

// fakeAudience mimics the members endpoints of one Mailchimp list.
type fakeAudience struct {
	mu       sync.Mutex
	members  map[string]*member
	requests int
	fail     bool
}

func newFakeAudience() *fakeAudience {
	return &fakeAudience{members: make(map[string]*member)}
}

func (f *fakeAudience) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	if user, pass, ok := r.BasicAuth(); !ok || user != "anystring" || pass != "key-us1" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"title":"API Key Invalid","status":401,"detail":"Your API key may be invalid"}`)
		return
	}
	if f.fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"title":"Invalid Resource","status":400,"detail":"Please provide a valid email address."}`)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// 3.0 lists {list} members {hash} [tags]
	if len(parts) < 5 || parts[2] != "list1" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	hash := parts[4]

	switch {
	case r.Method == http.MethodPut && len(parts) == 5:
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m, ok := f.members[hash]
		if !ok {
			m = &member{Status: req.StatusIfNew, Tags: make(map[string]string)}
			f.members[hash] = m
		}
		m.Email = req.EmailAddress
		m.MergeFields = req.MergeFields
		_ = json.NewEncoder(w).Encode(map[string]string{"id": hash, "status": m.Status})
	case r.Method == http.MethodPost && len(parts) == 6 && parts[5] == "tags":
		m, ok := f.members[hash]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"title":"Resource Not Found","status":404,"detail":"The requested resource could not be found."}`)
			return
		}
		var req tagsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, t := range req.Tags {
			m.Tags[t.Name] = t.Status
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIKey:     "key-us1",
		AudienceID: "list1",
		BaseURL:    url,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubscriberHash(t *testing.T) {
	h := SubscriberHash("Ana@Example.com")
	assert.Len(t, h, 32)
	assert.Equal(t, h, SubscriberHash("ana@example.com"))
	assert.Equal(t, h, SubscriberHash("  ANA@EXAMPLE.COM "))
	assert.NotEqual(t, h, SubscriberHash("ana@example.org"))
}

func TestUpsertContactIsIdempotent(t *testing.T) {
	audience := newFakeAudience()
	srv := httptest.NewServer(audience)
	defer srv.Close()

	c := newTestClient(srv.URL)
	fields := map[string]string{"RECIPIENT": "Ana", "AMOUNT": "25.00 EUR"}
	ctx := context.Background()

	require.NoError(t, c.UpsertContact(ctx, "Ana@Example.com", fields))
	first := *audience.members[SubscriberHash("ana@example.com")]

	require.NoError(t, c.UpsertContact(ctx, "ana@example.com", fields))
	require.Len(t, audience.members, 1)
	second := *audience.members[SubscriberHash("ana@example.com")]

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.MergeFields, second.MergeFields)
	assert.Equal(t, "subscribed", second.Status)
	assert.Equal(t, "Ana", second.MergeFields["RECIPIENT"])
}

func TestTagContact(t *testing.T) {
	audience := newFakeAudience()
	srv := httptest.NewServer(audience)
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	require.NoError(t, c.UpsertContact(ctx, "buyer@example.com", nil))
	require.NoError(t, c.TagContact(ctx, "buyer@example.com", "gift_buyer"))
	require.NoError(t, c.TagContact(ctx, "buyer@example.com", "tarjeta_regalo"))

	m := audience.members[SubscriberHash("buyer@example.com")]
	require.NotNil(t, m)
	assert.Equal(t, map[string]string{"gift_buyer": "active", "tarjeta_regalo": "active"}, m.Tags)

	err := c.TagContact(ctx, "unknown@example.com", "gift_buyer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be found")
}

func TestNoOpWithoutEmailOrConfig(t *testing.T) {
	audience := newFakeAudience()
	srv := httptest.NewServer(audience)
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	assert.NoError(t, c.UpsertContact(ctx, "", map[string]string{"A": "b"}))
	assert.NoError(t, c.UpsertContact(ctx, "   ", nil))
	assert.NoError(t, c.TagContact(ctx, "", "gift_buyer"))

	unconfigured := NewClient(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, unconfigured.Enabled())
	assert.NoError(t, unconfigured.UpsertContact(ctx, "a@b.com", nil))
	assert.NoError(t, unconfigured.TagContact(ctx, "a@b.com", "x"))

	assert.Equal(t, 0, audience.requests)
}

func TestErrorStatus(t *testing.T) {
	audience := newFakeAudience()
	audience.fail = true
	srv := httptest.NewServer(audience)
	defer srv.Close()

	err := newTestClient(srv.URL).UpsertContact(context.Background(), "a@b.com", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "valid email address")
}

func TestBaseURLFromPrefix(t *testing.T) {
	c := NewClient(Config{APIKey: "k", ServerPrefix: "us21", AudienceID: "l"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "https://us21.api.mailchimp.com", c.baseURL)
	assert.True(t, c.Enabled())
}
