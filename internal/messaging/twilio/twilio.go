// Package twilio delivers messages through the Twilio Programmable Messaging
// REST API and validates Twilio webhook signatures.
package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/MrWong99/voxbridge/internal/messaging"
)

const (
	// DefaultAPIBaseURL is the Twilio REST API base URL.
	DefaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

	// SignatureHeader carries the request signature on inbound webhooks.
	SignatureHeader = "X-Twilio-Signature"

	defaultTimeout = 15 * time.Second
)

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL overrides the REST API base URL. Used for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithChannel sets the address prefix applied to From and To.
// Default: "whatsapp". An empty channel sends plain SMS addresses.
func WithChannel(ch string) Option {
	return func(c *Client) { c.channel = ch }
}

// Client is a [messaging.Sender] for Twilio. Safe for concurrent use.
type Client struct {
	accountSID string
	authToken  string
	from       string
	channel    string
	baseURL    string
	httpClient *http.Client
}

var _ messaging.Sender = (*Client)(nil)

// New creates a Client. The sender address is normalized once here.
func New(accountSID, authToken, from string, opts ...Option) (*Client, error) {
	var errs []error
	if accountSID == "" {
		errs = append(errs, errors.New("twilio: account SID must not be empty"))
	}
	if authToken == "" {
		errs = append(errs, errors.New("twilio: auth token must not be empty"))
	}
	if strings.TrimSpace(from) == "" {
		errs = append(errs, errors.New("twilio: from address must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		channel:    messaging.ChannelWhatsApp,
		baseURL:    DefaultAPIBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	c.from = messaging.NormalizeAddress(c.channel, from)
	return c, nil
}

// From returns the normalized sender address.
func (c *Client) From() string { return c.from }

// APIError is the error body Twilio returns for rejected requests.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio: status %d: code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("twilio: status %d: %s", e.StatusCode, e.Message)
}

// Send implements [messaging.Sender] with POST /Accounts/{sid}/Messages.json.
func (c *Client) Send(ctx context.Context, msg messaging.Message) error {
	if msg.Body == "" && msg.MediaURL == "" {
		return errors.New("twilio: message has neither body nor media")
	}
	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", messaging.NormalizeAddress(c.channel, msg.To))
	if msg.Body != "" {
		form.Set("Body", msg.Body)
	}
	if msg.MediaURL != "" {
		form.Set("MediaUrl", msg.MediaURL)
	}

	u := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: send: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: send HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Signature computes the X-Twilio-Signature for a form POST to fullURL:
// base64(HMAC-SHA1(authToken, fullURL + concat(sorted key+value))).
func Signature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), form[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature reports whether sig matches the expected signature in
// constant time.
func ValidSignature(authToken, fullURL string, form url.Values, sig string) bool {
	if sig == "" {
		return false
	}
	want := Signature(authToken, fullURL, form)
	return hmac.Equal([]byte(want), []byte(sig))
}
