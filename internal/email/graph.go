package email

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	loginBaseURL = "https://login.microsoftonline.com"
)

// GraphConfig holds Microsoft Graph credentials for the monitored mailbox
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	UserEmail    string
	Timeout      time.Duration
}

// GraphClient talks to Microsoft Graph with an app-only (client credentials)
// token. The token is cached until shortly before expiry.
type GraphClient struct {
	cfg        GraphConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewGraphClient creates a Graph client for the configured mailbox
func NewGraphClient(cfg GraphConfig, logger *zap.Logger) *GraphClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GraphClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Message is a Graph mail message with its attachments expanded
type Message struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	From        messageFrom  `json:"from"`
	Attachments []Attachment `json:"attachments"`
}

type messageFrom struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// Sender returns the sender address, empty when absent
func (m *Message) Sender() string {
	return m.From.EmailAddress.Address
}

// Attachment is a Graph fileAttachment. ContentBytes is base64 and is
// decoded by encoding/json into raw bytes.
type Attachment struct {
	ODataType    string `json:"@odata.type"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int    `json:"size"`
	ContentBytes []byte `json:"contentBytes"`
}

// IsPDF reports whether the attachment is a PDF by content type or extension
func (a *Attachment) IsPDF() bool {
	if strings.EqualFold(a.ContentType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(a.Name), ".pdf")
}

// FetchMessage retrieves a message with attachments expanded
func (c *GraphClient) FetchMessage(ctx context.Context, messageID string) (*Message, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/users/%s/messages/%s?$expand=attachments",
		graphBaseURL, url.PathEscape(c.cfg.UserEmail), url.PathEscape(messageID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Graph message fetch failed",
			zap.String("message_id", messageID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Graph message fetch returned error",
			zap.String("message_id", messageID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("graph message fetch failed with status %d", resp.StatusCode)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message response: %w", err)
	}

	return &msg, nil
}

// accessToken returns a cached app-only token, refreshing when it is within
// a minute of expiry.
func (c *GraphClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", loginBaseURL, url.PathEscape(c.cfg.TenantID))

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Token request failed", zap.Error(err))
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Token request returned error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access token")
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	c.logger.Debug("Acquired Graph access token",
		zap.Time("expires", c.tokenExpiry))

	return c.token, nil
}
