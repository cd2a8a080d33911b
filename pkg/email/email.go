package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sleads/portal/pkg/observability"
)

const (
	defaultBrevoURL  = "https://api.brevo.com/v3/smtp/email"
	defaultResendURL = "https://api.resend.com/emails"
)

// Attachment is a file attached to an outgoing message. Content is the raw
// bytes; providers receive it base64-encoded.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is one transactional email
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender dispatches transactional email
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Config configures the email client
type Config struct {
	BrevoAPIKey  string
	ResendAPIKey string
	FromAddress  string
	FromName     string
	BrevoURL     string
	ResendURL    string
}

// Client sends transactional email through Brevo, falling back to Resend
// when Brevo fails or is not configured.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewClient creates a new email client. logger and metrics may be nil.
func NewClient(config Config, logger *observability.Logger, metrics *observability.Metrics) *Client {
	if config.BrevoURL == "" {
		config.BrevoURL = defaultBrevoURL
	}
	if config.ResendURL == "" {
		config.ResendURL = defaultResendURL
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		metrics:    metrics,
	}
}

// Send dispatches a message through the first provider that accepts it
func (c *Client) Send(ctx context.Context, msg *Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient address is required")
	}

	var brevoErr error
	if c.config.BrevoAPIKey != "" {
		brevoErr = c.sendBrevo(ctx, msg)
		c.record("brevo", brevoErr)
		if brevoErr == nil {
			return nil
		}
		if c.logger != nil {
			c.logger.WithError(brevoErr).Warn("brevo send failed, falling back to resend")
		}
	}

	if c.config.ResendAPIKey != "" {
		resendErr := c.sendResend(ctx, msg)
		c.record("resend", resendErr)
		if resendErr == nil {
			return nil
		}
		return fmt.Errorf("all email providers failed: %w", resendErr)
	}

	if brevoErr != nil {
		return fmt.Errorf("failed to send email: %w", brevoErr)
	}
	return fmt.Errorf("no email provider configured")
}

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoAttachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type brevoPayload struct {
	Sender      brevoRecipient    `json:"sender"`
	To          []brevoRecipient  `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

func (c *Client) sendBrevo(ctx context.Context, msg *Message) error {
	payload := brevoPayload{
		Sender:      brevoRecipient{Email: c.config.FromAddress, Name: c.config.FromName},
		To:          []brevoRecipient{{Email: msg.To, Name: msg.ToName}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
	}
	for _, a := range msg.Attachments {
		payload.Attachment = append(payload.Attachment, brevoAttachment{
			Name:    a.Name,
			Content: base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	return c.post(ctx, c.config.BrevoURL, payload, map[string]string{
		"api-key": c.config.BrevoAPIKey,
	})
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type resendPayload struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

func (c *Client) sendResend(ctx context.Context, msg *Message) error {
	payload := resendPayload{
		From:    fmt.Sprintf("%s <%s>", c.config.FromName, c.config.FromAddress),
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, resendAttachment{
			Filename: a.Name,
			Content:  base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	return c.post(ctx, c.config.ResendURL, payload, map[string]string{
		"Authorization": "Bearer " + c.config.ResendAPIKey,
	})
}

func (c *Client) post(ctx context.Context, url string, payload interface{}, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

func (c *Client) record(provider string, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.metrics.EmailsSentTotal.WithLabelValues(provider, status).Inc()
}
