package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBrevo(t *testing.T) {
	var got brevoPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-brevo", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(Config{
		BrevoAPIKey: "key-brevo",
		FromAddress: "portal@agency.example",
		FromName:    "Portal",
		BrevoURL:    server.URL,
	}, nil, nil)

	err := client.Send(context.Background(), &Message{
		To:       "client@example.com",
		Subject:  "Your invoice",
		HTMLBody: "<p>Attached.</p>",
		Attachments: []Attachment{
			{Name: "invoice.pdf", Content: []byte("%PDF-1.4")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "client@example.com", got.To[0].Email)
	require.Len(t, got.Attachment, 1)
	decoded, err := base64.StdEncoding.DecodeString(got.Attachment[0].Content)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(decoded))
}

func TestSendFallsBackToResend(t *testing.T) {
	brevo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer brevo.Close()

	var resendHit bool
	resend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resendHit = true
		assert.Equal(t, "Bearer key-resend", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer resend.Close()

	client := NewClient(Config{
		BrevoAPIKey:  "key-brevo",
		ResendAPIKey: "key-resend",
		FromAddress:  "portal@agency.example",
		BrevoURL:     brevo.URL,
		ResendURL:    resend.URL,
	}, nil, nil)

	err := client.Send(context.Background(), &Message{To: "client@example.com", Subject: "Hi"})
	require.NoError(t, err)
	assert.True(t, resendHit)
}

func TestSendAllProvidersFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	client := NewClient(Config{
		BrevoAPIKey:  "key-brevo",
		ResendAPIKey: "key-resend",
		FromAddress:  "portal@agency.example",
		BrevoURL:     failing.URL,
		ResendURL:    failing.URL,
	}, nil, nil)

	err := client.Send(context.Background(), &Message{To: "client@example.com"})
	assert.Error(t, err)
}

func TestSendRequiresRecipient(t *testing.T) {
	client := NewClient(Config{BrevoAPIKey: "k"}, nil, nil)
	assert.Error(t, client.Send(context.Background(), &Message{}))
}

func TestSendNoProviderConfigured(t *testing.T) {
	client := NewClient(Config{}, nil, nil)
	assert.Error(t, client.Send(context.Background(), &Message{To: "a@b.c"}))
}
