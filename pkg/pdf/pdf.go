package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sleads/portal/pkg/observability"
	"github.com/sleads/portal/pkg/storage"
)

// Renderer renders a document payload into PDF bytes
type Renderer interface {
	Render(ctx context.Context, documentType string, document interface{}) ([]byte, error)
}

// Client calls the external document-rendering endpoint. A non-200
// response is an error and propagates to the caller; the task layer turns
// that into a retry.
type Client struct {
	renderURL  string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewClient creates a new render client. metrics may be nil.
func NewClient(renderURL string, metrics *observability.Metrics) *Client {
	return &Client{
		renderURL:  renderURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		metrics:    metrics,
	}
}

type renderRequest struct {
	DocumentType string      `json:"document_type"`
	Document     interface{} `json:"document"`
}

// Render posts the document to the render endpoint and returns the PDF bytes
func (c *Client) Render(ctx context.Context, documentType string, document interface{}) ([]byte, error) {
	if c.renderURL == "" {
		return nil, fmt.Errorf("render url is not configured")
	}

	start := time.Now()
	pdf, err := c.render(ctx, documentType, document)
	c.record(documentType, time.Since(start), err)
	return pdf, err
}

func (c *Client) render(ctx context.Context, documentType string, document interface{}) ([]byte, error) {
	body, err := json.Marshal(renderRequest{DocumentType: documentType, Document: document})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.renderURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call render endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("render endpoint returned status %d: %s", resp.StatusCode, respBody)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("render endpoint returned an empty document")
	}
	return pdf, nil
}

func (c *Client) record(documentType string, duration time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.metrics.PDFRendersTotal.WithLabelValues(documentType, status).Inc()
	c.metrics.PDFRenderDuration.Observe(duration.Seconds())
}

// Uploader stores rendered documents and returns their object key
type Uploader interface {
	Upload(ctx context.Context, key string, pdf []byte) (string, error)
}

// S3Uploader stores rendered PDFs in the object store
type S3Uploader struct {
	s3 *storage.S3Client
}

// NewS3Uploader creates a new uploader over the given S3 client
func NewS3Uploader(s3 *storage.S3Client) *S3Uploader {
	return &S3Uploader{s3: s3}
}

// Upload stores the PDF under the given key and returns the key
func (u *S3Uploader) Upload(ctx context.Context, key string, pdf []byte) (string, error) {
	if u.s3 == nil {
		return "", fmt.Errorf("object storage is not configured")
	}
	if err := u.s3.PutObject(ctx, key, bytes.NewReader(pdf), "application/pdf"); err != nil {
		return "", fmt.Errorf("failed to upload pdf: %w", err)
	}
	return key, nil
}
