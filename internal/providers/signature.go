// internal/providers/signature.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/synclear/synclear-backend/internal/config"
)

// PlaceholderPrefix marks execution references created without a live
// provider, so they are never mistaken for vendor identifiers.
const PlaceholderPrefix = "placeholder:"

func IsPlaceholderRef(ref string) bool {
	return len(ref) > len(PlaceholderPrefix) && ref[:len(PlaceholderPrefix)] == PlaceholderPrefix
}

// SignatureDocumentParams carries everything the e-signature vendor needs to
// assemble a document: a deterministic name, the recipient, the template
// token map, and metadata echoed back on webhooks so the owning request can
// be resolved.
type SignatureDocumentParams struct {
	Name           string
	RecipientName  string
	RecipientEmail string
	TemplateID     string
	Tokens         map[string]string
	Metadata       map[string]string
}

// SignatureProvider is the port to the e-signature vendor. Implementations
// must be safe for concurrent use.
type SignatureProvider interface {
	CreateDocument(ctx context.Context, params SignatureDocumentParams) (string, error)
	DownloadCompletedPDF(ctx context.Context, documentID string) ([]byte, error)
}

// NewSignatureProvider returns the HTTP-backed provider when configured and a
// placeholder otherwise, so the whole execution workflow stays exercisable
// without a live vendor.
func NewSignatureProvider(cfg config.SignatureConfig) SignatureProvider {
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		logrus.Warn("Signature provider not configured, using placeholder mode")
		return &placeholderSignatureProvider{}
	}
	return &httpSignatureProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type httpSignatureProvider struct {
	cfg    config.SignatureConfig
	client *http.Client
}

type createDocumentRequest struct {
	Name       string            `json:"name"`
	TemplateID string            `json:"template_id,omitempty"`
	Recipient  documentRecipient `json:"recipient"`
	Tokens     map[string]string `json:"tokens,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type documentRecipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type createDocumentResponse struct {
	ID string `json:"id"`
}

func (p *httpSignatureProvider) CreateDocument(ctx context.Context, params SignatureDocumentParams) (string, error) {
	templateID := params.TemplateID
	if templateID == "" {
		templateID = p.cfg.TemplateID
	}

	body, err := json.Marshal(createDocumentRequest{
		Name:       params.Name,
		TemplateID: templateID,
		Recipient:  documentRecipient{Name: params.RecipientName, Email: params.RecipientEmail},
		Tokens:     params.Tokens,
		Metadata:   params.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode document request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/documents", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signature provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("signature provider returned status %d", resp.StatusCode)
	}

	var out createDocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("malformed signature provider response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("signature provider returned empty document id")
	}

	return out.ID, nil
}

func (p *httpSignatureProvider) DownloadCompletedPDF(ctx context.Context, documentID string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/documents/%s/completed_pdf", p.cfg.BaseURL, documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signature provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("signature provider returned status %d for document %s", resp.StatusCode, documentID)
	}

	return io.ReadAll(resp.Body)
}

// placeholderSignatureProvider stands in when no vendor is configured. It
// fabricates stable references and a minimal artifact so the state machine
// and archival paths run end to end in development and tests.
type placeholderSignatureProvider struct{}

func (p *placeholderSignatureProvider) CreateDocument(ctx context.Context, params SignatureDocumentParams) (string, error) {
	return PlaceholderPrefix + "sigdoc-" + uuid.New().String(), nil
}

func (p *placeholderSignatureProvider) DownloadCompletedPDF(ctx context.Context, documentID string) ([]byte, error) {
	return []byte(fmt.Sprintf("EXECUTED COUNTERPART (placeholder)\ndocument: %s\nretrieved: %s\n",
		documentID, time.Now().UTC().Format(time.RFC3339))), nil
}
