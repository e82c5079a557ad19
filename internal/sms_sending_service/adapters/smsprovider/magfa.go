package smsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raspisms/golang_services/internal/core_domain"
)

const MagfaID = "magfa"

var magfaMeta = Meta{
	ID:          MagfaID,
	Name:        "Magfa",
	Description: "Send SMS through the Magfa HTTP API (bearer token).",
	Fields: []Field{
		{Name: "api_url", Title: "API URL", Description: "Root URL of the Magfa HTTP API.", Required: true},
		{Name: "api_key", Title: "API key", Description: "Bearer token issued by Magfa.", Required: true},
		{Name: "sender", Title: "Sender number", Description: "Line number the messages are sent from.", Required: true},
	},
	Capabilities: []Capability{CapabilityStatusChange, CapabilityReception},
}

// MagfaConfig is the configuration of the magfa adapter.
type MagfaConfig struct {
	APIURL string `json:"api_url" validate:"required,url"`
	APIKey string `json:"api_key" validate:"required"`
	Sender string `json:"sender" validate:"required"`
}

type Magfa struct {
	cfg    MagfaConfig
	client apiClient
	logger *slog.Logger
}

func NewMagfa(cfg MagfaConfig, deps Deps) *Magfa {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Doer == nil {
		deps.Doer = NewHTTPClient(0)
	}
	return &Magfa{
		cfg:    cfg,
		client: apiClient{doer: deps.Doer, provider: MagfaID},
		logger: deps.Logger,
	}
}

func openMagfa(raw json.RawMessage, deps Deps) (Adapter, error) {
	var cfg MagfaConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	return NewMagfa(cfg, deps), nil
}

func (p *Magfa) Meta() Meta { return magfaMeta }

func (p *Magfa) Supports(c Capability) bool { return magfaMeta.Supports(c) }

// MagfaSendRequestBody is the body of Magfa's send endpoint.
type MagfaSendRequestBody struct {
	Messages []MagfaMessage `json:"messages"`
}

type MagfaMessage struct {
	Sender     string   `json:"sender"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// MagfaSendResponse is returned by the send and balance endpoints. Status 0 means success.
type MagfaSendResponse struct {
	Messages []MagfaSentMessageDetail `json:"messages"`
	Status   int                      `json:"status"`
	Message  string                   `json:"message"`
}

type MagfaSentMessageDetail struct {
	ID        int64  `json:"id"`
	Recipient string `json:"recipient"`
	Status    int    `json:"status"`
}

func (p *Magfa) Send(ctx context.Context, destination, text string, flash bool) (string, error) {
	if err := validateConfig(&p.cfg); err != nil {
		return "", err
	}
	if destination == "" {
		return "", validationError(nil, "destination is required")
	}
	p.logger.InfoContext(ctx, "Magfa: Send called", "recipient", destination)

	reqBytes, err := json.Marshal(MagfaSendRequestBody{
		Messages: []MagfaMessage{{Sender: p.cfg.Sender, Body: text, Recipients: []string{destination}}},
	})
	if err != nil {
		return "", validationError(err, "failed to marshal request for Magfa: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/send", bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", transportError(err, "failed to create HTTP request for Magfa: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	respBody, err := p.client.do(ctx, "send", httpReq)
	if err != nil {
		p.logger.WarnContext(ctx, "Magfa send failed", "error", err)
		return "", err
	}

	var resp MagfaSendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		p.logger.WarnContext(ctx, "Failed to parse Magfa response body", "error", err, "body", truncate(respBody, maxErrorBody))
		return "", applicationError("Magfa answered with an unreadable body: %s", truncate(respBody, maxErrorBody))
	}
	if resp.Status != 0 {
		return "", applicationError("Magfa API error: status %d, message: %s", resp.Status, resp.Message)
	}
	if len(resp.Messages) == 0 {
		return "", applicationError("Magfa response carries no message id")
	}
	if resp.Messages[0].Status != 0 {
		return "", applicationError("Magfa rejected message for %s: status %d", resp.Messages[0].Recipient, resp.Messages[0].Status)
	}

	uid := strconv.FormatInt(resp.Messages[0].ID, 10)
	p.logger.InfoContext(ctx, "Successfully sent SMS via Magfa", "provider_message_id", uid)
	return uid, nil
}

func (p *Magfa) Read(ctx context.Context) ([]core_domain.IncomingSMS, error) {
	return nil, nil
}

func (p *Magfa) Test(ctx context.Context) bool {
	if err := validateConfig(&p.cfg); err != nil {
		p.logger.InfoContext(ctx, "Magfa configuration invalid", "error", err)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIURL+"/balance", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	body, err := p.client.do(ctx, "test", req)
	if err != nil {
		p.logger.InfoContext(ctx, "Magfa balance check failed", "error", err)
		return false
	}
	var resp MagfaSendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return resp.Status == 0
}

type magfaStatusPayload struct {
	MID    json.Number `json:"mid" validate:"required"`
	Status int         `json:"status"`
}

func magfaStatus(code int) core_domain.SendedStatus {
	switch code {
	case 1:
		return core_domain.SendedStatusDelivered
	case 2, 16:
		return core_domain.SendedStatusFailed
	default:
		return core_domain.SendedStatusUnknown
	}
}

// StatusChangeCallback parses a JSON delivery report {"mid", "status"}.
func (p *Magfa) StatusChangeCallback(r *http.Request) (*StatusChange, error) {
	var payload magfaStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, validationError(err, "invalid Magfa status callback: %v", err)
	}
	if err := validate.StructCtx(r.Context(), payload); err != nil {
		return nil, validationError(err, "Magfa status callback has no mid")
	}
	return &StatusChange{UID: payload.MID.String(), Status: magfaStatus(payload.Status)}, nil
}

type magfaReceptionPayload struct {
	Messages []struct {
		Sender string `json:"sender" validate:"required"`
		Body   string `json:"body"`
		Date   string `json:"date"`
	} `json:"messages" validate:"dive"`
}

// ReceptionCallback parses {"messages":[{"sender","body","date"}]} with RFC 3339 dates.
func (p *Magfa) ReceptionCallback(r *http.Request) ([]core_domain.IncomingSMS, error) {
	var payload magfaReceptionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, validationError(err, "invalid Magfa reception callback: %v", err)
	}
	if err := validate.StructCtx(r.Context(), payload); err != nil {
		return nil, validationError(err, "Magfa reception callback has a message without sender")
	}
	out := make([]core_domain.IncomingSMS, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		at := time.Now().UTC()
		if m.Date != "" {
			parsed, err := time.Parse(time.RFC3339, m.Date)
			if err != nil {
				return nil, validationError(err, "invalid Magfa message date %q", m.Date)
			}
			at = parsed.UTC()
		}
		out = append(out, core_domain.IncomingSMS{At: at, Text: m.Body, Origin: m.Sender})
	}
	return out, nil
}
