package smsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/raspisms/golang_services/internal/core_domain"
)

const (
	OctopushShortcodeID    = "octopush_shortcode"
	octopushDefaultBaseURL = "https://www.octopush-dm.com/api"
	octopushDefaultSender  = "12345"
	octopushErrorCodeOK    = "000"
	octopushPremiumSMSType = "FR"
)

var octopushShortcodeMeta = Meta{
	ID:          OctopushShortcodeID,
	Name:        "Octopush Shortcode",
	Description: "Send SMS with a shortcode through Octopush (https://www.octopush.com/).",
	Fields: []Field{
		{Name: "login", Title: "Octopush login", Description: "Login of the Octopush account, see the API credentials page.", Required: true},
		{Name: "api_key", Title: "API key", Description: "Octopush API key, see the API credentials page.", Required: true},
		{Name: "sender", Title: "Sender name", Description: "Name displayed instead of the shortcode (3 to 11 characters). Leave empty to use the shortcode; recipients cannot answer a named sender.", Required: false},
	},
	Capabilities: []Capability{CapabilityStatusChange, CapabilityReception},
}

// OctopushShortcodeConfig is the configuration of the octopush_shortcode adapter.
type OctopushShortcodeConfig struct {
	Login  string `json:"login" validate:"required"`
	APIKey string `json:"api_key" validate:"required"`
	Sender string `json:"sender" validate:"omitempty,min=3,max=11"`
	// BaseURL overrides the Octopush API root.
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`
}

// OctopushShortcode sends through the Octopush HTTP API.
type OctopushShortcode struct {
	cfg    OctopushShortcodeConfig
	client apiClient
	logger *slog.Logger
}

// NewOctopushShortcode builds the adapter without validating cfg; Send and Test validate it.
func NewOctopushShortcode(cfg OctopushShortcodeConfig, deps Deps) *OctopushShortcode {
	if cfg.BaseURL == "" {
		cfg.BaseURL = octopushDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Doer == nil {
		deps.Doer = NewHTTPClient(0)
	}
	return &OctopushShortcode{
		cfg:    cfg,
		client: apiClient{doer: deps.Doer, provider: OctopushShortcodeID},
		logger: deps.Logger,
	}
}

func openOctopushShortcode(raw json.RawMessage, deps Deps) (Adapter, error) {
	var cfg OctopushShortcodeConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	return NewOctopushShortcode(cfg, deps), nil
}

func (a *OctopushShortcode) Meta() Meta { return octopushShortcodeMeta }

func (a *OctopushShortcode) Supports(c Capability) bool { return octopushShortcodeMeta.Supports(c) }

// octopushCode accepts error_code as either a JSON string or number.
type octopushCode string

func (c *octopushCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = octopushCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		return err
	}
	*c = octopushCode(strconv.FormatInt(i, 10))
	if len(*c) < 3 {
		*c = octopushCode(strings.Repeat("0", 3-len(*c))) + *c
	}
	return nil
}

type octopushResponse struct {
	ErrorCode octopushCode `json:"error_code"`
	Ticket    string       `json:"ticket"`
	Balance   json.Number  `json:"balance,omitempty"`
}

func (a *OctopushShortcode) Send(ctx context.Context, destination, text string, flash bool) (string, error) {
	if err := validateConfig(&a.cfg); err != nil {
		return "", err
	}
	if destination == "" {
		return "", validationError(nil, "destination is required")
	}

	sender := octopushDefaultSender
	if a.cfg.Sender != "" {
		sender = a.cfg.Sender
	}
	form := url.Values{
		"user_login":     {a.cfg.Login},
		"api_key":        {a.cfg.APIKey},
		"sms_text":       {text},
		"sms_recipients": {strings.ReplaceAll(destination, "+", "00")},
		"sms_sender":     {sender},
		"sms_type":       {octopushPremiumSMSType},
	}

	a.logger.DebugContext(ctx, "Sending SMS through Octopush", "destination", destination, "text_len", len(text))
	resp, err := a.post(ctx, "send", "/sms/json", form)
	if err != nil {
		a.logger.WarnContext(ctx, "Octopush send failed", "error", err)
		return "", err
	}
	if resp.ErrorCode != octopushErrorCodeOK {
		a.logger.WarnContext(ctx, "Octopush rejected message", "error_code", string(resp.ErrorCode))
		return "", applicationError("octopush returned error code %s", resp.ErrorCode)
	}
	if resp.Ticket == "" {
		return "", applicationError("octopush response carries no ticket")
	}
	a.logger.InfoContext(ctx, "SMS sent through Octopush", "uid", resp.Ticket)
	return resp.Ticket, nil
}

// Read is not supported by Octopush; it always returns an empty result.
func (a *OctopushShortcode) Read(ctx context.Context) ([]core_domain.IncomingSMS, error) {
	return nil, nil
}

func (a *OctopushShortcode) Test(ctx context.Context) bool {
	if err := validateConfig(&a.cfg); err != nil {
		a.logger.InfoContext(ctx, "Octopush configuration invalid", "error", err)
		return false
	}
	form := url.Values{
		"user_login": {a.cfg.Login},
		"api_key":    {a.cfg.APIKey},
	}
	resp, err := a.post(ctx, "test", "/balance/json", form)
	if err != nil {
		a.logger.InfoContext(ctx, "Octopush balance check failed", "error", err)
		return false
	}
	return resp.ErrorCode == octopushErrorCodeOK
}

func (a *OctopushShortcode) post(ctx context.Context, operation, path string, form url.Values) (*octopushResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, transportError(err, "failed to build octopush request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := a.client.do(ctx, operation, req)
	if err != nil {
		return nil, err
	}
	var resp octopushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, applicationError("octopush answered with an unreadable body: %s", truncate(body, maxErrorBody))
	}
	return &resp, nil
}

var octopushFailedStatuses = map[string]bool{
	"NOT_DELIVERED":      true,
	"UNKNOWN_NUMBER":     true,
	"BLACKLISTED_NUMBER": true,
	"NOT_ALLOWED":        true,
	"EXPIRED":            true,
}

func octopushStatus(raw string) core_domain.SendedStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case s == "DELIVERED":
		return core_domain.SendedStatusDelivered
	case octopushFailedStatuses[s]:
		return core_domain.SendedStatusFailed
	default:
		return core_domain.SendedStatusUnknown
	}
}

// StatusChangeCallback parses a delivery report form (message_id, status).
func (a *OctopushShortcode) StatusChangeCallback(r *http.Request) (*StatusChange, error) {
	if err := r.ParseForm(); err != nil {
		return nil, validationError(err, "invalid status callback: %v", err)
	}
	uid := r.Form.Get("message_id")
	if uid == "" {
		return nil, validationError(nil, "status callback has no message_id")
	}
	return &StatusChange{UID: uid, Status: octopushStatus(r.Form.Get("status"))}, nil
}

// ReceptionCallback parses an inbound message form (number, text, reception_date).
func (a *OctopushShortcode) ReceptionCallback(r *http.Request) ([]core_domain.IncomingSMS, error) {
	if err := r.ParseForm(); err != nil {
		return nil, validationError(err, "invalid reception callback: %v", err)
	}
	origin := r.Form.Get("number")
	if origin == "" {
		return nil, validationError(nil, "reception callback has no number")
	}
	at := time.Now().UTC()
	if raw := r.Form.Get("reception_date"); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, validationError(err, "invalid reception_date %q", raw)
		}
		at = time.Unix(secs, 0).UTC()
	}
	if strings.HasPrefix(origin, "00") {
		origin = "+" + strings.TrimPrefix(origin, "00")
	}
	return []core_domain.IncomingSMS{{At: at, Text: r.Form.Get("text"), Origin: origin}}, nil
}
