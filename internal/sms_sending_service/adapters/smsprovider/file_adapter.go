package smsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raspisms/golang_services/internal/core_domain"
)

const (
	FileAdapterID    = "test"
	sendedFileName   = "sended.jsonl"
	receivedFileName = "received.jsonl"
)

var fileAdapterMeta = Meta{
	ID:          FileAdapterID,
	Name:        "Test (file)",
	Description: "Development adapter: writes sent messages to sended.jsonl and reads inbound ones from received.jsonl.",
	Fields: []Field{
		{Name: "directory", Title: "Directory", Description: "Subdirectory of the server's test storage root holding sended.jsonl and received.jsonl.", Required: true},
	},
	Capabilities: []Capability{CapabilityRead, CapabilityFlash, CapabilityStatusChange, CapabilityReception},
}

type FileAdapterConfig struct {
	Directory string `json:"directory" validate:"required"`
}

// FileAdapter simulates a carrier on the local filesystem.
type FileAdapter struct {
	cfg    FileAdapterConfig
	dir    string
	logger *slog.Logger

	// state of the last Read, consumed by CommitRead
	consumed int
	ends     []int
}

// sendedLine is one entry of sended.jsonl.
type sendedLine struct {
	UID         string    `json:"uid"`
	Destination string    `json:"destination"`
	Text        string    `json:"text"`
	Flash       bool      `json:"flash"`
	At          time.Time `json:"at"`
}

// directoryLocks serializes access to one directory across adapter instances.
var directoryLocks sync.Map

func lockDirectory(dir string) func() {
	v, _ := directoryLocks.LoadOrStore(dir, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// NewFileAdapter validates cfg and resolves its directory under deps.FileRoot.
func NewFileAdapter(cfg FileAdapterConfig, deps Deps) (*FileAdapter, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	dir, err := resolveDirectory(deps.FileRoot, cfg.Directory)
	if err != nil {
		return nil, err
	}
	return &FileAdapter{cfg: cfg, dir: dir, logger: deps.Logger}, nil
}

func openFileAdapter(raw json.RawMessage, deps Deps) (Adapter, error) {
	var cfg FileAdapterConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	a, err := NewFileAdapter(cfg, deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// resolveDirectory returns dir as an absolute path strictly below root.
// Relative directories are taken from root.
func resolveDirectory(root, dir string) (string, error) {
	if root == "" {
		return "", validationError(nil, "the test adapter is disabled on this server")
	}
	root = filepath.Clean(root)
	dir = strings.TrimSpace(dir)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	rel, err := filepath.Rel(root, filepath.Clean(dir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", validationError(err, "directory must be inside the test storage root")
	}
	return filepath.Join(root, rel), nil
}

func (p *FileAdapter) Meta() Meta { return fileAdapterMeta }

func (p *FileAdapter) Supports(c Capability) bool { return fileAdapterMeta.Supports(c) }

func (p *FileAdapter) Send(ctx context.Context, destination, text string, flash bool) (string, error) {
	if destination == "" {
		return "", validationError(nil, "destination is required")
	}
	line := sendedLine{UID: uuid.NewString(), Destination: destination, Text: text, Flash: flash, At: time.Now().UTC()}
	b, err := json.Marshal(line)
	if err != nil {
		return "", validationError(err, "failed to encode message: %v", err)
	}

	unlock := lockDirectory(p.dir)
	defer unlock()
	f, err := os.OpenFile(filepath.Join(p.dir, sendedFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", transportError(err, "failed to open %s: %v", sendedFileName, err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return "", transportError(err, "failed to write %s: %v", sendedFileName, err)
	}
	p.logger.InfoContext(ctx, "Test adapter: message written", "uid", line.UID, "destination", destination)
	return line.UID, nil
}

// Read returns the complete lines of received.jsonl. The file is left as is
// until CommitRead. A trailing line without newline is kept for the next read.
func (p *FileAdapter) Read(ctx context.Context) ([]core_domain.IncomingSMS, error) {
	unlock := lockDirectory(p.dir)
	defer unlock()

	p.consumed, p.ends = 0, nil
	data, err := os.ReadFile(filepath.Join(p.dir, receivedFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, transportError(err, "failed to read %s: %v", receivedFileName, err)
	}

	var out []core_domain.IncomingSMS
	for off := 0; off < len(data); {
		n := bytes.IndexByte(data[off:], '\n')
		if n < 0 {
			break
		}
		raw := bytes.TrimSpace(data[off : off+n])
		off += n + 1
		p.consumed = off
		if len(raw) == 0 {
			continue
		}
		var sms core_domain.IncomingSMS
		if err := json.Unmarshal(raw, &sms); err != nil {
			p.logger.WarnContext(ctx, "Test adapter: skipping malformed line", "error", err)
			continue
		}
		if sms.At.IsZero() {
			sms.At = time.Now().UTC()
		}
		out = append(out, sms)
		p.ends = append(p.ends, off)
	}
	return out, nil
}

// CommitRead removes the first stored messages of the last Read from received.jsonl.
// Lines appended since the Read are kept.
func (p *FileAdapter) CommitRead(ctx context.Context, stored int) error {
	drop := p.consumed
	if stored < len(p.ends) {
		if stored <= 0 {
			return nil
		}
		drop = p.ends[stored-1]
	}
	if drop == 0 {
		return nil
	}

	unlock := lockDirectory(p.dir)
	defer unlock()

	path := filepath.Join(p.dir, receivedFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return transportError(err, "failed to read %s: %v", receivedFileName, err)
	}
	if len(data) < drop {
		return transportError(nil, "%s shrank since it was read", receivedFileName)
	}
	if err := os.WriteFile(path, data[drop:], 0o644); err != nil {
		return transportError(err, "failed to rewrite %s: %v", receivedFileName, err)
	}
	p.logger.DebugContext(ctx, "Test adapter: received messages committed", "stored", stored, "bytes", drop)
	p.consumed, p.ends = 0, nil
	return nil
}

// Test checks that the directory exists and is writable.
func (p *FileAdapter) Test(ctx context.Context) bool {
	f, err := os.CreateTemp(p.dir, ".writable-*")
	if err != nil {
		p.logger.InfoContext(ctx, "Test adapter: directory not writable", "directory", p.cfg.Directory, "error", err)
		return false
	}
	name := f.Name()
	f.Close()
	return os.Remove(name) == nil
}

type fileStatusPayload struct {
	UID    string `json:"uid" validate:"required"`
	Status string `json:"status"`
}

// StatusChangeCallback accepts {"uid", "status"} with status one of unknown, delivered, failed.
func (p *FileAdapter) StatusChangeCallback(r *http.Request) (*StatusChange, error) {
	var payload fileStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, validationError(err, "invalid status callback: %v", err)
	}
	if err := validate.StructCtx(r.Context(), payload); err != nil {
		return nil, validationError(err, "status callback has no uid")
	}
	status := core_domain.SendedStatus(payload.Status)
	if !status.Valid() {
		status = core_domain.SendedStatusUnknown
	}
	return &StatusChange{UID: payload.UID, Status: status}, nil
}

// ReceptionCallback accepts a JSON array of messages.
func (p *FileAdapter) ReceptionCallback(r *http.Request) ([]core_domain.IncomingSMS, error) {
	var messages []core_domain.IncomingSMS
	if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
		return nil, validationError(err, "invalid reception callback: %v", err)
	}
	for i := range messages {
		if messages[i].Origin == "" {
			return nil, validationError(nil, "message %d has no origin", i)
		}
		if messages[i].At.IsZero() {
			messages[i].At = time.Now().UTC()
		}
	}
	return messages, nil
}
