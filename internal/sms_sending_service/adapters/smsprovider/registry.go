package smsprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrUnknownAdapter = errors.New("unknown adapter")

// Deps are the shared collaborators handed to every adapter factory.
type Deps struct {
	Logger *slog.Logger
	Doer   Doer
	// FileRoot confines the test adapter's directories. Empty disables that adapter.
	FileRoot string
}

// Factory builds an adapter from its raw JSON configuration.
type Factory func(raw json.RawMessage, deps Deps) (Adapter, error)

type registration struct {
	meta    Meta
	factory Factory
}

// Registry maps stable adapter ids to their factories.
type Registry struct {
	deps    Deps
	entries map[string]registration
	order   []string
}

func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Doer == nil {
		deps.Doer = NewHTTPClient(0)
	}
	return &Registry{deps: deps, entries: make(map[string]registration)}
}

// DefaultRegistry registers every adapter shipped with the service.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry(deps)
	r.Register(octopushShortcodeMeta, openOctopushShortcode)
	r.Register(magfaMeta, openMagfa)
	r.Register(fileAdapterMeta, openFileAdapter)
	return r
}

// Register adds an adapter. Registering an id twice is a programming error.
func (r *Registry) Register(meta Meta, factory Factory) {
	if _, exists := r.entries[meta.ID]; exists {
		panic(fmt.Sprintf("smsprovider: adapter %q registered twice", meta.ID))
	}
	r.entries[meta.ID] = registration{meta: meta, factory: factory}
	r.order = append(r.order, meta.ID)
}

// Metas lists registered adapters in registration order.
func (r *Registry) Metas() []Meta {
	metas := make([]Meta, 0, len(r.order))
	for _, id := range r.order {
		metas = append(metas, r.entries[id].meta)
	}
	return metas
}

// Meta returns the description of adapter id.
func (r *Registry) Meta(id string) (Meta, bool) {
	reg, ok := r.entries[id]
	return reg.meta, ok
}

// Open builds adapter id from its JSON configuration, validating it.
func (r *Registry) Open(id string, raw json.RawMessage) (Adapter, error) {
	reg, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, id)
	}
	deps := r.deps
	deps.Logger = deps.Logger.With("provider", id)
	return reg.factory(raw, deps)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// decodeConfig unmarshals raw into cfg and validates it.
func decodeConfig(raw json.RawMessage, cfg any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return validationError(err, "invalid adapter configuration: %v", err)
	}
	return validateConfig(cfg)
}

// validateConfig checks the validate tags of a typed adapter configuration.
func validateConfig(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationError(err, "invalid adapter configuration: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must respect %s=%s characters", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return validationError(err, "invalid adapter configuration: %s", strings.Join(msgs, ", "))
}
