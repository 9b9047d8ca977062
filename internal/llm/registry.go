package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/metrics"
)

// Factory constructs a vendor client from credentials read at resolve time
type Factory func(ctx context.Context, creds Credentials) (Client, error)

// ErrMissingCredentials is returned when a vendor's API key is not set
var ErrMissingCredentials = errors.New("missing credentials")

// Selection is a resolved (vendor, model) pair plus the cached vendor client
type Selection struct {
	Vendor   Vendor
	Model    string
	Client   Client
	Fallback bool
}

// Generate runs a completion against the selected model
func (s Selection) Generate(ctx context.Context, req Request) (*Response, error) {
	req.Model = s.Model
	return s.Client.Generate(ctx, req)
}

// envKeys names the environment variables each vendor reads
type envKeys struct {
	apiKey  []string
	baseURL string
}

var vendorEnv = map[Vendor]envKeys{
	VendorOpenAI:    {apiKey: []string{"OPENAI_API_KEY"}, baseURL: "OPENAI_BASE_URL"},
	VendorGoogle:    {apiKey: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, baseURL: "GEMINI_BASE_URL"},
	VendorWorkersAI: {apiKey: []string{"WORKERS_AI_API_KEY"}, baseURL: "WORKERS_AI_BASE_URL"},
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLookupEnv replaces os.LookupEnv for credential lookup
func WithLookupEnv(fn func(string) (string, bool)) RegistryOption {
	return func(r *Registry) {
		r.lookupEnv = fn
	}
}

// WithFactory replaces the client constructor for a vendor
func WithFactory(v Vendor, f Factory) RegistryOption {
	return func(r *Registry) {
		r.factories[v] = f
	}
}

// WithLogger sets the registry logger
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger.With().Str("component", "provider_registry").Logger()
	}
}

// Registry resolves vendor/model hints to clients and owns the per-vendor client cache.
// Clients are added on first use and never replaced or removed.
type Registry struct {
	defaultVendor Vendor
	defaultModel  string

	factories map[Vendor]Factory
	lookupEnv func(string) (string, bool)
	logger    zerolog.Logger

	mu      sync.Mutex
	clients map[Vendor]Client
}

// NewRegistry creates a registry whose default selection is (defaultVendor, defaultModel).
// An unsupported default falls back to the built-in default.
func NewRegistry(defaultVendor, defaultModel string, opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: map[Vendor]Factory{
			VendorOpenAI: func(_ context.Context, c Credentials) (Client, error) {
				return NewOpenAIClient(c)
			},
			VendorGoogle: func(ctx context.Context, c Credentials) (Client, error) {
				return NewGeminiClient(ctx, c)
			},
			VendorWorkersAI: func(_ context.Context, c Credentials) (Client, error) {
				return NewWorkersAIClient(c)
			},
		},
		lookupEnv: os.LookupEnv,
		logger:    zerolog.Nop(),
		clients:   make(map[Vendor]Client),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.defaultVendor, r.defaultModel = DefaultVendor, DefaultModel
	if v, ok := NormalizeVendor(defaultVendor); ok {
		if m, ok := NormalizeModel(v, defaultModel); ok {
			r.defaultVendor, r.defaultModel = v, m
			return r
		}
	}
	if defaultVendor != "" || defaultModel != "" {
		r.logger.Warn().
			Str("vendor", defaultVendor).
			Str("model", defaultModel).
			Msg("configured default provider is not supported, using built-in default")
	}
	return r
}

// Resolve maps vendor and model hints to a Selection. It never fails: any empty,
// unsupported or unavailable selection resolves to the default.
func (r *Registry) Resolve(ctx context.Context, vendorHint, modelHint string) Selection {
	if vendorHint == "" || modelHint == "" {
		return r.defaultSelection(ctx, false)
	}

	vendor, ok := NormalizeVendor(vendorHint)
	if !ok {
		r.fallback("unsupported_vendor", vendorHint, modelHint, nil)
		return r.defaultSelection(ctx, true)
	}

	model, ok := NormalizeModel(vendor, modelHint)
	if !ok {
		r.fallback("unsupported_model", vendorHint, modelHint, nil)
		return r.defaultSelection(ctx, true)
	}

	client, err := r.client(ctx, vendor)
	if err != nil {
		r.fallback("unavailable", vendorHint, modelHint, err)
		return r.defaultSelection(ctx, true)
	}

	return Selection{Vendor: vendor, Model: model, Client: client}
}

// Default returns the default selection
func (r *Registry) Default(ctx context.Context) Selection {
	return r.defaultSelection(ctx, false)
}

// Close releases every cached client
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) defaultSelection(ctx context.Context, fallback bool) Selection {
	client, err := r.client(ctx, r.defaultVendor)
	if err != nil {
		r.logger.Error().Err(err).Str("vendor", string(r.defaultVendor)).Msg("default provider unavailable")
		client = unavailableClient{vendor: r.defaultVendor, cause: err}
	}
	return Selection{Vendor: r.defaultVendor, Model: r.defaultModel, Client: client, Fallback: fallback}
}

func (r *Registry) fallback(reason, vendorHint, modelHint string, err error) {
	metrics.ProviderFallbacksTotal.WithLabelValues(reason).Inc()
	ev := r.logger.Warn().
		Str("reason", reason).
		Str("vendor_hint", vendorHint).
		Str("model_hint", modelHint)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("provider selection falling back to default")
}

// client returns the cached client for v, constructing it on first use.
// The lock is held across construction so the factory runs at most once per vendor.
func (r *Registry) client(ctx context.Context, v Vendor) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[v]; ok {
		return c, nil
	}

	creds, err := r.credentials(v)
	if err != nil {
		return nil, err
	}

	factory, ok := r.factories[v]
	if !ok {
		return nil, fmt.Errorf("no client factory for vendor %s", v)
	}

	c, err := factory(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("construct %s client: %w", v, err)
	}
	r.clients[v] = c
	r.logger.Info().Str("vendor", string(v)).Msg("provider client initialized")
	return c, nil
}

func (r *Registry) credentials(v Vendor) (Credentials, error) {
	keys := vendorEnv[v]
	var creds Credentials
	for _, k := range keys.apiKey {
		if val, ok := r.lookupEnv(k); ok && val != "" {
			creds.APIKey = val
			break
		}
	}
	if creds.APIKey == "" {
		return Credentials{}, fmt.Errorf("%s: %w", v, ErrMissingCredentials)
	}
	if keys.baseURL != "" {
		creds.BaseURL, _ = r.lookupEnv(keys.baseURL)
	}
	return creds, nil
}
