package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"agenticos/internal/logging"
	"agenticos/internal/types"
)

// CustomModel is the selected-model value meaning "use custom_models[provider]".
const CustomModel = "custom"

// Credentials is the on-disk credential file (.agentic/credentials.json).
// Keys are provider names: openai, anthropic, openrouter.
type Credentials struct {
	APIKeys        map[string]string `json:"api_keys,omitempty"`
	SelectedModels map[string]string `json:"selected_models,omitempty"`
	CustomModels   map[string]string `json:"custom_models,omitempty"`
}

// envKeys maps each provider to its fallback environment variable.
var envKeys = map[types.Provider]string{
	types.ProviderOpenAI:     "OPENAI_API_KEY",
	types.ProviderAnthropic:  "ANTHROPIC_API_KEY",
	types.ProviderOpenRouter: "OPENROUTER_API_KEY",
}

// EnvKey returns the environment variable consulted for p.
func EnvKey(p types.Provider) string {
	return envKeys[p]
}

// DefaultCredentialsPath returns <workspace>/.agentic/credentials.json.
func DefaultCredentialsPath(ws string) string {
	return filepath.Join(ws, WorkspaceDir, "credentials.json")
}

// LoadCredentials reads the credential file. A missing file yields empty credentials.
func LoadCredentials(path string) (*Credentials, error) {
	creds := &Credentials{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	if err := json.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, nil
}

// Save writes the credentials with owner-only permissions.
func (c *Credentials) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Key returns the usable stored key for p, or "".
func (c *Credentials) Key(p types.Provider) string {
	return usableKey(c.APIKeys[string(p)])
}

// Model resolves the model for p: the selected model, the custom model when
// "custom" is selected, else the provider default.
func (c *Credentials) Model(p types.Provider) string {
	selected := strings.TrimSpace(c.SelectedModels[string(p)])
	if selected == CustomModel {
		selected = strings.TrimSpace(c.CustomModels[string(p)])
	}
	if selected == "" {
		return p.DefaultModel()
	}
	return selected
}

// SetKey stores a key for p; an empty key removes it.
func (c *Credentials) SetKey(p types.Provider, key string) {
	if c.APIKeys == nil {
		c.APIKeys = make(map[string]string)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		delete(c.APIKeys, string(p))
		return
	}
	c.APIKeys[string(p)] = key
}

// SetModel selects model for p. Models other than the known defaults are
// stored as the custom model.
func (c *Credentials) SetModel(p types.Provider, model string) {
	if c.SelectedModels == nil {
		c.SelectedModels = make(map[string]string)
	}
	if c.CustomModels == nil {
		c.CustomModels = make(map[string]string)
	}
	model = strings.TrimSpace(model)
	switch {
	case model == "":
		delete(c.SelectedModels, string(p))
	case isKnownModel(p, model):
		c.SelectedModels[string(p)] = model
	default:
		c.SelectedModels[string(p)] = CustomModel
		c.CustomModels[string(p)] = model
	}
}

// KnownModels lists the models offered for each provider.
var KnownModels = map[types.Provider][]string{
	types.ProviderOpenAI:     {"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"},
	types.ProviderAnthropic:  {"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022", "claude-3-opus-20240229"},
	types.ProviderOpenRouter: {"deepseek/deepseek-chat-v3-0324:free", "anthropic/claude-3.5-sonnet", "openai/gpt-4o", "meta-llama/llama-3.2-3b-instruct:free", "google/gemma-2-9b-it:free"},
}

func isKnownModel(p types.Provider, model string) bool {
	for _, m := range KnownModels[p] {
		if m == model {
			return true
		}
	}
	return false
}

// usableKey trims k and rejects blanks and template placeholders.
func usableKey(k string) string {
	k = strings.TrimSpace(k)
	lower := strings.ToLower(k)
	if strings.HasPrefix(lower, "your_") && strings.HasSuffix(lower, "_here") {
		return ""
	}
	return k
}

// KeySource says where a provider's key came from.
type KeySource string

const (
	SourceNone KeySource = "none"
	SourceFile KeySource = "file"
	SourceEnv  KeySource = "env"
)

// ProviderStatus describes one provider's configuration for display.
type ProviderStatus struct {
	Provider  types.Provider
	Source    KeySource
	MaskedKey string
	Model     string
	Active    bool
}

// CredentialStore resolves the active provider from the credential file and
// the environment. The file is re-read on every call so edits made while the
// process runs take effect on the next generation.
type CredentialStore struct {
	path     string
	baseURLs map[types.Provider]string
	getenv   func(string) string
	mu       sync.Mutex // serializes Update
}

// StoreOption configures a CredentialStore.
type StoreOption func(*CredentialStore)

// WithBaseURLs overrides provider base URLs on resolved selections.
func WithBaseURLs(urls map[types.Provider]string) StoreOption {
	return func(s *CredentialStore) { s.baseURLs = urls }
}

// WithGetenv replaces os.Getenv, for tests.
func WithGetenv(fn func(string) string) StoreOption {
	return func(s *CredentialStore) { s.getenv = fn }
}

// NewCredentialStore creates a store backed by the file at path.
func NewCredentialStore(path string, opts ...StoreOption) *CredentialStore {
	s := &CredentialStore{path: path, getenv: os.Getenv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the credential file path.
func (s *CredentialStore) Path() string { return s.path }

// ActiveProvider returns the first configured provider in the fixed precedence
// OpenAI > Anthropic > OpenRouter. Stored keys win over environment keys for
// the same provider. ok is false when no provider has a usable key.
func (s *CredentialStore) ActiveProvider() (types.ProviderSelection, bool) {
	creds := s.load()
	for _, p := range types.ProviderPrecedence {
		key, _ := s.resolveKey(creds, p)
		if key == "" {
			continue
		}
		return s.selection(creds, p, key), true
	}
	return types.ProviderSelection{}, false
}

// Selection resolves a specific provider regardless of precedence.
func (s *CredentialStore) Selection(p types.Provider) (types.ProviderSelection, bool) {
	creds := s.load()
	key, _ := s.resolveKey(creds, p)
	if key == "" {
		return types.ProviderSelection{}, false
	}
	return s.selection(creds, p, key), true
}

// Status reports every provider's configuration, marking the active one.
func (s *CredentialStore) Status() []ProviderStatus {
	creds := s.load()
	active := types.Provider("")
	out := make([]ProviderStatus, 0, len(types.ProviderPrecedence))
	for _, p := range types.ProviderPrecedence {
		key, src := s.resolveKey(creds, p)
		st := ProviderStatus{
			Provider:  p,
			Source:    src,
			MaskedKey: types.MaskKey(key),
			Model:     creds.Model(p),
		}
		if key != "" && active == "" {
			active = p
			st.Active = true
		}
		out = append(out, st)
	}
	return out
}

// Update loads the credential file, applies fn and saves the result.
func (s *CredentialStore) Update(fn func(*Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := LoadCredentials(s.path)
	if err != nil {
		return err
	}
	fn(creds)
	return creds.Save(s.path)
}

func (s *CredentialStore) load() *Credentials {
	creds, err := LoadCredentials(s.path)
	if err != nil {
		logging.BootWarn("credentials unreadable, using environment only: %v", err)
		return &Credentials{}
	}
	return creds
}

func (s *CredentialStore) resolveKey(creds *Credentials, p types.Provider) (string, KeySource) {
	if key := creds.Key(p); key != "" {
		return key, SourceFile
	}
	if key := usableKey(s.getenv(envKeys[p])); key != "" {
		return key, SourceEnv
	}
	return "", SourceNone
}

func (s *CredentialStore) selection(creds *Credentials, p types.Provider, key string) types.ProviderSelection {
	sel := types.NewProviderSelection(p, key, creds.Model(p))
	if url, ok := s.baseURLs[p]; ok {
		sel.BaseURL = url
	}
	return sel
}
