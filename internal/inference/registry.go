package inference

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/media"
)

// Model kinds understood by the registry.
const (
	KindRemote     = "remote"
	KindDummy      = "dummy"
	KindWhisperCPP = "whisper_cpp"
)

// DefaultVersion is used when a lookup does not name a version.
const DefaultVersion = "v1"

// ModelConfig declares one model the process can serve.
type ModelConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Kind      string `yaml:"kind"`
	ModelPath string `yaml:"model_path"`
}

// Factory builds a Transcriber for a model entry.
type Factory func(cfg ModelConfig) (Transcriber, error)

type modelKey struct {
	name    string
	version string
}

// Registry resolves (name, version) to a Transcriber, constructing each one
// lazily on first use and caching it for the life of the process.
type Registry struct {
	mu        sync.Mutex
	models    map[modelKey]ModelConfig
	factories map[string]Factory
	cache     map[modelKey]Transcriber
}

// NewRegistry creates a registry over the declared models. The dummy kind is
// always available; other kinds need a factory registered with RegisterKind.
func NewRegistry(models []ModelConfig) *Registry {
	r := &Registry{
		models:    make(map[modelKey]ModelConfig, len(models)),
		factories: make(map[string]Factory),
		cache:     make(map[modelKey]Transcriber),
	}
	for _, m := range models {
		if m.Version == "" {
			m.Version = DefaultVersion
		}
		r.models[modelKey{m.Name, m.Version}] = m
	}
	r.factories[KindDummy] = func(ModelConfig) (Transcriber, error) { return DummyModel{}, nil }
	return r
}

// RegisterKind installs the factory for a model kind.
func (r *Registry) RegisterKind(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Lookup returns the Transcriber for name and version.
func (r *Registry) Lookup(name, version string) (Transcriber, error) {
	if version == "" {
		version = DefaultVersion
	}
	key := modelKey{name, version}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.cache[key]; ok {
		return t, nil
	}

	cfg, ok := r.models[key]
	if !ok {
		return nil, &domain.InferenceError{Op: "load model", Err: fmt.Errorf("unknown model %s:%s", name, version)}
	}
	factory, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, &domain.InferenceError{Op: "load model", Err: fmt.Errorf("model %s:%s has unsupported kind %q", name, version, cfg.Kind)}
	}

	t, err := factory(cfg)
	if err != nil {
		return nil, &domain.InferenceError{Op: "load model", Err: err}
	}
	r.cache[key] = t
	return t, nil
}

// Has reports whether a model with this name is declared in any version.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.models {
		if key.name == name {
			return true
		}
	}
	return false
}

// RemoteFactory builds RemoteModels that share one client.
func RemoteFactory(client *Client) Factory {
	return func(cfg ModelConfig) (Transcriber, error) {
		return NewRemoteModel(client, cfg.Name, cfg.Version), nil
	}
}

// WhisperCPPFactory builds whisper.cpp models. An entry without a model path
// falls back to defaultModelPath.
func WhisperCPPFactory(binary, defaultModelPath string, runner media.CommandRunner, logger *slog.Logger) Factory {
	return func(cfg ModelConfig) (Transcriber, error) {
		modelPath := cfg.ModelPath
		if modelPath == "" {
			modelPath = defaultModelPath
		}
		if modelPath == "" {
			return nil, fmt.Errorf("model %s:%s needs a model_path", cfg.Name, cfg.Version)
		}
		return NewWhisperCPP(binary, modelPath, runner, logger), nil
	}
}
