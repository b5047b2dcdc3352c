package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pranaflow/pranaflow/pkg/analysis"
	"github.com/pranaflow/pranaflow/pkg/speech"
)

// ErrProviderNotRegistered is returned when no factory exists for the
// requested provider name. main treats it as "skip this slot", so a config
// can name providers a given build does not ship.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// SpeechFactory builds a speech synthesizer from its config entry.
type SpeechFactory func(ProviderEntry) (speech.Synthesizer, error)

// AnalysisFactory builds a pose analyzer from its config entry.
type AnalysisFactory func(ProviderEntry) (analysis.Analyzer, error)

// Registry maps provider names to factories, one namespace per provider
// kind. Safe for concurrent use; registering a name twice overwrites.
type Registry struct {
	mu       sync.RWMutex
	speech   map[string]SpeechFactory
	analysis map[string]AnalysisFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		speech:   make(map[string]SpeechFactory),
		analysis: make(map[string]AnalysisFactory),
	}
}

// RegisterSpeech adds a speech factory under name.
func (r *Registry) RegisterSpeech(name string, factory SpeechFactory) {
	r.mu.Lock()
	r.speech[name] = factory
	r.mu.Unlock()
}

// RegisterAnalysis adds an analysis factory under name.
func (r *Registry) RegisterAnalysis(name string, factory AnalysisFactory) {
	r.mu.Lock()
	r.analysis[name] = factory
	r.mu.Unlock()
}

// CreateSpeech builds the synthesizer entry.Name refers to.
func (r *Registry) CreateSpeech(entry ProviderEntry) (speech.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.speech[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAnalysis builds the analyzer entry.Name refers to.
func (r *Registry) CreateAnalysis(entry ProviderEntry) (analysis.Analyzer, error) {
	r.mu.RLock()
	factory, ok := r.analysis[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: analysis/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
