package sentences

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"sentrec/internal/domain"
)

var ErrUnknownSet = errors.New("unknown sentence set")

// Builtin returns the sets that ship with the recorder.
func Builtin() []domain.SentenceSet {
	return []domain.SentenceSet{
		{Name: "set1", Sentences: []string{
			"The quick brown fox jumps over the lazy dog.",
			"Pack my box with five dozen liquor jugs.",
			"How vexingly quick daft zebras jump!",
		}},
		{Name: "set2", Sentences: []string{
			"Sphinx of black quartz, judge my vow.",
			"Two driven jocks help fax my big quiz.",
			"The five boxing wizards jump quickly.",
		}},
	}
}

// Provider serves named sentence sets in registration order.
type Provider struct {
	mu    sync.RWMutex
	sets  map[string]domain.SentenceSet
	order []string
}

func NewProvider(sets ...domain.SentenceSet) *Provider {
	p := &Provider{sets: make(map[string]domain.SentenceSet)}
	for _, set := range sets {
		p.Add(set)
	}
	return p
}

// LoadDir returns the built-in sets plus every .yaml, .yml and .json file in
// dir. A missing dir is not an error. Unreadable or empty files are logged
// and skipped; a file may replace a built-in set by reusing its name.
func LoadDir(dir string, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := NewProvider(Builtin()...)
	if strings.TrimSpace(dir) == "" {
		return p, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("read sentence sets: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !supported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		set, err := LoadFile(path)
		if err != nil {
			logger.Warn("skipping sentence set", zap.String("path", path), zap.Error(err))
			continue
		}
		p.Add(set)
		logger.Debug("loaded sentence set", zap.String("name", set.Name), zap.Int("sentences", set.Len()))
	}
	return p, nil
}

// LoadFile reads one sentence set file.
func LoadFile(path string) (domain.SentenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SentenceSet{}, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes a set from YAML or JSON, chosen by the filename extension.
// The document holds a `text` list; `name` defaults to the file stem.
// Blank sentences are dropped.
func Parse(data []byte, filename string) (domain.SentenceSet, error) {
	var set domain.SentenceSet
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		if err := json.Unmarshal(data, &set); err != nil {
			return domain.SentenceSet{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &set); err != nil {
			return domain.SentenceSet{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	set.Name = strings.TrimSpace(set.Name)
	if set.Name == "" {
		base := filepath.Base(filename)
		set.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	sentences := make([]string, 0, len(set.Sentences))
	for _, sentence := range set.Sentences {
		if trimmed := strings.TrimSpace(sentence); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	if len(sentences) == 0 {
		return domain.SentenceSet{}, fmt.Errorf("set %q has no sentences", set.Name)
	}
	set.Sentences = sentences
	return set, nil
}

// Add registers set, replacing any set with the same name in place.
func (p *Provider) Add(set domain.SentenceSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sets[set.Name]; !ok {
		p.order = append(p.order, set.Name)
	}
	p.sets[set.Name] = set
}

func (p *Provider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *Provider) Get(name string) (domain.SentenceSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.sets[name]
	if !ok {
		return domain.SentenceSet{}, fmt.Errorf("%w: %s", ErrUnknownSet, name)
	}
	sentences := make([]string, len(set.Sentences))
	copy(sentences, set.Sentences)
	set.Sentences = sentences
	return set, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
