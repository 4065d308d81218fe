package ruletype

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// defaultRegistry holds the built-in rule types.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry. Built-in types are added to it
// when package builtin is imported.
func Default() *Registry {
	return defaultRegistry
}

// Registry maps rule type identifiers to rule types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type // keyed by ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Register adds t to the registry. Registering an identifier twice is an error.
func (r *Registry) Register(t Type) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("rule type has empty id")
	}
	if t.Bind == nil {
		return fmt.Errorf("rule type %q has no bind function", t.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.ID]; exists {
		return fmt.Errorf("rule type %q already registered", t.ID)
	}
	r.types[t.ID] = t
	return nil
}

// MustRegister is like Register but panics on error.
// Call this from init() functions.
func (r *Registry) MustRegister(t Type) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the rule type with the given id. Unknown identifiers yield
// an error wrapping core.ErrUnknownRuleType, with a suggestion when a
// registered id is close.
func (r *Registry) Lookup(id string) (Type, error) {
	r.mu.RLock()
	t, ok := r.types[id]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	if s := r.suggest(id); s != "" {
		return Type{}, fmt.Errorf("%w %q (did you mean %q?)", core.ErrUnknownRuleType, id, s)
	}
	return Type{}, fmt.Errorf("%w %q", core.ErrUnknownRuleType, id)
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[id]
	return ok
}

// All returns all registered types sorted by id.
func (r *Registry) All() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].ID < types[j].ID
	})
	return types
}

// IDs returns all registered identifiers, sorted.
func (r *Registry) IDs() []string {
	all := r.All()
	ids := make([]string, len(all))
	for i, t := range all {
		ids[i] = t.ID
	}
	return ids
}

// suggest returns the registered id closest to id, or "".
func (r *Registry) suggest(id string) string {
	if strings.TrimSpace(id) == "" {
		return ""
	}
	ids := r.IDs()

	ranks := fuzzy.Find(id, ids)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		return ranks[0].Str
	}

	// A misspelling with extra characters ("has_tags") is not a subsequence
	// of the registered id, so also try the other direction.
	best, bestScore := "", 0
	for _, candidate := range ids {
		m := fuzzy.Find(candidate, []string{id})
		if len(m) > 0 && (best == "" || m[0].Score > bestScore) {
			best, bestScore = candidate, m[0].Score
		}
	}
	return best
}
