package density

import (
	"fmt"
	"sort"
	"sync"

	"wjjfit/domain/histogram"
	"wjjfit/internal/errors"
)

// Workspace is a named registry of models shared by the builders of one
// analysis. Registering a name twice returns the first model.
type Workspace struct {
	mu     sync.Mutex
	models map[string]Model
}

// NewWorkspace creates an empty workspace
func NewWorkspace() *Workspace {
	return &Workspace{models: make(map[string]Model)}
}

// Get returns the model registered under name
func (w *Workspace) Get(name string) (Model, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.models[name]
	return m, ok
}

// Import registers m under its name unless the name is taken, and returns
// the registered model.
func (w *Workspace) Import(m Model) Model {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.models[m.Name()]; ok {
		return existing
	}
	w.models[m.Name()] = m
	return m
}

// EmpiricalFromHistogram returns the model registered under name, building
// and registering an Empirical from h only when the name is new.
func (w *Workspace) EmpiricalFromHistogram(name string, h *histogram.Histogram) (Model, error) {
	if m, ok := w.Get(name); ok {
		return m, nil
	}
	e, err := NewEmpirical(name, h)
	if err != nil {
		return nil, err
	}
	return w.Import(e), nil
}

// Empirical returns the registered Empirical named name
func (w *Workspace) Empirical(name string) (*Empirical, error) {
	m, ok := w.Get(name)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("model %s", name))
	}
	e, ok := m.(*Empirical)
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("model %s is %T, not empirical", name, m))
	}
	return e, nil
}

// Names lists the registered model names in sorted order
func (w *Workspace) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.models))
	for n := range w.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
