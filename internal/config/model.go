package config

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/causalgrid/internal/model"
)

// Model is the unified, format-agnostic representation of a record corpus.
type Model struct {
	Nodes          []*model.Node
	Mechanisms     []*model.MechanismSpec
	Consolidations []*model.Consolidation
	Interventions  map[string]*model.Intervention
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{Interventions: make(map[string]*model.Intervention)}
}

// Merge appends other into m. Interventions are keyed by name; a name
// declared twice is an error because it would silently shadow one of them.
func (m *Model) Merge(other *Model) error {
	if other == nil {
		return nil
	}
	m.Nodes = append(m.Nodes, other.Nodes...)
	m.Mechanisms = append(m.Mechanisms, other.Mechanisms...)
	m.Consolidations = append(m.Consolidations, other.Consolidations...)
	if m.Interventions == nil {
		m.Interventions = make(map[string]*model.Intervention)
	}
	for name, iv := range other.Interventions {
		if _, exists := m.Interventions[name]; exists {
			return fmt.Errorf("intervention %q declared more than once", name)
		}
		m.Interventions[name] = iv
	}
	return nil
}

// RecordCount is the number of graph records (interventions excluded).
func (m *Model) RecordCount() int {
	return len(m.Nodes) + len(m.Mechanisms) + len(m.Consolidations)
}

// Origin formats a file:line location for records.
func Origin(file string, line int) string {
	if line <= 0 {
		return file
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// NormalizeKey lowercases and trims a vocabulary value read from a file.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
