package gpu

import (
	"fmt"
)

// TableStore owns the lookup tables and the uniform set the kernels reading them are
// fed through. They are allocated once and live until Release; a precomputation
// overwrites them in place.
type TableStore struct {
	tables   [tableCount]Table
	uniforms Uniforms
}

func NewTableStore() *TableStore {
	return &TableStore{}
}

// Allocate creates the uniform set and every table. On failure everything created so
// far is released.
func (s *TableStore) Allocate(b Backend) error {
	if s.Allocated() {
		return nil
	}
	if s.uniforms == nil {
		u, err := b.CreateUniforms("Sky Constants")
		if err != nil {
			return fmt.Errorf("failed to allocate sky constants: %w", err)
		}
		s.uniforms = u
	}
	for _, id := range AllTables() {
		t, err := b.CreateTable(DescribeTable(id))
		if err != nil {
			s.Release()
			return fmt.Errorf("failed to allocate %s table: %w", id, err)
		}
		s.tables[id] = t
	}
	return nil
}

func (s *TableStore) Allocated() bool {
	if s.uniforms == nil {
		return false
	}
	for _, t := range s.tables {
		if t == nil {
			return false
		}
	}
	return true
}

func (s *TableStore) Table(id TableID) (Table, error) {
	if id < 0 || id >= tableCount || s.tables[id] == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrTableNotAllocated)
	}
	return s.tables[id], nil
}

// BeginStream starts a stream that writes this store's uniform set.
func (s *TableStore) BeginStream(b Backend, label string) (Stream, error) {
	if s.uniforms == nil {
		return nil, fmt.Errorf("sky constants: %w", ErrTableNotAllocated)
	}
	return b.BeginStream(label, s.uniforms)
}

// Resolve looks up the tables behind a binding list.
func (s *TableStore) Resolve(bindings []TableBinding) ([]ResolvedBinding, error) {
	out := make([]ResolvedBinding, 0, len(bindings))
	for _, b := range bindings {
		t, err := s.Table(b.Table)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedBinding{TableBinding: b, Resource: t})
	}
	return out, nil
}

// Release frees every table and the uniform set. Safe to call more than once.
func (s *TableStore) Release() {
	if s.uniforms != nil {
		s.uniforms.Release()
		s.uniforms = nil
	}
	for i, t := range s.tables {
		if t != nil {
			t.Release()
			s.tables[i] = nil
		}
	}
}
