package gpu

import (
	"fmt"
)

type kernelKey struct {
	program string
	pass    int
}

// Precomputer fills the table store by running the precomputation graph. Kernels are
// loaded and every stage is checked once in Build; Record only encodes work.
type Precomputer struct {
	numBounces int

	graph    *Graph
	kernels  map[kernelKey]Kernel
	stages   []preparedStage
	runCount int
}

type preparedStage struct {
	stage    Stage
	kernel   Kernel
	bindings []ResolvedBinding
	groups   [3]uint32
}

func NewPrecomputer(numBounces int) *Precomputer {
	return &Precomputer{numBounces: numBounces}
}

// Build lays out and validates the graph, loads every kernel it needs and resolves
// bindings against the store. Any failure leaves the precomputer unbuilt.
func (p *Precomputer) Build(b Backend, store *TableStore) error {
	p.Release()

	graph, err := BuildPrecomputeGraph(p.numBounces)
	if err != nil {
		return err
	}
	if err := graph.Validate(); err != nil {
		return err
	}

	kernels := make(map[kernelKey]Kernel)
	release := func() {
		for _, k := range kernels {
			k.Release()
		}
	}

	stages := make([]preparedStage, 0, len(graph.Stages))
	for _, s := range graph.Stages {
		key := kernelKey{s.Program, s.Pass}
		k, ok := kernels[key]
		if !ok {
			k, err = b.LoadKernel(s.Program, s.Pass)
			if err != nil {
				release()
				return fmt.Errorf("failed to load %s pass %d: %w", s.Program, s.Pass, err)
			}
			kernels[key] = k
		}

		info := k.Info()
		if err := checkBindings(info, s.Bindings, BindConstants); err != nil {
			release()
			return err
		}

		groups, err := Groups(s.Extent, info.Workgroup)
		if err != nil {
			release()
			return fmt.Errorf("%s: %w", s.Label, err)
		}

		resolved, err := store.Resolve(s.Bindings)
		if err != nil {
			release()
			return fmt.Errorf("%s: %w", s.Label, err)
		}

		stages = append(stages, preparedStage{stage: s, kernel: k, bindings: resolved, groups: groups})
	}

	p.graph = graph
	p.kernels = kernels
	p.stages = stages
	return nil
}

// checkBindings requires every read and write binding, plus the listed extra names, to
// exist on the kernel. Unsampled bindings are optional.
func checkBindings(info KernelInfo, bindings []TableBinding, extra ...string) error {
	for _, name := range extra {
		if !info.HasBinding(name) {
			return fmt.Errorf("%s pass %d: %q: %w", info.Program, info.Pass, name, ErrMissingBinding)
		}
	}
	for _, b := range bindings {
		if b.Access == AccessUnsampled {
			continue
		}
		if !info.HasBinding(b.Name) {
			return fmt.Errorf("%s pass %d: %q: %w", info.Program, info.Pass, b.Name, ErrMissingBinding)
		}
	}
	return nil
}

func (p *Precomputer) Built() bool {
	return p.graph != nil
}

func (p *Precomputer) Graph() *Graph {
	return p.graph
}

// Record uploads the shared constants and encodes every stage in graph order.
func (p *Precomputer) Record(s Stream, constants []byte) error {
	if !p.Built() {
		return ErrNotBuilt
	}
	s.WriteUniform(UniformShared, constants)
	for _, st := range p.stages {
		if err := s.Dispatch(st.stage.Label, st.kernel, st.bindings, st.groups); err != nil {
			return fmt.Errorf("failed to dispatch %s: %w", st.stage.Label, err)
		}
	}
	p.runCount++
	return nil
}

// RunCount is the number of precomputations recorded so far.
func (p *Precomputer) RunCount() int {
	return p.runCount
}

func (p *Precomputer) Release() {
	for _, k := range p.kernels {
		k.Release()
	}
	p.kernels = nil
	p.stages = nil
	p.graph = nil
}
