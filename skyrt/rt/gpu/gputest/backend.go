// Package gputest provides a gpu.Backend that records work instead of running it.
package gputest

import (
	"fmt"
	"sync"

	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"
	"github.com/gekko3d/pbrsky/skyrt/rt/shaders"
)

type Key struct {
	Program string
	Pass    int
}

// Catalog mirrors the interface of the embedded WGSL kernels.
func Catalog() map[Key]gpu.KernelInfo {
	common := []string{gpu.BindConstants, gpu.BindSampler, gpu.BindOpticalDepthTexture}
	with := func(extra ...string) []string {
		return append(append([]string{}, common...), extra...)
	}
	radiance := [3]uint32{4, 4, 4}
	ground := [3]uint32{64, 1, 1}

	return map[Key]gpu.KernelInfo{
		{shaders.ProgramOpticalDepth, 0}: {
			Program: shaders.ProgramOpticalDepth, Pass: 0, EntryPoint: shaders.ComputeEntryPoint,
			Workgroup: [3]uint32{8, 8, 1},
			Bindings:  []string{gpu.BindConstants, gpu.BindOpticalDepthTable},
		},
		{shaders.ProgramGroundIrradiance, 0}: {
			Program: shaders.ProgramGroundIrradiance, Pass: 0, EntryPoint: shaders.ComputeEntryPoint,
			Workgroup: ground,
			Bindings:  with(gpu.BindGroundIrradianceTable),
		},
		{shaders.ProgramGroundIrradiance, 1}: {
			Program: shaders.ProgramGroundIrradiance, Pass: 1, EntryPoint: shaders.ComputeEntryPoint,
			Workgroup: ground,
			Bindings: with(gpu.BindGroundIrradianceTable, gpu.BindAirSingleScatteringTexture,
				gpu.BindAerosolSingleScatteringTex, gpu.BindMultipleScatteringTexture),
		},
		{shaders.ProgramInScatteredRadiance, 0}: {
			Program: shaders.ProgramInScatteredRadiance, Pass: 0, EntryPoint: shaders.ComputeEntryPoint,
			Workgroup: radiance,
			Bindings:  with(gpu.BindAirSingleScatteringTable, gpu.BindAerosolSingleScatteringTable),
		},
		{shaders.ProgramInScatteredRadiance, 1}: {
			Program: shaders.ProgramInScatteredRadiance, Pass: 1, EntryPoint: shaders.ComputeEntryPoint,
			Workgroup: radiance,
			Bindings: with(gpu.BindGroundIrradianceTexture, gpu.BindAirSingleScatteringTexture,
				gpu.BindAerosolSingleScatteringTex, gpu.BindMultipleScatteringTable),
		},
		{shaders.ProgramInScatteredRadiance, 2}: {
			Program: shaders.ProgramInScatteredRadiance, Pass: 2, EntryPoint: shaders.ComputeEntryPoint,
			Workgroup: radiance,
			Bindings:  with(gpu.BindMultipleScatteringTexture, gpu.BindMultipleScatteringTable),
		},
		{shaders.ProgramPbrSky, 0}: {
			Program: shaders.ProgramPbrSky, Pass: 0, EntryPoint: shaders.EntryPoint(shaders.ProgramPbrSky, 0),
			Bindings: with(gpu.BindDraw, gpu.BindGroundIrradianceTexture, gpu.BindAirSingleScatteringTexture,
				gpu.BindAerosolSingleScatteringTex, gpu.BindMultipleScatteringTexture),
		},
		{shaders.ProgramPbrSky, 1}: {
			Program: shaders.ProgramPbrSky, Pass: 1, EntryPoint: shaders.EntryPoint(shaders.ProgramPbrSky, 1),
			Bindings: with(gpu.BindDraw, gpu.BindGroundIrradianceTexture, gpu.BindAirSingleScatteringTexture,
				gpu.BindAerosolSingleScatteringTex, gpu.BindMultipleScatteringTexture),
		},
	}
}

type CallKind int

const (
	CallUniform CallKind = iota
	CallDispatch
	CallDraw
	CallSubmit
)

// Call is one recorded stream operation.
type Call struct {
	Kind     CallKind
	Stream   int
	Label    string
	Program  string
	Pass     int
	Bindings []gpu.TableBinding
	Groups   [3]uint32
	Slot     gpu.UniformSlot
	Data     []byte

	// Uniform contents a submitted stream executes with.
	Shared, Draw []byte
}

// Read is one table copied back to the host.
type Read struct {
	Table gpu.TableID
	Slice uint32
}

type Table struct {
	desc     gpu.TableDesc
	Released bool
}

func (t *Table) Desc() gpu.TableDesc { return t.desc }
func (t *Table) Release()            { t.Released = true }

type Kernel struct {
	info     gpu.KernelInfo
	Released bool
}

func (k *Kernel) Info() gpu.KernelInfo { return k.info }
func (k *Kernel) Release()             { k.Released = true }

// UniformSet keeps the latest bytes written to each slot, like a device buffer
// written through the queue.
type UniformSet struct {
	Label    string
	Released bool
	data     map[gpu.UniformSlot][]byte
}

func (u *UniformSet) Release() { u.Released = true }

// Target is a render target of a fixed size.
type Target struct {
	Width, Height uint32
}

func (t Target) Size() (uint32, uint32) { return t.Width, t.Height }

// Backend records every resource and stream call.
type Backend struct {
	mu sync.Mutex

	catalog   map[Key]gpu.KernelInfo
	FailTable bool
	// SingleUniformSet hands every caller of CreateUniforms the same set, like a
	// device with one constant buffer per slot.
	SingleUniformSet bool
	// BeforeSubmit runs at the start of every Submit, outside the backend lock.
	BeforeSubmit func()

	Tables    []*Table
	Kernels   []*Kernel
	Uniforms  []*UniformSet
	Calls     []Call
	Reads     []Read
	Streams   int
	Discarded int
}

func NewBackend() *Backend {
	return &Backend{catalog: Catalog()}
}

// RemoveKernel makes LoadKernel/LoadProgram fail for one program pass.
func (b *Backend) RemoveKernel(program string, pass int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.catalog, Key{program, pass})
}

// DropBinding removes a bind point from a kernel's interface.
func (b *Backend) DropBinding(program string, pass int, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.catalog[Key{program, pass}]
	if !ok {
		return
	}
	var kept []string
	for _, n := range info.Bindings {
		if n != name {
			kept = append(kept, n)
		}
	}
	info.Bindings = kept
	b.catalog[Key{program, pass}] = info
}

func (b *Backend) SetWorkgroup(program string, pass int, wg [3]uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info := b.catalog[Key{program, pass}]
	info.Workgroup = wg
	b.catalog[Key{program, pass}] = info
}

func (b *Backend) CreateTable(desc gpu.TableDesc) (gpu.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailTable {
		return nil, fmt.Errorf("out of memory creating %s", desc.Label)
	}
	t := &Table{desc: desc}
	b.Tables = append(b.Tables, t)
	return t, nil
}

func (b *Backend) load(program string, pass int) (*Kernel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.catalog[Key{program, pass}]
	if !ok {
		return nil, fmt.Errorf("%s pass %d: %w", program, pass, gpu.ErrMissingKernel)
	}
	info.Bindings = append([]string{}, info.Bindings...)
	k := &Kernel{info: info}
	b.Kernels = append(b.Kernels, k)
	return k, nil
}

func (b *Backend) LoadKernel(program string, pass int) (gpu.Kernel, error) {
	return b.load(program, pass)
}

func (b *Backend) LoadProgram(program string, pass int) (gpu.Program, error) {
	return b.load(program, pass)
}

func (b *Backend) CreateUniforms(label string) (gpu.Uniforms, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SingleUniformSet && len(b.Uniforms) > 0 {
		return b.Uniforms[0], nil
	}
	u := &UniformSet{Label: label, data: make(map[gpu.UniformSlot][]byte)}
	b.Uniforms = append(b.Uniforms, u)
	return u, nil
}

func (b *Backend) BeginStream(label string, u gpu.Uniforms) (gpu.Stream, error) {
	set, ok := u.(*UniformSet)
	if !ok || set.Released {
		return nil, fmt.Errorf("%s: no live uniform set", label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Streams++
	return &stream{b: b, u: set, id: b.Streams, label: label}, nil
}

// ReadTable returns a zeroed slice of the right size.
func (b *Backend) ReadTable(t gpu.Table, slice uint32) ([]float32, error) {
	size := t.Desc().Size
	if slice >= size.Depth {
		return nil, fmt.Errorf("slice %d out of range", slice)
	}
	b.mu.Lock()
	b.Reads = append(b.Reads, Read{Table: t.Desc().ID, Slice: slice})
	b.mu.Unlock()
	return make([]float32, size.Width*size.Height*4), nil
}

func (b *Backend) record(c Call) {
	b.mu.Lock()
	b.Calls = append(b.Calls, c)
	b.mu.Unlock()
}

// Filter returns the recorded calls of one kind, in order.
func (b *Backend) Filter(kind CallKind) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.Calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (b *Backend) Dispatches() []Call { return b.Filter(CallDispatch) }
func (b *Backend) Draws() []Call      { return b.Filter(CallDraw) }
func (b *Backend) Submits() []Call    { return b.Filter(CallSubmit) }

// Reset forgets recorded calls but keeps resources.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.Calls = nil
	b.mu.Unlock()
}

// Live counts tables, kernels and uniform sets not yet released.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.Tables {
		if !t.Released {
			n++
		}
	}
	for _, k := range b.Kernels {
		if !k.Released {
			n++
		}
	}
	for _, u := range b.Uniforms {
		if !u.Released {
			n++
		}
	}
	return n
}

type stream struct {
	b         *Backend
	u         *UniformSet
	id        int
	label     string
	submitted bool
	discarded bool
}

func (s *stream) WriteUniform(slot gpu.UniformSlot, data []byte) {
	s.b.mu.Lock()
	s.u.data[slot] = append([]byte{}, data...)
	s.b.mu.Unlock()
	s.b.record(Call{Kind: CallUniform, Stream: s.id, Slot: slot, Data: append([]byte{}, data...)})
}

func bindingsOf(rb []gpu.ResolvedBinding) []gpu.TableBinding {
	out := make([]gpu.TableBinding, len(rb))
	for i, b := range rb {
		out[i] = b.TableBinding
	}
	return out
}

func checkLive(rb []gpu.ResolvedBinding) error {
	for _, b := range rb {
		if t, ok := b.Resource.(*Table); !ok || t.Released {
			return fmt.Errorf("%s: %w", b.Table, gpu.ErrTableNotAllocated)
		}
	}
	return nil
}

func (s *stream) Dispatch(label string, k gpu.Kernel, bindings []gpu.ResolvedBinding, groups [3]uint32) error {
	if err := checkLive(bindings); err != nil {
		return err
	}
	info := k.Info()
	s.b.record(Call{
		Kind: CallDispatch, Stream: s.id, Label: label,
		Program: info.Program, Pass: info.Pass,
		Bindings: bindingsOf(bindings), Groups: groups,
	})
	return nil
}

func (s *stream) DrawFullscreen(label string, p gpu.Program, bindings []gpu.ResolvedBinding, target gpu.RenderTarget) error {
	if err := checkLive(bindings); err != nil {
		return err
	}
	if w, h := target.Size(); w == 0 || h == 0 {
		return fmt.Errorf("%s: empty target", label)
	}
	info := p.Info()
	s.b.record(Call{
		Kind: CallDraw, Stream: s.id, Label: label,
		Program: info.Program, Pass: info.Pass,
		Bindings: bindingsOf(bindings),
	})
	return nil
}

func (s *stream) Discard() {
	if !s.submitted {
		s.discarded = true
		s.b.mu.Lock()
		s.b.Discarded++
		s.b.mu.Unlock()
	}
}

func (s *stream) Submit() error {
	if s.b.BeforeSubmit != nil {
		s.b.BeforeSubmit()
	}
	if s.submitted {
		return fmt.Errorf("%s submitted twice", s.label)
	}
	if s.discarded {
		return fmt.Errorf("%s submitted after discard", s.label)
	}
	s.submitted = true
	s.b.mu.Lock()
	c := Call{
		Kind: CallSubmit, Stream: s.id, Label: s.label,
		Shared: append([]byte{}, s.u.data[gpu.UniformShared]...),
		Draw:   append([]byte{}, s.u.data[gpu.UniformDraw]...),
	}
	s.b.mu.Unlock()
	s.b.record(c)
	return nil
}
