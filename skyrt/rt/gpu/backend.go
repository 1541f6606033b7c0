package gpu

// Table is one allocated lookup table on the device.
type Table interface {
	Desc() TableDesc
	Release()
}

// KernelInfo is what reflection tells us about a loaded program pass.
type KernelInfo struct {
	Program    string
	Pass       int
	EntryPoint string
	Workgroup  [3]uint32 // zero for render programs
	Bindings   []string
}

func (k KernelInfo) HasBinding(name string) bool {
	for _, b := range k.Bindings {
		if b == name {
			return true
		}
	}
	return false
}

// Kernel is a compute pipeline for one pass of a program.
type Kernel interface {
	Info() KernelInfo
	Release()
}

// Program is a full-screen render pipeline for one pass of a program.
type Program interface {
	Info() KernelInfo
	Release()
}

type Access int

const (
	AccessRead Access = iota
	AccessWrite
	// AccessUnsampled binds a table the kernel interface names but whose contents the
	// pass does not consume. It never creates a dependency.
	AccessUnsampled
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessUnsampled:
		return "unsampled"
	}
	return "unknown"
}

// TableBinding attaches a table to a named bind point of a kernel.
type TableBinding struct {
	Name   string
	Table  TableID
	Access Access
}

type UniformSlot int

const (
	UniformShared UniformSlot = iota // SharedConstants, kernels and compositor
	UniformDraw                      // DrawConstants, compositor only
)

// ResolvedBinding is a TableBinding with its table looked up.
type ResolvedBinding struct {
	TableBinding
	Resource Table
}

// RenderTarget is the color attachment of a composite draw.
type RenderTarget interface {
	Size() (width, height uint32)
}

// Uniforms is one set of constant buffers, one per UniformSlot. Streams begun on
// different sets never see each other's writes.
type Uniforms interface {
	Release()
}

// Stream records GPU work for one frame. Work executes in recording order once
// Submit is called; nothing runs before that.
type Stream interface {
	// WriteUniform replaces the contents of a slot in the stream's uniform set. The
	// write is applied when recorded, so a later write to the same set wins for every
	// stream that has not executed yet.
	WriteUniform(slot UniformSlot, data []byte)
	Dispatch(label string, k Kernel, bindings []ResolvedBinding, groups [3]uint32) error
	DrawFullscreen(label string, p Program, bindings []ResolvedBinding, target RenderTarget) error
	Submit() error
	// Discard drops recorded work without running it. No-op after Submit.
	Discard()
}

// Backend creates device resources. The wgpu implementation lives in this package;
// tests use a recording implementation.
type Backend interface {
	CreateTable(desc TableDesc) (Table, error)
	LoadKernel(program string, pass int) (Kernel, error)
	LoadProgram(program string, pass int) (Program, error)
	CreateUniforms(label string) (Uniforms, error)
	BeginStream(label string, u Uniforms) (Stream, error)
}

// TableReader is implemented by backends that can copy a table back to the host.
// The result holds RGBA texels for one depth slice, row major.
type TableReader interface {
	ReadTable(t Table, slice uint32) ([]float32, error)
}
