package gpu

import (
	"fmt"

	"github.com/gekko3d/pbrsky/skyrt/rt/shaders"
)

// KernelSource is a program pass assembled and reflected, ready to hand to a device.
type KernelSource struct {
	Info  KernelInfo
	Code  string
	Stage shaders.Stage
	Slots map[string]uint32 // bind point name -> @binding in group 0
}

// ReflectKernel assembles the WGSL for a program pass and reads its interface back
// with naga, so bind points are looked up by name rather than by slot number.
func ReflectKernel(program string, pass int) (*KernelSource, error) {
	code, err := shaders.Source(LayoutPrelude(), program, pass)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKernel, err)
	}
	refl, err := shaders.Reflect(code)
	if err != nil {
		return nil, fmt.Errorf("%s pass %d: %w", program, pass, err)
	}

	entry := shaders.EntryPoint(program, pass)
	ep, ok := refl.EntryPoint(entry)
	if !ok {
		return nil, fmt.Errorf("%s pass %d: entry point %q: %w", program, pass, entry, ErrMissingKernel)
	}

	ks := &KernelSource{
		Info: KernelInfo{
			Program:    program,
			Pass:       pass,
			EntryPoint: entry,
			Bindings:   refl.BindingNames(),
		},
		Code:  code,
		Stage: ep.Stage,
		Slots: make(map[string]uint32, len(refl.Bindings)),
	}
	if ep.Stage == shaders.StageCompute {
		ks.Info.Workgroup = ep.Workgroup
	}
	for _, b := range refl.Bindings {
		if b.Group != 0 {
			return nil, fmt.Errorf("%s pass %d: %q uses group %d, only group 0 is bound", program, pass, b.Name, b.Group)
		}
		ks.Slots[b.Name] = b.Binding
	}
	return ks, nil
}
