package shaders

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

type EntryPointInfo struct {
	Name      string
	Stage     Stage
	Workgroup [3]uint32
}

type BindingInfo struct {
	Name    string
	Group   uint32
	Binding uint32
}

// Reflection is what the pipeline needs to know about a compiled module without
// a device: entry points with their workgroup sizes and the named resource slots.
type Reflection struct {
	EntryPoints []EntryPointInfo
	Bindings    []BindingInfo
}

// Reflect parses, lowers and validates WGSL source.
func Reflect(source string) (*Reflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("lowering error: %w", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", verrs[0])
	}

	r := &Reflection{}
	for _, ep := range module.EntryPoints {
		info := EntryPointInfo{Name: ep.Name, Workgroup: ep.Workgroup}
		switch ep.Stage {
		case ir.StageVertex:
			info.Stage = StageVertex
		case ir.StageFragment:
			info.Stage = StageFragment
		case ir.StageCompute:
			info.Stage = StageCompute
		default:
			continue
		}
		r.EntryPoints = append(r.EntryPoints, info)
	}
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		r.Bindings = append(r.Bindings, BindingInfo{
			Name:    gv.Name,
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
		})
	}
	return r, nil
}

func (r *Reflection) EntryPoint(name string) (EntryPointInfo, bool) {
	for _, ep := range r.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPointInfo{}, false
}

func (r *Reflection) BindingNames() []string {
	names := make([]string, 0, len(r.Bindings))
	for _, b := range r.Bindings {
		names = append(names, b.Name)
	}
	return names
}
