package gpu

import (
	"fmt"

	"github.com/gekko3d/pbrsky/skyrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

// WgpuBackend runs the sky on a wgpu device. Kernels use automatic pipeline layouts
// with a single bind group; slots come from shader reflection.
type WgpuBackend struct {
	Device       *wgpu.Device
	Queue        *wgpu.Queue
	TargetFormat wgpu.TextureFormat

	Sampler *wgpu.Sampler
}

func NewWgpuBackend(device *wgpu.Device, targetFormat wgpu.TextureFormat) (*WgpuBackend, error) {
	b := &WgpuBackend{
		Device:       device,
		Queue:        device.GetQueue(),
		TargetFormat: targetFormat,
	}

	var err error
	b.Sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Sky Linear Clamp",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sky sampler: %w", err)
	}
	return b, nil
}

// Release frees the backend's own resources. Tables and kernels are released by
// their owners.
func (b *WgpuBackend) Release() {
	if b.Sampler != nil {
		b.Sampler.Release()
		b.Sampler = nil
	}
}

type wgpuUniforms struct {
	shared *wgpu.Buffer
	draw   *wgpu.Buffer
}

func (u *wgpuUniforms) Release() {
	if u.shared != nil {
		u.shared.Release()
		u.shared = nil
	}
	if u.draw != nil {
		u.draw.Release()
		u.draw = nil
	}
}

func (b *WgpuBackend) CreateUniforms(label string) (Uniforms, error) {
	u := &wgpuUniforms{}
	var err error
	u.shared, err = b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Shared",
		Size:  SharedConstantsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sky constants buffer: %w", err)
	}
	u.draw, err = b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Draw",
		Size:  DrawConstantsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		u.Release()
		return nil, fmt.Errorf("failed to create sky draw buffer: %w", err)
	}
	return u, nil
}

type wgpuTable struct {
	desc    TableDesc
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *wgpuTable) Desc() TableDesc { return t.desc }

func (t *wgpuTable) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

func (b *WgpuBackend) CreateTable(desc TableDesc) (Table, error) {
	dim := wgpu.TextureDimension2D
	if desc.Dimension == Dimension3D {
		dim = wgpu.TextureDimension3D
	}
	tex, err := b.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: desc.Size.Width, Height: desc.Size.Height, DepthOrArrayLayers: desc.Size.Depth},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     dim,
		Format:        wgpu.TextureFormatRGBA16Float,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTable{desc: desc, texture: tex, view: view}, nil
}

type wgpuKernel struct {
	src      *KernelSource
	module   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

func (k *wgpuKernel) Info() KernelInfo { return k.src.Info }

func (k *wgpuKernel) Release() {
	if k.pipeline != nil {
		k.pipeline.Release()
		k.pipeline = nil
	}
	if k.module != nil {
		k.module.Release()
		k.module = nil
	}
}

func (b *WgpuBackend) LoadKernel(program string, pass int) (Kernel, error) {
	src, err := ReflectKernel(program, pass)
	if err != nil {
		return nil, err
	}
	if src.Stage != shaders.StageCompute {
		return nil, fmt.Errorf("%s pass %d is not a compute kernel: %w", program, pass, ErrMissingKernel)
	}

	label := fmt.Sprintf("Sky %s %d", program, pass)
	module, err := b.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Code},
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := b.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: src.Info.EntryPoint,
		},
	})
	if err != nil {
		module.Release()
		return nil, err
	}
	return &wgpuKernel{src: src, module: module, pipeline: pipeline}, nil
}

type wgpuProgram struct {
	src      *KernelSource
	module   *wgpu.ShaderModule
	pipeline *wgpu.RenderPipeline
}

func (p *wgpuProgram) Info() KernelInfo { return p.src.Info }

func (p *wgpuProgram) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}

func (b *WgpuBackend) LoadProgram(program string, pass int) (Program, error) {
	src, err := ReflectKernel(program, pass)
	if err != nil {
		return nil, err
	}
	if src.Stage != shaders.StageFragment {
		return nil, fmt.Errorf("%s pass %d is not a fragment program: %w", program, pass, ErrMissingKernel)
	}

	label := fmt.Sprintf("Sky %s %d", program, pass)
	module, err := b.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Code},
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := b.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: label,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: shaders.VertexEntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: src.Info.EntryPoint,
			Targets: []wgpu.ColorTargetState{{
				Format:    b.TargetFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		module.Release()
		return nil, err
	}
	return &wgpuProgram{src: src, module: module, pipeline: pipeline}, nil
}

// WgpuTarget is a color attachment for the composite draw. The draw clears it and has
// no depth attachment, so the sky goes first and scene geometry is drawn over it.
type WgpuTarget struct {
	View          *wgpu.TextureView
	Width, Height uint32
}

func (t *WgpuTarget) Size() (uint32, uint32) { return t.Width, t.Height }

type wgpuStream struct {
	b          *WgpuBackend
	u          *wgpuUniforms
	label      string
	encoder    *wgpu.CommandEncoder
	bindGroups []*wgpu.BindGroup
}

func (b *WgpuBackend) BeginStream(label string, u Uniforms) (Stream, error) {
	wu, ok := u.(*wgpuUniforms)
	if !ok || wu.shared == nil {
		return nil, fmt.Errorf("%s: uniform set is not a live wgpu set", label)
	}
	encoder, err := b.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuStream{b: b, u: wu, label: label, encoder: encoder}, nil
}

// WriteUniform goes through the queue, so it lands before this stream's work runs.
func (s *wgpuStream) WriteUniform(slot UniformSlot, data []byte) {
	buf := s.u.shared
	if slot == UniformDraw {
		buf = s.u.draw
	}
	s.b.Queue.WriteBuffer(buf, 0, data)
}

func (s *wgpuStream) bindGroup(label string, layout *wgpu.BindGroupLayout, src *KernelSource, bindings []ResolvedBinding) (*wgpu.BindGroup, error) {
	var entries []wgpu.BindGroupEntry
	if slot, ok := src.Slots[BindConstants]; ok {
		entries = append(entries, wgpu.BindGroupEntry{Binding: slot, Buffer: s.u.shared, Size: wgpu.WholeSize})
	}
	if slot, ok := src.Slots[BindDraw]; ok {
		entries = append(entries, wgpu.BindGroupEntry{Binding: slot, Buffer: s.u.draw, Size: wgpu.WholeSize})
	}
	if slot, ok := src.Slots[BindSampler]; ok {
		entries = append(entries, wgpu.BindGroupEntry{Binding: slot, Sampler: s.b.Sampler})
	}
	for _, rb := range bindings {
		// Unsampled tables are not referenced by the shader, so automatic layouts
		// do not contain them.
		if rb.Access == AccessUnsampled {
			continue
		}
		slot, ok := src.Slots[rb.Name]
		if !ok {
			return nil, fmt.Errorf("%q: %w", rb.Name, ErrMissingBinding)
		}
		t, ok := rb.Resource.(*wgpuTable)
		if !ok || t.view == nil {
			return nil, fmt.Errorf("%s: %w", rb.Table, ErrTableNotAllocated)
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: slot, TextureView: t.view})
	}

	bg, err := s.b.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	s.bindGroups = append(s.bindGroups, bg)
	return bg, nil
}

func (s *wgpuStream) Dispatch(label string, k Kernel, bindings []ResolvedBinding, groups [3]uint32) error {
	wk, ok := k.(*wgpuKernel)
	if !ok {
		return fmt.Errorf("%s: foreign kernel %T", label, k)
	}
	layout := wk.pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bg, err := s.bindGroup(label, layout, wk.src, bindings)
	if err != nil {
		return err
	}

	pass := s.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	pass.SetPipeline(wk.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	return pass.End()
}

func (s *wgpuStream) DrawFullscreen(label string, p Program, bindings []ResolvedBinding, target RenderTarget) error {
	wp, ok := p.(*wgpuProgram)
	if !ok {
		return fmt.Errorf("%s: foreign program %T", label, p)
	}
	wt, ok := target.(*WgpuTarget)
	if !ok || wt.View == nil {
		return fmt.Errorf("%s: target is not a wgpu view", label)
	}
	layout := wp.pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bg, err := s.bindGroup(label, layout, wp.src, bindings)
	if err != nil {
		return err
	}

	rPass := s.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       wt.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	rPass.SetPipeline(wp.pipeline)
	rPass.SetBindGroup(0, bg, nil)
	rPass.Draw(3, 1, 0, 0)
	return rPass.End()
}

func (s *wgpuStream) Submit() error {
	if s.encoder == nil {
		return fmt.Errorf("%s: stream already finished", s.label)
	}
	defer s.release()
	cmd, err := s.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%s: %w", s.label, err)
	}
	defer cmd.Release()
	s.b.Queue.Submit(cmd)
	return nil
}

func (s *wgpuStream) Discard() {
	s.release()
}

func (s *wgpuStream) release() {
	for _, bg := range s.bindGroups {
		bg.Release()
	}
	s.bindGroups = nil
	if s.encoder != nil {
		s.encoder.Release()
		s.encoder = nil
	}
}
