package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ReadTable copies one depth slice of a table to the host and waits for it. Debug
// use only: it stalls the device.
func (b *WgpuBackend) ReadTable(t Table, slice uint32) ([]float32, error) {
	wt, ok := t.(*wgpuTable)
	if !ok || wt.texture == nil {
		return nil, ErrTableNotAllocated
	}
	size := wt.desc.Size
	if slice >= size.Depth {
		return nil, fmt.Errorf("slice %d out of range for %s", slice, wt.desc.ID)
	}

	bytesPerRow := (size.Width*texelBytes + 255) & ^uint32(255)
	bufSize := uint64(bytesPerRow) * uint64(size.Height)

	readback, err := b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Sky Table Readback",
		Size:  bufSize,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, err
	}
	defer readback.Release()

	encoder, err := b.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{0, 0, slice},
		},
		&wgpu.ImageCopyBuffer{
			Buffer: readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: size.Height,
			},
		},
		&wgpu.Extent3D{Width: size.Width, Height: size.Height, DepthOrArrayLayers: 1},
	)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	b.Queue.Submit(cmd)
	cmd.Release()

	var status wgpu.BufferMapAsyncStatus
	done := false
	readback.MapAsync(wgpu.MapModeRead, 0, bufSize, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	for !done {
		b.Device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("failed to map %s readback: status %d", wt.desc.ID, status)
	}
	defer readback.Unmap()

	data := readback.GetMappedRange(0, uint(bufSize))
	return DecodeHalfRows(data, size.Width, size.Height, bytesPerRow)
}
