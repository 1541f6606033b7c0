package app

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"

	"golang.org/x/image/tiff"
)

// DumpTable reads one depth slice of a table back to the host and writes it as a
// 16 bit TIFF. Radiance is tonemapped with x/(1+x) per channel; optical depth is
// written as exp(-x) so opaque texels come out black. Blocks until the copy is done.
func (r *SkyRenderer) DumpTable(id gpu.TableID, slice uint32, w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.built {
		return gpu.ErrNotBuilt
	}
	reader, ok := r.backend.(gpu.TableReader)
	if !ok {
		return fmt.Errorf("backend cannot read tables back")
	}
	t, err := r.tables.Table(id)
	if err != nil {
		return err
	}
	texels, err := reader.ReadTable(t, slice)
	if err != nil {
		return fmt.Errorf("failed to read %s slice %d: %w", id, slice, err)
	}

	size := t.Desc().Size
	img := TableImage(texels, int(size.Width), int(size.Height), id == gpu.OpticalDepthTable)
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("failed to encode %s: %w", id, err)
	}
	r.logger.Debugf("sky %s: dumped %s slice %d (%dx%d)", r.ID, id, slice, size.Width, size.Height)
	return nil
}

// DumpRadiance writes the slice of a radiance table that holds one azimuth and light
// zenith bucket.
func (r *SkyRenderer) DumpRadiance(id gpu.TableID, azimuth, lightZenith uint32, w io.Writer) error {
	if gpu.DescribeTable(id).Size.Depth != gpu.PackedDepthCount {
		return fmt.Errorf("%s is not a radiance table", id)
	}
	slice, err := gpu.RadianceSlice(azimuth, lightZenith)
	if err != nil {
		return err
	}
	return r.DumpTable(id, slice, w)
}

// TableImage converts RGBA float texels to a displayable 16 bit image.
func TableImage(texels []float32, width, height int, depth bool) *image.RGBA64 {
	img := image.NewRGBA64(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			if i+3 >= len(texels) {
				return img
			}
			img.SetRGBA64(x, y, color.RGBA64{
				R: toUnorm16(texels[i], depth),
				G: toUnorm16(texels[i+1], depth),
				B: toUnorm16(texels[i+2], depth),
				A: 0xffff,
			})
		}
	}
	return img
}

func toUnorm16(v float32, depth bool) uint16 {
	f := float64(v)
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	var n float64
	switch {
	case depth:
		n = math.Exp(-f)
	case math.IsInf(f, 1):
		n = 1
	default:
		n = f / (1.0 + f)
	}
	return uint16(n*65535.0 + 0.5)
}
