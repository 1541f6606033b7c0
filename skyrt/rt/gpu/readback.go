package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"
)

const texelBytes = 8 // rgba16float

// DecodeHalfRows widens a copied rgba16float image to float32 texels. Rows are
// bytesPerRow apart, which may include padding past the last texel.
func DecodeHalfRows(data []byte, width, height, bytesPerRow uint32) ([]float32, error) {
	if bytesPerRow < width*texelBytes {
		return nil, fmt.Errorf("row pitch %d below %d texels", bytesPerRow, width)
	}
	if height > 0 && uint64(len(data)) < uint64(bytesPerRow)*uint64(height-1)+uint64(width*texelBytes) {
		return nil, fmt.Errorf("readback holds %d bytes, need %d rows of %d", len(data), height, bytesPerRow)
	}

	out := make([]float32, 0, width*height*4)
	for y := uint32(0); y < height; y++ {
		row := data[y*bytesPerRow:]
		for x := uint32(0); x < width*4; x++ {
			out = append(out, float16.Frombits(binary.LittleEndian.Uint16(row[x*2:])).Float32())
		}
	}
	return out, nil
}
