package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/philipparndt/stl2step/pkg/geometry"
)

// WriteASCII writes the models as consecutive ASCII solids
func WriteASCII(w io.Writer, models ...*Model) error {
	bw := bufio.NewWriter(w)
	for _, m := range models {
		fmt.Fprintf(bw, "solid %s\n", m.Name)
		for _, t := range m.Triangles {
			fmt.Fprintf(bw, "  facet normal %s\n", formatVector(t.Normal))
			bw.WriteString("    outer loop\n")
			for _, v := range []geometry.Vector3{t.V1, t.V2, t.V3} {
				fmt.Fprintf(bw, "      vertex %s\n", formatVector(v))
			}
			bw.WriteString("    endloop\n")
			bw.WriteString("  endfacet\n")
		}
		fmt.Fprintf(bw, "endsolid %s\n", m.Name)
	}
	return bw.Flush()
}

// WriteBinary writes a single model in binary STL format
func WriteBinary(w io.Writer, m *Model) error {
	header := make([]byte, binaryHeaderSize)
	copy(header, m.Name)

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %w", err)
	}
	for i, t := range m.Triangles {
		rec := binaryRecord{
			Normal: toFloat32(t.Normal),
			V1:     toFloat32(t.V1),
			V2:     toFloat32(t.V2),
			V3:     toFloat32(t.V3),
		}
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("failed to write triangle %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func formatVector(v geometry.Vector3) string {
	return strconv.FormatFloat(v.X, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Y, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Z, 'g', -1, 64)
}

func toFloat32(v geometry.Vector3) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
