package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/philipparndt/stl2step/pkg/geometry"
)

const (
	binaryHeaderSize = 80
	binaryRecordSize = 50
)

// ErrEmpty is returned when a file contains no triangles
var ErrEmpty = errors.New("stl contains no triangles")

// Parse reads an STL file and returns one Model per solid it contains.
// It automatically detects whether the file is ASCII or binary format.
func Parse(filename string) ([]*Model, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return ParseReader(file, info.Size())
}

// ParseReader parses STL data of the given total size from r
func ParseReader(r io.Reader, size int64) ([]*Model, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	// Peek enough to see both the ASCII keyword and the binary triangle count
	head, err := br.Peek(binaryHeaderSize + 4)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmpty
	}

	var models []*Model
	if isASCII(head, size) {
		models, err = parseASCII(br)
	} else {
		var model *Model
		model, err = parseBinary(br)
		if model != nil {
			models = []*Model{model}
		}
	}
	if err != nil {
		return nil, err
	}

	total := 0
	for _, m := range models {
		total += m.TriangleCount()
	}
	if total == 0 {
		return nil, ErrEmpty
	}

	return models, nil
}

// isASCII decides the format from the first bytes. Some exporters write binary
// files whose header starts with "solid", so a matching binary size wins.
func isASCII(head []byte, size int64) bool {
	if !bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("solid")) {
		return false
	}
	if len(head) >= binaryHeaderSize+4 && size > 0 {
		count := binary.LittleEndian.Uint32(head[binaryHeaderSize:])
		if int64(binaryHeaderSize+4)+int64(count)*binaryRecordSize == size {
			return false
		}
	}
	return true
}

// parseASCII parses an ASCII STL stream, which may hold several solids
func parseASCII(reader io.Reader) ([]*Model, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var models []*Model
	var model *Model
	var currentNormal geometry.Vector3
	var vertices []geometry.Vector3
	inFacet := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "solid":
			model = NewModel(strings.Join(fields[1:], " "))
			models = append(models, model)

		case "endsolid":
			model = nil

		case "facet":
			if model == nil {
				return nil, fmt.Errorf("line %d: facet outside of solid", lineNo)
			}
			if inFacet {
				return nil, fmt.Errorf("line %d: nested facet", lineNo)
			}
			inFacet = true
			vertices = vertices[:0]
			currentNormal = geometry.Vector3{}
			if len(fields) >= 5 && strings.EqualFold(fields[1], "normal") {
				n, err := parseVector(fields[2:5])
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid normal: %w", lineNo, err)
				}
				currentNormal = n
			}

		case "vertex":
			if !inFacet {
				return nil, fmt.Errorf("line %d: vertex outside of facet", lineNo)
			}
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs three coordinates", lineNo)
			}
			v, err := parseVector(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid vertex: %w", lineNo, err)
			}
			vertices = append(vertices, v)

		case "endfacet":
			if !inFacet {
				return nil, fmt.Errorf("line %d: endfacet without facet", lineNo)
			}
			if len(vertices) != 3 {
				return nil, fmt.Errorf("line %d: facet has %d vertices, expected 3", lineNo, len(vertices))
			}
			model.AddTriangle(geometry.NewTriangle(currentNormal, vertices[0], vertices[1], vertices[2]))
			inFacet = false

		case "outer", "endloop":
			// Loop markers carry no data

		default:
			return nil, fmt.Errorf("line %d: unexpected keyword %q", lineNo, fields[0])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASCII STL: %w", err)
	}
	if inFacet {
		return nil, fmt.Errorf("unexpected end of file inside facet")
	}

	return models, nil
}

func parseVector(fields []string) (geometry.Vector3, error) {
	var c [3]float64
	for i, f := range fields {
		value, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return geometry.Vector3{}, err
		}
		c[i] = value
	}
	v := geometry.NewVector3(c[0], c[1], c[2])
	if !v.IsFinite() {
		return geometry.Vector3{}, fmt.Errorf("non-finite coordinate in %q", strings.Join(fields, " "))
	}
	return v, nil
}

// binaryRecord is the on-disk layout of one binary STL triangle
type binaryRecord struct {
	Normal     [3]float32
	V1, V2, V3 [3]float32
	Attribute  uint16
}

// parseBinary parses a binary STL stream
func parseBinary(reader io.Reader) (*Model, error) {
	// Read 80-byte header
	header := make([]byte, binaryHeaderSize)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	model := NewModel(strings.TrimSpace(string(bytes.TrimRight(header, "\x00"))))
	model.Format = FormatBinary

	var triangleCount uint32
	if err := binary.Read(reader, binary.LittleEndian, &triangleCount); err != nil {
		return nil, fmt.Errorf("failed to read triangle count: %w", err)
	}

	// The count comes from the file, so only trust it up to a sane preallocation
	model.Triangles = make([]geometry.Triangle, 0, min(triangleCount, 1<<20))
	for i := uint32(0); i < triangleCount; i++ {
		var rec binaryRecord
		if err := binary.Read(reader, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("failed to read triangle %d: %w", i, err)
		}

		v1, v2, v3 := geometry.FromFloat32(rec.V1), geometry.FromFloat32(rec.V2), geometry.FromFloat32(rec.V3)
		if !v1.IsFinite() || !v2.IsFinite() || !v3.IsFinite() {
			return nil, fmt.Errorf("triangle %d has a non-finite vertex", i)
		}
		model.AddTriangle(geometry.NewTriangle(geometry.FromFloat32(rec.Normal), v1, v2, v3))
	}

	return model, nil
}
