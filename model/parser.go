package model

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrParseSourceUnavailable = errors.New("model source unavailable")
	ErrMalformedLine          = errors.New("malformed model line")
	ErrIndexOverflow          = errors.New("model exceeds 16-bit index range")
)

const missingIndex = -1

// Load opens the model file at path and parses it.
func Load(path string) (*Geometry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open model %s", path), ErrParseSourceUnavailable)
	}
	defer file.Close()

	geometry, err := Parse(file)
	if err != nil {
		return nil, errors.Wrapf(err, "parse model %s", path)
	}

	return geometry, nil
}

type parser struct {
	positions []mgl32.Vec3
	texCoords []mgl32.Vec2
	colors    []mgl32.Vec3

	geometry *Geometry
	line     int
}

// Parse reads the line-oriented model format:
//
//	v x y z
//	vt u v
//	vn r g b
//	f p[/t][/c] p[/t][/c] ...
//
// vn entries are vertex colors, not normals. Every face corner becomes its own
// vertex, so the index buffer is always 0..N-1. Face arity is not checked.
func Parse(r io.Reader) (*Geometry, error) {
	p := &parser{geometry: &Geometry{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line++
		err := p.parseLine(scanner.Text())
		if err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read model"), ErrParseSourceUnavailable)
	}

	return p.geometry, nil
}

func (p *parser) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "v":
		values, err := p.floats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, mgl32.Vec3{values[0], values[1], values[2]})
	case "vt":
		values, err := p.floats(fields[1:], 2)
		if err != nil {
			return err
		}
		// Model texture space starts bottom-left, sampling space starts top-left
		p.texCoords = append(p.texCoords, mgl32.Vec2{values[0], -values[1]})
	case "vn":
		values, err := p.floats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.colors = append(p.colors, mgl32.Vec3{values[0], values[1], values[2]})
	case "f":
		for _, corner := range fields[1:] {
			err := p.addCorner(corner)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *parser) floats(fields []string, count int) ([]float32, error) {
	values := make([]float32, count)
	for i := 0; i < count && i < len(fields); i++ {
		value, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, p.malformed(err, fields[i])
		}
		values[i] = float32(value)
	}

	return values, nil
}

func (p *parser) addCorner(corner string) error {
	parts := strings.SplitN(corner, "/", 3)

	var indices [3]int
	for i := range indices {
		indices[i] = missingIndex
		if i >= len(parts) || parts[i] == "" {
			continue
		}

		index, err := strconv.Atoi(parts[i])
		if err != nil {
			return p.malformed(err, corner)
		}
		indices[i] = index - 1
	}

	if len(p.geometry.Vertices) >= MaxVertices {
		return errors.Mark(errors.Newf("line %d: more than %d face corners", p.line, MaxVertices), ErrIndexOverflow)
	}

	vert := Vertex{Color: FallbackColor}
	if inRange(indices[0], len(p.positions)) {
		vert.Position = p.positions[indices[0]]
	}
	if inRange(indices[1], len(p.texCoords)) {
		vert.TexCoord = p.texCoords[indices[1]]
	}
	if inRange(indices[2], len(p.colors)) {
		vert.Color = p.colors[indices[2]]
	}

	p.geometry.Indices = append(p.geometry.Indices, uint16(len(p.geometry.Vertices)))
	p.geometry.Vertices = append(p.geometry.Vertices, vert)
	return nil
}

func (p *parser) malformed(cause error, token string) error {
	return errors.Mark(errors.Wrapf(cause, "line %d: bad token %q", p.line, token), ErrMalformedLine)
}

func inRange(index, length int) bool {
	return index >= 0 && index < length
}
