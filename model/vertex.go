package model

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"
)

// MaxVertices is the most vertices a Geometry can address with 16-bit indices.
const MaxVertices = 1 << 16

// FallbackColor marks face corners that did not reference a usable color.
var FallbackColor = mgl32.Vec3{1.0, 0.4, 0.7}

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// Geometry is an unshared vertex list: Indices[i] == i for every emitted corner.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint16
}

func (g *Geometry) VertexBytes() ([]byte, error) {
	return encode(g.Vertices)
}

func (g *Geometry) IndexBytes() ([]byte, error) {
	return encode(g.Indices)
}

// Bounds returns the component-wise minimum and maximum vertex position.
func (g *Geometry) Bounds() (min mgl32.Vec3, max mgl32.Vec3) {
	if len(g.Vertices) == 0 {
		return min, max
	}

	min = g.Vertices[0].Position
	max = g.Vertices[0].Position
	for _, vert := range g.Vertices[1:] {
		for axis := 0; axis < 3; axis++ {
			if vert.Position[axis] < min[axis] {
				min[axis] = vert.Position[axis]
			}
			if vert.Position[axis] > max[axis] {
				max[axis] = vert.Position[axis]
			}
		}
	}

	return min, max
}

func encode(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return nil, errors.Wrap(err, "encode geometry")
	}

	return buf.Bytes(), nil
}
