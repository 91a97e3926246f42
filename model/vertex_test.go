package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"
)

func TestVertexBytesLayout(t *testing.T) {
	geometry := &Geometry{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{1, 2, 3}, Color: mgl32.Vec3{4, 5, 6}, TexCoord: mgl32.Vec2{7, 8}},
		},
		Indices: []uint16{0},
	}

	data, err := geometry.VertexBytes()
	if err != nil {
		t.Fatalf("VertexBytes failed: %v", err)
	}
	if len(data) != 32 {
		t.Fatalf("expected 32 bytes per vertex, got %d", len(data))
	}

	for i := 0; i < 8; i++ {
		value := math.Float32frombits(common.ByteOrder.Uint32(data[i*4:]))
		if value != float32(i+1) {
			t.Errorf("float %d: expected %d, got %f", i, i+1, value)
		}
	}
}

func TestIndexBytes(t *testing.T) {
	geometry := &Geometry{Indices: []uint16{0, 1, 2, 513}}

	data, err := geometry.IndexBytes()
	if err != nil {
		t.Fatalf("IndexBytes failed: %v", err)
	}
	if len(data) != binary.Size(geometry.Indices) {
		t.Fatalf("expected %d bytes, got %d", binary.Size(geometry.Indices), len(data))
	}
	if common.ByteOrder.Uint16(data[6:]) != 513 {
		t.Errorf("expected 513, got %d", common.ByteOrder.Uint16(data[6:]))
	}
}

func TestBounds(t *testing.T) {
	geometry := &Geometry{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{1, -2, 3}},
			{Position: mgl32.Vec3{-1, 4, 0}},
			{Position: mgl32.Vec3{0, 0, 5}},
		},
	}

	min, max := geometry.Bounds()
	if min != (mgl32.Vec3{-1, -2, 0}) {
		t.Errorf("bad min %v", min)
	}
	if max != (mgl32.Vec3{1, 4, 5}) {
		t.Errorf("bad max %v", max)
	}

	empty := &Geometry{}
	min, max = empty.Bounds()
	if min != (mgl32.Vec3{}) || max != (mgl32.Vec3{}) {
		t.Errorf("expected zero bounds for empty geometry")
	}
}
