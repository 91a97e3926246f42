package mesh_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshes/descriptor"
	"github.com/vkngwrapper/meshes/gpu"
	"github.com/vkngwrapper/meshes/gpu/gputest"
	"github.com/vkngwrapper/meshes/mesh"
	"github.com/vkngwrapper/meshes/model"
	"github.com/vkngwrapper/meshes/texture"
)

const triangle = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func writeModel(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "model.obj")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var solidTexture = texture.DecoderFunc(func(path string) (*texture.RawImage, error) {
	return &texture.RawImage{Width: 2, Height: 2, Channels: 4, Pixels: bytes.Repeat([]byte{10, 20, 30, 255}, 4)}, nil
})

func loadBound(t *testing.T, ctx *gputest.Context, frames int) *mesh.Mesh {
	m, err := mesh.Load(ctx, writeModel(t, triangle))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	err = m.LoadTexture(ctx, solidTexture, "solid.png", texture.SamplerOptions{})
	if err != nil {
		t.Fatalf("load texture: %v", err)
	}

	binder := descriptor.Binder{FramesInFlight: frames}
	layout, err := descriptor.CreateLayout(ctx)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	pool, err := binder.CreatePool(ctx)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	var uniforms []*gpu.Buffer
	for i := 0; i < frames; i++ {
		buffer, err := gpu.NewBuffer(ctx, 64, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			t.Fatalf("uniform %d: %v", i, err)
		}
		uniforms = append(uniforms, buffer)
	}

	err = m.Bind(ctx, binder, pool, layout, uniforms)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return m
}

func TestLoadTriangle(t *testing.T) {
	ctx := gputest.New()

	m, err := mesh.Load(ctx, writeModel(t, triangle))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if m.IndexCount() != 3 {
		t.Errorf("IndexCount() = %d, want 3", m.IndexCount())
	}
	if m.VertexBuffer.Usage&core1_0.BufferUsageVertexBuffer == 0 {
		t.Errorf("vertex buffer usage %v lacks VERTEX_BUFFER", m.VertexBuffer.Usage)
	}
	if m.IndexBuffer.Usage&core1_0.BufferUsageIndexBuffer == 0 {
		t.Errorf("index buffer usage %v lacks INDEX_BUFFER", m.IndexBuffer.Usage)
	}

	wantVertices, _ := m.Geometry.VertexBytes()
	gotVertices, err := gpu.ReadBack(ctx, m.VertexBuffer)
	if err != nil {
		t.Fatalf("read back vertices: %v", err)
	}
	if !bytes.Equal(gotVertices, wantVertices) {
		t.Errorf("vertex buffer does not hold the encoded vertices")
	}

	gotIndices, err := gpu.ReadBack(ctx, m.IndexBuffer)
	if err != nil {
		t.Fatalf("read back indices: %v", err)
	}
	wantIndices, _ := m.Geometry.IndexBytes()
	if len(gotIndices) != 6 || !bytes.Equal(gotIndices, wantIndices) {
		t.Errorf("index buffer = %v, want %v", gotIndices, wantIndices)
	}

	if len(ctx.Violations) != 0 {
		t.Errorf("violations: %v", ctx.Violations)
	}
}

func TestLoadMissingModel(t *testing.T) {
	ctx := gputest.New()

	_, err := mesh.Load(ctx, filepath.Join(t.TempDir(), "missing.obj"))
	if !errors.Is(err, model.ErrParseSourceUnavailable) {
		t.Fatalf("err = %v, want ErrParseSourceUnavailable", err)
	}
	if len(ctx.Events) != 0 {
		t.Errorf("device was touched: %v", ctx.Events)
	}
}

func TestIndexUploadFailureRollsBack(t *testing.T) {
	ctx := gputest.New()
	// vertex staging, vertex destination, then index staging
	ctx.FailAllocationAt = 3

	_, err := mesh.Load(ctx, writeModel(t, triangle))
	if !errors.Is(err, gpu.ErrGPUAllocationFailed) {
		t.Fatalf("err = %v, want ErrGPUAllocationFailed", err)
	}
	if ctx.Live() != 0 {
		t.Errorf("%d objects leaked", ctx.Live())
	}
}

func TestBindRequiresTexture(t *testing.T) {
	ctx := gputest.New()

	m, err := mesh.Load(ctx, writeModel(t, triangle))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	err = m.Bind(ctx, descriptor.Binder{FramesInFlight: 1}, nil, nil, nil)
	if !errors.Is(err, mesh.ErrNoTexture) {
		t.Fatalf("err = %v, want ErrNoTexture", err)
	}
}

func TestLoadTextureTwice(t *testing.T) {
	ctx := gputest.New()
	m := loadBound(t, ctx, 1)

	err := m.LoadTexture(ctx, solidTexture, "solid.png", texture.SamplerOptions{})
	if !errors.Is(err, mesh.ErrTextureLoaded) {
		t.Fatalf("err = %v, want ErrTextureLoaded", err)
	}
}

func TestDescriptorSets(t *testing.T) {
	ctx := gputest.New()
	m := loadBound(t, ctx, 2)

	for frame := 0; frame < 2; frame++ {
		if m.DescriptorSet(frame) == nil {
			t.Errorf("frame %d has no descriptor set", frame)
		}
	}
	if m.DescriptorSet(2) != nil || m.DescriptorSet(-1) != nil {
		t.Errorf("descriptor sets returned for frames that were never bound")
	}
}

func TestCleanupOrder(t *testing.T) {
	ctx := gputest.New()
	m := loadBound(t, ctx, 2)

	want := []gputest.Event{
		{Op: "destroy-buffer", ID: gputest.ID(m.IndexBuffer.Buffer)},
		{Op: "destroy-memory", ID: gputest.ID(m.IndexBuffer.Memory)},
		{Op: "destroy-buffer", ID: gputest.ID(m.VertexBuffer.Buffer)},
		{Op: "destroy-memory", ID: gputest.ID(m.VertexBuffer.Memory)},
		{Op: "destroy-sampler", ID: gputest.ID(m.Texture.Sampler)},
		{Op: "destroy-view", ID: gputest.ID(m.Texture.View)},
		{Op: "destroy-image", ID: gputest.ID(m.Texture.Image.Image)},
		{Op: "destroy-memory", ID: gputest.ID(m.Texture.Image.Memory)},
	}

	before := len(ctx.Released())
	m.Cleanup(ctx)
	released := ctx.Released()[before:]

	if len(released) != len(want) {
		t.Fatalf("released %v, want %v", released, want)
	}
	for i := range want {
		if released[i] != want[i] {
			t.Errorf("release %d = %s, want %s", i, released[i], want[i])
		}
	}

	m.Cleanup(ctx)
	if len(ctx.Released()) != before+len(want) {
		t.Errorf("second cleanup released more objects: %v", ctx.Released()[before+len(want):])
	}
	if len(ctx.Violations) != 0 {
		t.Errorf("violations: %v", ctx.Violations)
	}

	if err := m.RecordDraw(nil, nil, 0); !errors.Is(err, mesh.ErrMeshCleanedUp) {
		t.Errorf("draw after cleanup: err = %v, want ErrMeshCleanedUp", err)
	}
}

func TestCleanupWithoutTexture(t *testing.T) {
	ctx := gputest.New()

	m, err := mesh.Load(ctx, writeModel(t, triangle))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	m.Cleanup(ctx)
	if ctx.Live() != 0 {
		t.Errorf("%d objects leaked", ctx.Live())
	}
}

func TestVertexLayout(t *testing.T) {
	bindings := mesh.VertexBindings()
	if len(bindings) != 1 || bindings[0].Stride != 32 {
		t.Fatalf("bindings = %+v, want one binding with a 32 byte stride", bindings)
	}

	// indexed by shader location
	testCases := []struct {
		format core1_0.Format
		offset int
	}{
		{format: core1_0.FormatR32G32B32SignedFloat, offset: 0},
		{format: core1_0.FormatR32G32B32SignedFloat, offset: 12},
		{format: core1_0.FormatR32G32SignedFloat, offset: 24},
	}

	attributes := mesh.VertexAttributes()
	if len(attributes) != len(testCases) {
		t.Fatalf("%d attributes, want %d", len(attributes), len(testCases))
	}
	for i, testCase := range testCases {
		attribute := attributes[i]
		if attribute.Format != testCase.format || attribute.Offset != testCase.offset {
			t.Errorf("attribute %d = %+v, want offset %d", i, attribute, testCase.offset)
		}
	}
}
