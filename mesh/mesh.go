// Package mesh owns everything needed to draw one textured model: its vertex
// and index buffers, its texture, and a descriptor set per frame in flight.
package mesh

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshes/descriptor"
	"github.com/vkngwrapper/meshes/gpu"
	"github.com/vkngwrapper/meshes/model"
	"github.com/vkngwrapper/meshes/texture"
)

var (
	ErrNoTexture     = errors.New("mesh has no texture")
	ErrTextureLoaded = errors.New("mesh already has a texture")
	ErrMeshCleanedUp = errors.New("mesh has been cleaned up")
	ErrFrameNotBound = errors.New("no descriptor set for frame")
)

type Mesh struct {
	ID       uuid.UUID
	Geometry *model.Geometry

	VertexBuffer *gpu.Buffer
	IndexBuffer  *gpu.Buffer
	Texture      *texture.Texture

	descriptorSets []core1_0.DescriptorSet
	cleanedUp      bool
}

// Load parses the model at path and uploads its vertices and then its indices.
func Load(ctx gpu.Context, path string) (*Mesh, error) {
	start := hrtime.Now()

	geometry, err := model.Load(path)
	if err != nil {
		return nil, err
	}

	mesh, err := New(ctx, geometry)
	if err != nil {
		return nil, errors.Wrapf(err, "load mesh %s", path)
	}

	log.Printf("mesh %s: loaded %s (%d vertices, %d indices) in %s", mesh.ID, path, len(geometry.Vertices), len(geometry.Indices), hrtime.Since(start))
	return mesh, nil
}

// New uploads already parsed geometry.
func New(ctx gpu.Context, geometry *model.Geometry) (*Mesh, error) {
	vertexData, err := geometry.VertexBytes()
	if err != nil {
		return nil, err
	}
	indexData, err := geometry.IndexBytes()
	if err != nil {
		return nil, err
	}

	mesh := &Mesh{
		ID:       uuid.New(),
		Geometry: geometry,
	}

	mesh.VertexBuffer, err = gpu.UploadBuffer(ctx, vertexData, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "upload vertex buffer")
	}

	mesh.IndexBuffer, err = gpu.UploadBuffer(ctx, indexData, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		mesh.VertexBuffer.Destroy(ctx)
		return nil, errors.Wrap(err, "upload index buffer")
	}

	return mesh, nil
}

// LoadTexture decodes and uploads the texture sampled by this mesh.
func (m *Mesh) LoadTexture(ctx gpu.Context, decoder texture.Decoder, path string, opts texture.SamplerOptions) error {
	if m.cleanedUp {
		return ErrMeshCleanedUp
	}
	if m.Texture != nil {
		return errors.Mark(errors.Newf("mesh %s: texture already loaded", m.ID), ErrTextureLoaded)
	}

	start := hrtime.Now()
	tex, err := texture.Load(ctx, decoder, path, opts)
	if err != nil {
		return err
	}
	m.Texture = tex

	log.Printf("mesh %s: loaded texture %s (%dx%d, anisotropy %.0f) in %s", m.ID, path, tex.Image.Width, tex.Image.Height, tex.Anisotropy, hrtime.Since(start))
	return nil
}

// Bind writes one descriptor set per frame, pairing uniforms[i] with the
// mesh texture.
func (m *Mesh) Bind(ctx gpu.Context, binder descriptor.Binder, pool core1_0.DescriptorPool, layout core1_0.DescriptorSetLayout, uniforms []*gpu.Buffer) error {
	if m.cleanedUp {
		return ErrMeshCleanedUp
	}
	if m.Texture == nil {
		return errors.Mark(errors.Newf("mesh %s: bind before LoadTexture", m.ID), ErrNoTexture)
	}

	sets, err := binder.BindPerFrame(ctx, pool, layout, uniforms, m.Texture.DescriptorInfo())
	if err != nil {
		return err
	}

	m.descriptorSets = sets
	return nil
}

func (m *Mesh) IndexCount() int {
	if m.Geometry == nil {
		return 0
	}
	return len(m.Geometry.Indices)
}

// DescriptorSet returns the set bound for frame, or nil if Bind has not
// covered it.
func (m *Mesh) DescriptorSet(frame int) core1_0.DescriptorSet {
	if frame < 0 || frame >= len(m.descriptorSets) {
		return nil
	}
	return m.descriptorSets[frame]
}

// RecordDraw binds the mesh buffers and the descriptor set for frame and
// records an indexed draw. The caller has already begun the render pass and
// bound the pipeline.
func (m *Mesh) RecordDraw(cmd core1_0.CommandBuffer, pipelineLayout core1_0.PipelineLayout, frame int) error {
	if m.cleanedUp {
		return ErrMeshCleanedUp
	}
	set := m.DescriptorSet(frame)
	if set == nil {
		return errors.Mark(errors.Newf("mesh %s: frame %d", m.ID, frame), ErrFrameNotBound)
	}

	cmd.CmdBindVertexBuffers([]core1_0.Buffer{m.VertexBuffer.Buffer}, []int{0})
	cmd.CmdBindIndexBuffer(m.IndexBuffer.Buffer, 0, core1_0.IndexTypeUInt16)
	cmd.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, pipelineLayout, []core1_0.DescriptorSet{set}, nil)
	cmd.CmdDrawIndexed(m.IndexCount(), 1, 0, 0, 0)
	return nil
}

// Cleanup releases the index buffer, the vertex buffer, then the texture's
// sampler, view, image and image memory. It must run before the device is
// destroyed. Later calls do nothing.
func (m *Mesh) Cleanup(ctx gpu.Context) {
	if m.cleanedUp {
		return
	}
	m.cleanedUp = true

	m.IndexBuffer.Destroy(ctx)
	m.VertexBuffer.Destroy(ctx)
	m.Texture.Destroy(ctx)

	// Sets are returned to their pool when the pool is destroyed.
	m.descriptorSets = nil
}
