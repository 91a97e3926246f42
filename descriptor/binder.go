// Package descriptor allocates the per-frame descriptor sets that bind a mesh's
// uniform buffers and texture to the shaders.
package descriptor

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshes/gpu"
)

var (
	ErrDescriptorAllocationFailed = errors.New("descriptor set allocation failed")
	ErrFrameCountMismatch         = errors.New("uniform buffer count does not match frames in flight")
)

const (
	UniformBinding = 0
	SamplerBinding = 1
)

// CreateLayout creates the set layout shared by every frame: a uniform buffer
// for the vertex stage and a combined image sampler for the fragment stage.
func CreateLayout(ctx gpu.Descriptors) (core1_0.DescriptorSetLayout, error) {
	layout, err := ctx.CreateDescriptorSetLayout(core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         UniformBinding,
				DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,

				StageFlags: core1_0.StageVertex,
			},
			{
				Binding:         SamplerBinding,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,

				StageFlags: core1_0.StageFragment,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	return layout, nil
}

// Binder writes one descriptor set per frame in flight.
type Binder struct {
	FramesInFlight int
}

// CreatePool creates a pool with room for exactly one set per frame.
func (b Binder) CreatePool(ctx gpu.Descriptors) (core1_0.DescriptorPool, error) {
	pool, err := ctx.CreateDescriptorPool(core1_0.DescriptorPoolCreateInfo{
		MaxSets: b.FramesInFlight,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: b.FramesInFlight,
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: b.FramesInFlight,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	return pool, nil
}

// BindPerFrame allocates FramesInFlight sets from pool and points set i at
// uniforms[i] and the shared image.
func (b Binder) BindPerFrame(ctx gpu.Descriptors, pool core1_0.DescriptorPool, layout core1_0.DescriptorSetLayout, uniforms []*gpu.Buffer, image core1_0.DescriptorImageInfo) ([]core1_0.DescriptorSet, error) {
	if len(uniforms) != b.FramesInFlight {
		return nil, errors.Mark(errors.Newf("%d uniform buffers for %d frames", len(uniforms), b.FramesInFlight), ErrFrameCountMismatch)
	}

	var allocLayouts []core1_0.DescriptorSetLayout
	for i := 0; i < b.FramesInFlight; i++ {
		allocLayouts = append(allocLayouts, layout)
	}

	sets, err := ctx.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: pool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "allocate %d descriptor sets", b.FramesInFlight), ErrDescriptorAllocationFailed)
	}

	image.ImageLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
	for i := 0; i < b.FramesInFlight; i++ {
		err = ctx.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          sets[i],
				DstBinding:      UniformBinding,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: uniforms[i].Buffer,
						Offset: 0,
						Range:  uniforms[i].Size,
					},
				},
			},
			{
				DstSet:          sets[i],
				DstBinding:      SamplerBinding,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{image},
			},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "write descriptor set %d", i)
		}
	}

	return sets, nil
}
