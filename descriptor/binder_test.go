package descriptor_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshes/descriptor"
	"github.com/vkngwrapper/meshes/gpu"
	"github.com/vkngwrapper/meshes/gpu/gputest"
)

func uniforms(t *testing.T, ctx *gputest.Context, count int) []*gpu.Buffer {
	var out []*gpu.Buffer
	for i := 0; i < count; i++ {
		buffer, err := gpu.NewBuffer(ctx, 192, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			t.Fatalf("uniform buffer %d: %v", i, err)
		}
		out = append(out, buffer)
	}
	return out
}

func TestCreateLayout(t *testing.T) {
	ctx := gputest.New()

	layout, err := descriptor.CreateLayout(ctx)
	if err != nil {
		t.Fatalf("create layout: %v", err)
	}

	bindings := layout.(*gputest.DescriptorSetLayout).Info.Bindings
	if len(bindings) != 2 {
		t.Fatalf("%d bindings, want 2", len(bindings))
	}
	if bindings[0].Binding != 0 || bindings[0].DescriptorType != core1_0.DescriptorTypeUniformBuffer || bindings[0].StageFlags != core1_0.StageVertex {
		t.Errorf("binding 0 = %+v, want a vertex stage uniform buffer", bindings[0])
	}
	if bindings[1].Binding != 1 || bindings[1].DescriptorType != core1_0.DescriptorTypeCombinedImageSampler || bindings[1].StageFlags != core1_0.StageFragment {
		t.Errorf("binding 1 = %+v, want a fragment stage combined image sampler", bindings[1])
	}
}

func TestBindPerFrame(t *testing.T) {
	for _, frames := range []int{1, 2, 3} {
		ctx := gputest.New()
		binder := descriptor.Binder{FramesInFlight: frames}

		layout, err := descriptor.CreateLayout(ctx)
		if err != nil {
			t.Fatalf("create layout: %v", err)
		}
		pool, err := binder.CreatePool(ctx)
		if err != nil {
			t.Fatalf("create pool: %v", err)
		}
		if got := pool.(*gputest.DescriptorPool).Info.MaxSets; got != frames {
			t.Errorf("pool MaxSets = %d, want %d", got, frames)
		}

		buffers := uniforms(t, ctx, frames)
		image := core1_0.DescriptorImageInfo{ImageView: &gputest.ImageView{ID: 100}, Sampler: &gputest.Sampler{ID: 101}}

		sets, err := binder.BindPerFrame(ctx, pool, layout, buffers, image)
		if err != nil {
			t.Fatalf("%d frames: bind: %v", frames, err)
		}
		if len(sets) != frames {
			t.Fatalf("%d sets, want %d", len(sets), frames)
		}
		if len(ctx.Writes) != 2*frames {
			t.Fatalf("%d writes, want %d", len(ctx.Writes), 2*frames)
		}

		for i, set := range sets {
			uniform, sampler := ctx.Writes[2*i], ctx.Writes[2*i+1]

			if uniform.DstSet != set || uniform.DstBinding != 0 || uniform.DescriptorType != core1_0.DescriptorTypeUniformBuffer {
				t.Errorf("frame %d: bad uniform write %+v", i, uniform)
			}
			if len(uniform.BufferInfo) != 1 || uniform.BufferInfo[0].Buffer != buffers[i].Buffer || uniform.BufferInfo[0].Range != buffers[i].Size {
				t.Errorf("frame %d: uniform write does not cover buffer %d", i, i)
			}

			if sampler.DstSet != set || sampler.DstBinding != 1 || sampler.DescriptorType != core1_0.DescriptorTypeCombinedImageSampler {
				t.Errorf("frame %d: bad sampler write %+v", i, sampler)
			}
			if len(sampler.ImageInfo) != 1 || sampler.ImageInfo[0].ImageLayout != core1_0.ImageLayoutShaderReadOnlyOptimal {
				t.Errorf("frame %d: sampler write is not in SHADER_READ_ONLY", i)
			}
			if gputest.ID(sampler.ImageInfo[0].ImageView) != 100 || gputest.ID(sampler.ImageInfo[0].Sampler) != 101 {
				t.Errorf("frame %d: sampler write points at the wrong texture", i)
			}
		}
	}
}

func TestBindPerFramePoolExhausted(t *testing.T) {
	ctx := gputest.New()
	binder := descriptor.Binder{FramesInFlight: 2}

	layout, _ := descriptor.CreateLayout(ctx)
	pool, _ := binder.CreatePool(ctx)
	buffers := uniforms(t, ctx, 2)

	_, err := binder.BindPerFrame(ctx, pool, layout, buffers, core1_0.DescriptorImageInfo{})
	if err != nil {
		t.Fatalf("first bind: %v", err)
	}

	_, err = binder.BindPerFrame(ctx, pool, layout, buffers, core1_0.DescriptorImageInfo{})
	if !errors.Is(err, descriptor.ErrDescriptorAllocationFailed) {
		t.Fatalf("err = %v, want ErrDescriptorAllocationFailed", err)
	}
}

func TestBindPerFrameCountMismatch(t *testing.T) {
	ctx := gputest.New()
	binder := descriptor.Binder{FramesInFlight: 2}

	layout, _ := descriptor.CreateLayout(ctx)
	pool, _ := binder.CreatePool(ctx)

	_, err := binder.BindPerFrame(ctx, pool, layout, uniforms(t, ctx, 3), core1_0.DescriptorImageInfo{})
	if !errors.Is(err, descriptor.ErrFrameCountMismatch) {
		t.Fatalf("err = %v, want ErrFrameCountMismatch", err)
	}
	if ctx.Count("allocate-set") != 0 {
		t.Errorf("sets were allocated")
	}
}
