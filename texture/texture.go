// Package texture turns image files into sampled Vulkan textures.
package texture

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshes/gpu"
)

var (
	ErrTextureDecodeFailed   = errors.New("texture decode failed")
	ErrSamplerCreationFailed = errors.New("sampler creation failed")
)

// Format is the format of every texture image.
const Format = core1_0.FormatR8G8B8A8SRGB

type SamplerOptions struct {
	// MaxAnisotropy is the requested anisotropy level. Zero selects the device
	// maximum; larger requests are clamped to it.
	MaxAnisotropy float32
}

// Texture is a shader-readable image with its view and sampler.
type Texture struct {
	Image      *gpu.Image
	View       core1_0.ImageView
	Sampler    core1_0.Sampler
	Anisotropy float32
}

// Load decodes path and uploads it. A decode failure creates no GPU objects.
func Load(ctx gpu.Context, decoder Decoder, path string, opts SamplerOptions) (*Texture, error) {
	raw, err := decoder.Decode(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "load texture %s", path), ErrTextureDecodeFailed)
	}
	defer raw.Release()

	if raw == nil || raw.Pixels == nil {
		return nil, errors.Mark(errors.Newf("load texture %s: decoder returned no pixels", path), ErrTextureDecodeFailed)
	}

	return Create(ctx, raw, opts)
}

// Create uploads already decoded pixels. Objects created before a failure are
// destroyed before it returns, or handed to the error's gpu.Abandon when the
// device may still be using them.
func Create(ctx gpu.Context, raw *RawImage, opts SamplerOptions) (*Texture, error) {
	if raw == nil || raw.Pixels == nil {
		return nil, errors.Mark(errors.New("create texture: no pixels"), ErrTextureDecodeFailed)
	}

	pending, err := gpu.StageImage(ctx, raw.Pixels, gpu.ImageInfo{
		Width:  raw.Width,
		Height: raw.Height,
		Format: Format,
		Usage:  core1_0.ImageUsageSampled,
	})
	if err != nil {
		return nil, errors.Wrap(err, "upload texture pixels")
	}

	image, err := pending.Wait()
	if err != nil {
		return nil, err
	}
	texture := &Texture{Image: image}

	err = image.Transition(ctx, core1_0.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		gpu.Rollback(err, func() { texture.Destroy(ctx) })
		return nil, err
	}

	texture.View, err = ctx.CreateImageView(image.Image, Format, core1_0.ImageAspectColor)
	if err != nil {
		texture.Destroy(ctx)
		return nil, errors.Wrap(err, "create texture image view")
	}

	deviceMax, err := ctx.MaxSamplerAnisotropy()
	if err != nil {
		texture.Destroy(ctx)
		return nil, errors.Mark(errors.Wrap(err, "query sampler anisotropy limit"), ErrSamplerCreationFailed)
	}
	texture.Anisotropy = ClampAnisotropy(opts.MaxAnisotropy, deviceMax)

	texture.Sampler, err = ctx.CreateSampler(SamplerCreateInfo(texture.Anisotropy))
	if err != nil {
		texture.Destroy(ctx)
		return nil, errors.Mark(errors.Wrap(err, "create texture sampler"), ErrSamplerCreationFailed)
	}

	return texture, nil
}

// ClampAnisotropy returns the anisotropy to sample with given a requested level
// and the device limit. Anything that is not a positive number below the limit,
// NaN included, selects the limit.
func ClampAnisotropy(requested, deviceMax float32) float32 {
	if !(requested > 0) || requested > deviceMax {
		return deviceMax
	}
	return requested
}

func SamplerCreateInfo(anisotropy float32) core1_0.SamplerCreateInfo {
	return core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    anisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeNearest,
		MipLodBias: 0,
		MinLod:     0,
		MaxLod:     0,
	}
}

// DescriptorInfo describes the texture as a combined image sampler.
func (t *Texture) DescriptorInfo() core1_0.DescriptorImageInfo {
	return core1_0.DescriptorImageInfo{
		ImageView:   t.View,
		Sampler:     t.Sampler,
		ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
	}
}

// Destroy releases the sampler, the view, the image and finally the image
// memory. Parts that were never created are skipped.
func (t *Texture) Destroy(ctx gpu.Context) {
	if t == nil {
		return
	}

	if t.Sampler != nil {
		ctx.DestroySampler(t.Sampler)
		t.Sampler = nil
	}
	if t.View != nil {
		ctx.DestroyImageView(t.View)
		t.View = nil
	}
	t.Image.Destroy(ctx)
}
