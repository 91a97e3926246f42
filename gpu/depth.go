package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

var ErrNoSupportedFormat = errors.New("no supported format")

// DepthFormats are tried in order when picking a depth attachment format.
var DepthFormats = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

// FindSupportedFormat returns the first candidate whose tiling supports all of
// features.
func (d *Device) FindSupportedFormat(candidates []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range candidates {
		props := d.physicalDevice.FormatProperties(format)

		supported := props.OptimalTilingFeatures
		if tiling == core1_0.ImageTilingLinear {
			supported = props.LinearTilingFeatures
		}
		if supported&features == features {
			return format, nil
		}
	}

	return 0, errors.Mark(errors.Newf("tiling %s, features %s", tiling, features), ErrNoSupportedFormat)
}

func (d *Device) DepthFormat() (core1_0.Format, error) {
	return d.FindSupportedFormat(DepthFormats, core1_0.ImageTilingOptimal, core1_0.FormatFeatureDepthStencilAttachment)
}

// DepthTarget is a device-local depth attachment and its view.
type DepthTarget struct {
	Image *Image
	View  core1_0.ImageView
}

func NewDepthTarget(ctx Context, width, height int, format core1_0.Format) (*DepthTarget, error) {
	image, err := NewImage(ctx, ImageInfo{
		Width:  width,
		Height: height,
		Format: format,
		Usage:  core1_0.ImageUsageDepthStencilAttachment,
	}, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "create depth image")
	}

	view, err := ctx.CreateImageView(image.Image, format, core1_0.ImageAspectDepth)
	if err != nil {
		image.Destroy(ctx)
		return nil, errors.Wrap(err, "create depth image view")
	}

	return &DepthTarget{Image: image, View: view}, nil
}

// Destroy releases the view and then the image. A nil target is ignored.
func (t *DepthTarget) Destroy(ctx Context) {
	if t == nil {
		return
	}

	if t.View != nil {
		ctx.DestroyImageView(t.View)
		t.View = nil
	}
	t.Image.Destroy(ctx)
}
