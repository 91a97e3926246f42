package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

const stagingProperties = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

// PendingUpload is a buffer upload whose device copy has been submitted but not
// yet observed. The staging buffer stays alive until Wait succeeds.
type PendingUpload struct {
	ctx     Allocator
	fence   Fence
	staging *Buffer
	dst     *Buffer

	complete  bool
	abandoned bool
}

// Wait blocks until the copy has completed, releases the staging buffer and
// returns the device-local destination. If the wait fails nothing is released
// and the error is an IncompleteCopyError; Wait may be called again, or the
// upload abandoned once the device is idle.
func (u *PendingUpload) Wait() (*Buffer, error) {
	if u.complete {
		return u.dst, nil
	}
	if u.abandoned {
		return nil, errors.Mark(errors.New("wait on abandoned upload"), ErrResourceFreed)
	}

	err := u.fence.Wait()
	if err != nil {
		return nil, incomplete(err, "wait for buffer copy", u.Abandon)
	}

	u.complete = true
	u.staging.Destroy(u.ctx)
	return u.dst, nil
}

// Abandon releases the fence, the staging buffer and the destination without
// waiting for the copy. It does nothing after a successful Wait.
func (u *PendingUpload) Abandon() {
	if u.complete || u.abandoned {
		return
	}
	u.abandoned = true

	u.fence.Release()
	u.staging.Destroy(u.ctx)
	u.dst.Destroy(u.ctx)
}

func stage(ctx Allocator, data []byte) (*Buffer, error) {
	staging, err := NewBuffer(ctx, len(data), core1_0.BufferUsageTransferSrc, stagingProperties)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	err = staging.Write(ctx, data)
	if err != nil {
		staging.Destroy(ctx)
		return nil, errors.Wrap(err, "fill staging buffer")
	}

	return staging, nil
}

// StageBuffer copies data into a host-visible staging buffer, allocates a
// device-local buffer with the requested usage and submits the copy between
// them.
func StageBuffer(ctx Context, data []byte, usage core1_0.BufferUsageFlags) (*PendingUpload, error) {
	staging, err := stage(ctx, data)
	if err != nil {
		return nil, err
	}

	dst, err := NewBuffer(ctx, len(data), core1_0.BufferUsageTransferDst|core1_0.BufferUsageTransferSrc|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		staging.Destroy(ctx)
		return nil, errors.Wrap(err, "create destination buffer")
	}

	fence, err := ctx.CopyBuffer(staging.Buffer, dst.Buffer, len(data))
	if err != nil {
		dst.Destroy(ctx)
		staging.Destroy(ctx)
		return nil, errors.Wrap(err, "submit buffer copy")
	}

	return &PendingUpload{
		ctx:     ctx,
		fence:   fence,
		staging: staging,
		dst:     dst,
	}, nil
}

// UploadBuffer stages data and waits for it to land in device-local memory.
// If the wait fails, pass the error to Abandon once the device is idle.
func UploadBuffer(ctx Context, data []byte, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	pending, err := StageBuffer(ctx, data, usage)
	if err != nil {
		return nil, err
	}

	return pending.Wait()
}

// PendingImageUpload is the image counterpart of PendingUpload.
type PendingImageUpload struct {
	ctx     Allocator
	fence   Fence
	staging *Buffer
	dst     *Image

	complete  bool
	abandoned bool
}

func (u *PendingImageUpload) Wait() (*Image, error) {
	if u.complete {
		return u.dst, nil
	}
	if u.abandoned {
		return nil, errors.Mark(errors.New("wait on abandoned upload"), ErrResourceFreed)
	}

	err := u.fence.Wait()
	if err != nil {
		return nil, incomplete(err, "wait for image copy", u.Abandon)
	}

	u.complete = true
	u.staging.Destroy(u.ctx)
	return u.dst, nil
}

func (u *PendingImageUpload) Abandon() {
	if u.complete || u.abandoned {
		return
	}
	u.abandoned = true

	u.fence.Release()
	u.staging.Destroy(u.ctx)
	u.dst.Destroy(u.ctx)
}

// StageImage uploads RGBA8 pixels into a new device-local image. The image is
// moved to TRANSFER_DST before the copy is submitted; it is left there for the
// caller to transition once the upload has been waited on.
func StageImage(ctx Context, pixels []byte, info ImageInfo) (*PendingImageUpload, error) {
	if len(pixels) != info.Width*info.Height*4 {
		return nil, errors.Mark(errors.Newf("%d bytes for a %dx%d RGBA image", len(pixels), info.Width, info.Height), ErrImageSizeMismatch)
	}

	staging, err := stage(ctx, pixels)
	if err != nil {
		return nil, err
	}

	info.Usage |= core1_0.ImageUsageTransferDst
	dst, err := NewImage(ctx, info, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		staging.Destroy(ctx)
		return nil, errors.Wrap(err, "create destination image")
	}

	err = dst.Transition(ctx, core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		staging.Destroy(ctx)
		Rollback(err, func() { dst.Destroy(ctx) })
		return nil, err
	}

	fence, err := ctx.CopyBufferToImage(staging.Buffer, dst.Image, info.Width, info.Height)
	if err != nil {
		dst.Destroy(ctx)
		staging.Destroy(ctx)
		return nil, errors.Wrap(err, "submit buffer to image copy")
	}

	return &PendingImageUpload{
		ctx:     ctx,
		fence:   fence,
		staging: staging,
		dst:     dst,
	}, nil
}

func UploadImage(ctx Context, pixels []byte, info ImageInfo) (*Image, error) {
	pending, err := StageImage(ctx, pixels, info)
	if err != nil {
		return nil, err
	}

	return pending.Wait()
}

// ReadBack copies a device-local buffer into host-visible memory and returns
// its contents. The source buffer must have been created with TRANSFER_SRC
// usage, which StageBuffer always adds. A failed wait keeps the readback buffer
// alive behind an IncompleteCopyError.
func ReadBack(ctx Context, src *Buffer) ([]byte, error) {
	if src.State() != Allocated {
		return nil, errors.Mark(errors.Newf("read back %s buffer", src.State()), ErrResourceFreed)
	}

	readback, err := NewBuffer(ctx, src.Size, core1_0.BufferUsageTransferDst, stagingProperties)
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}

	fence, err := ctx.CopyBuffer(src.Buffer, readback.Buffer, src.Size)
	if err != nil {
		readback.Destroy(ctx)
		return nil, errors.Wrap(err, "submit readback copy")
	}

	err = fence.Wait()
	if err != nil {
		return nil, incomplete(err, "wait for readback copy", fence.Release, func() { readback.Destroy(ctx) })
	}
	defer readback.Destroy(ctx)

	return ctx.ReadMemory(readback.Memory, 0, src.Size)
}
