package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

type State int

const (
	Unallocated State = iota
	Allocated
	Freed
)

func (s State) String() string {
	switch s {
	case Unallocated:
		return "unallocated"
	case Allocated:
		return "allocated"
	case Freed:
		return "freed"
	}
	return "unknown"
}

// Buffer is a buffer handle together with the memory bound to it.
type Buffer struct {
	Buffer core1_0.Buffer
	Memory core1_0.DeviceMemory
	Size   int
	Usage  core1_0.BufferUsageFlags

	state State
}

func NewBuffer(ctx Allocator, size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.Mark(errors.Newf("cannot allocate a %d byte buffer", size), ErrEmptyUpload)
	}

	buffer, memory, err := ctx.AllocateBuffer(size, usage, properties)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "allocate %d byte buffer (usage %s)", size, usage), ErrGPUAllocationFailed)
	}

	return &Buffer{
		Buffer: buffer,
		Memory: memory,
		Size:   size,
		Usage:  usage,
		state:  Allocated,
	}, nil
}

func (b *Buffer) State() State {
	if b == nil {
		return Unallocated
	}
	return b.state
}

// Write copies data into the start of a host-visible buffer.
func (b *Buffer) Write(ctx Allocator, data []byte) error {
	if b.State() != Allocated {
		return errors.Mark(errors.Newf("write to %s buffer", b.State()), ErrResourceFreed)
	}
	if len(data) > b.Size {
		return errors.Newf("write of %d bytes overflows %d byte buffer", len(data), b.Size)
	}

	return ctx.WriteMemory(b.Memory, 0, data)
}

// Destroy releases the buffer and then its memory. It is a no-op on a buffer
// that is not allocated.
func (b *Buffer) Destroy(ctx Allocator) {
	if b.State() != Allocated {
		return
	}

	ctx.DestroyBuffer(b.Buffer)
	ctx.FreeMemory(b.Memory)
	b.state = Freed
}

// Image is an image handle, its memory, and the layout the device last
// transitioned it to.
type Image struct {
	ImageInfo

	Image  core1_0.Image
	Memory core1_0.DeviceMemory
	Layout core1_0.ImageLayout

	state State
}

func NewImage(ctx Allocator, info ImageInfo, properties core1_0.MemoryPropertyFlags) (*Image, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.Mark(errors.Newf("cannot allocate a %dx%d image", info.Width, info.Height), ErrEmptyUpload)
	}

	image, memory, err := ctx.AllocateImage(info, properties)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "allocate %dx%d %s image", info.Width, info.Height, info.Format), ErrGPUAllocationFailed)
	}

	return &Image{
		ImageInfo: info,
		Image:     image,
		Memory:    memory,
		Layout:    core1_0.ImageLayoutUndefined,
		state:     Allocated,
	}, nil
}

func (i *Image) State() State {
	if i == nil {
		return Unallocated
	}
	return i.state
}

var layoutTransitions = map[core1_0.ImageLayout]core1_0.ImageLayout{
	core1_0.ImageLayoutUndefined:          core1_0.ImageLayoutTransferDstOptimal,
	core1_0.ImageLayoutTransferDstOptimal: core1_0.ImageLayoutShaderReadOnlyOptimal,
}

// Transition moves the image to newLayout and waits for the barrier to
// complete. Only UNDEFINED -> TRANSFER_DST and TRANSFER_DST -> SHADER_READ_ONLY
// are accepted. If the wait fails the layout is left unchanged and the error
// is an IncompleteCopyError.
func (i *Image) Transition(ctx Transfer, newLayout core1_0.ImageLayout) error {
	if i.State() != Allocated {
		return errors.Mark(errors.Newf("transition %s image", i.State()), ErrResourceFreed)
	}

	next, ok := layoutTransitions[i.Layout]
	if !ok || next != newLayout {
		return errors.Mark(errors.Newf("unexpected layout transition: %s -> %s", i.Layout, newLayout), ErrUnexpectedLayoutTransition)
	}

	fence, err := ctx.TransitionImageLayout(i.Image, i.Layout, newLayout)
	if err != nil {
		return errors.Wrapf(err, "transition image %s -> %s", i.Layout, newLayout)
	}

	err = fence.Wait()
	if err != nil {
		return incomplete(err, "wait for layout transition", fence.Release)
	}

	i.Layout = newLayout
	return nil
}

// Destroy releases the image and then its memory.
func (i *Image) Destroy(ctx Allocator) {
	if i.State() != Allocated {
		return
	}

	ctx.DestroyImage(i.Image)
	ctx.FreeMemory(i.Memory)
	i.state = Freed
}
