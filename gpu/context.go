// Package gpu moves host data into device-local Vulkan memory.
//
// Everything that touches the device goes through a Context, which Device
// implements on top of vkngwrapper and gputest.Context implements in memory.
// Device-side copies are asynchronous: they hand back a Fence, and staging
// memory is only released once that fence has been waited on.
package gpu

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// FenceTimeout is how long a single fence wait blocks before it is retried.
const FenceTimeout = 100 * time.Millisecond

var (
	ErrGPUAllocationFailed        = errors.New("gpu allocation failed")
	ErrEmptyUpload                = errors.New("upload has no data")
	ErrImageSizeMismatch          = errors.New("pixel data does not match image extent")
	ErrUnexpectedLayoutTransition = errors.New("unexpected image layout transition")
	ErrResourceFreed              = errors.New("resource already freed")
	ErrCopyIncomplete             = errors.New("device work not observed complete")
)

// Fence is signaled once the device has finished the work it was returned for.
// A successful Wait releases the fence. After a failed Wait the work may still
// be running: Wait can be retried, or Release frees the fence without waiting
// once the device is idle.
type Fence interface {
	Wait() error
	Release()
}

// IncompleteCopyError is returned when waiting on device work fails. Nothing
// the work touches has been released, since the device may still be using it.
// Abandon releases all of it and must only be called once the device is idle.
type IncompleteCopyError struct {
	cause     error
	releases  []func()
	abandoned bool
}

func incomplete(err error, msg string, releases ...func()) error {
	return &IncompleteCopyError{
		cause:    errors.Mark(errors.Wrap(err, msg), ErrCopyIncomplete),
		releases: releases,
	}
}

func (e *IncompleteCopyError) Error() string {
	return e.cause.Error()
}

func (e *IncompleteCopyError) Unwrap() error {
	return e.cause
}

// Abandon runs the deferred releases in order. Later calls do nothing.
func (e *IncompleteCopyError) Abandon() {
	if e.abandoned {
		return
	}
	e.abandoned = true

	for _, release := range e.releases {
		release()
	}
}

// Rollback undoes a failed operation by calling release. When err carries an
// IncompleteCopyError the device may still be using what release frees, so it
// is queued on that error's Abandon instead.
func Rollback(err error, release func()) {
	var incompleteErr *IncompleteCopyError
	if errors.As(err, &incompleteErr) && !incompleteErr.abandoned {
		incompleteErr.releases = append(incompleteErr.releases, release)
		return
	}

	release()
}

// Abandon releases what a failed wait left behind, if err carries an
// IncompleteCopyError. It reports whether there was anything to abandon.
func Abandon(err error) bool {
	var incompleteErr *IncompleteCopyError
	if !errors.As(err, &incompleteErr) {
		return false
	}

	incompleteErr.Abandon()
	return true
}

type ImageInfo struct {
	Width, Height int
	Format        core1_0.Format
	Usage         core1_0.ImageUsageFlags
}

// Allocator creates and releases device memory backed objects.
type Allocator interface {
	AllocateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error)
	AllocateImage(info ImageInfo, properties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error)
	DestroyBuffer(buffer core1_0.Buffer)
	DestroyImage(image core1_0.Image)
	FreeMemory(memory core1_0.DeviceMemory)

	WriteMemory(memory core1_0.DeviceMemory, offset int, data []byte) error
	ReadMemory(memory core1_0.DeviceMemory, offset int, size int) ([]byte, error)
}

// Transfer records device-side work. Each call is submitted on its own and
// returns a Fence for its completion.
type Transfer interface {
	CopyBuffer(src core1_0.Buffer, dst core1_0.Buffer, size int) (Fence, error)
	CopyBufferToImage(src core1_0.Buffer, dst core1_0.Image, width, height int) (Fence, error)
	TransitionImageLayout(image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) (Fence, error)
}

type Sampling interface {
	CreateImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error)
	DestroyImageView(view core1_0.ImageView)
	CreateSampler(info core1_0.SamplerCreateInfo) (core1_0.Sampler, error)
	DestroySampler(sampler core1_0.Sampler)
	MaxSamplerAnisotropy() (float32, error)
}

type Descriptors interface {
	CreateDescriptorSetLayout(info core1_0.DescriptorSetLayoutCreateInfo) (core1_0.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout core1_0.DescriptorSetLayout)
	CreateDescriptorPool(info core1_0.DescriptorPoolCreateInfo) (core1_0.DescriptorPool, error)
	DestroyDescriptorPool(pool core1_0.DescriptorPool)
	AllocateDescriptorSets(info core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, error)
	UpdateDescriptorSets(writes []core1_0.WriteDescriptorSet) error
}

// Context is the full device boundary used by the mesh loading code.
type Context interface {
	Allocator
	Transfer
	Sampling
	Descriptors
}
