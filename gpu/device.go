package gpu

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// Device implements Context against a live vkngwrapper logical device. Each
// transfer is recorded into its own one-time command buffer and submitted with
// a dedicated fence.
type Device struct {
	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device
	queue          core1_0.Queue
	commandPool    core1_0.CommandPool
}

var _ Context = (*Device)(nil)

func NewDevice(physicalDevice core1_0.PhysicalDevice, device core1_0.Device, queue core1_0.Queue, commandPool core1_0.CommandPool) *Device {
	return &Device{
		physicalDevice: physicalDevice,
		device:         device,
		queue:          queue,
		commandPool:    commandPool,
	}
}

func (d *Device) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := d.physicalDevice.MemoryProperties()
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("no memory type matches %s", properties)
}

func (d *Device) allocate(requirements *core1_0.MemoryRequirements, properties core1_0.MemoryPropertyFlags) (core1_0.DeviceMemory, error) {
	memoryTypeIndex, err := d.findMemoryType(requirements.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}

	memory, _, err := d.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	return memory, err
}

func (d *Device) AllocateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := d.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, nil, err
	}

	memory, err := d.allocate(buffer.MemoryRequirements(), properties)
	if err != nil {
		buffer.Destroy(nil)
		return nil, nil, err
	}

	_, err = buffer.BindBufferMemory(memory, 0)
	if err != nil {
		buffer.Destroy(nil)
		memory.Free(nil)
		return nil, nil, err
	}

	return buffer, memory, nil
}

func (d *Device) AllocateImage(info ImageInfo, properties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, _, err := d.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        info.Format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         info.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, nil, err
	}

	memory, err := d.allocate(image.MemoryRequirements(), properties)
	if err != nil {
		image.Destroy(nil)
		return nil, nil, err
	}

	_, err = image.BindImageMemory(memory, 0)
	if err != nil {
		image.Destroy(nil)
		memory.Free(nil)
		return nil, nil, err
	}

	return image, memory, nil
}

func (d *Device) DestroyBuffer(buffer core1_0.Buffer) {
	buffer.Destroy(nil)
}

func (d *Device) DestroyImage(image core1_0.Image) {
	image.Destroy(nil)
}

func (d *Device) FreeMemory(memory core1_0.DeviceMemory) {
	memory.Free(nil)
}

func (d *Device) WriteMemory(memory core1_0.DeviceMemory, offset int, data []byte) error {
	memoryPtr, _, err := memory.Map(offset, len(data), 0)
	if err != nil {
		return err
	}
	defer memory.Unmap()

	copy(unsafe.Slice((*byte)(memoryPtr), len(data)), data)
	return nil
}

func (d *Device) ReadMemory(memory core1_0.DeviceMemory, offset int, size int) ([]byte, error) {
	memoryPtr, _, err := memory.Map(offset, size, 0)
	if err != nil {
		return nil, err
	}
	defer memory.Unmap()

	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(memoryPtr), size))
	return out, nil
}

func (d *Device) beginSingleTimeCommands() (core1_0.CommandBuffer, error) {
	buffers, _, err := d.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, err
	}

	buffer := buffers[0]
	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return nil, err
	}
	return buffer, nil
}

// commandFence owns a submitted command buffer and the fence it signals.
type commandFence struct {
	device core1_0.Device
	buffer core1_0.CommandBuffer
	fence  core1_0.Fence
}

// Wait polls the fence in FenceTimeout slices. On error the fence and the
// command buffer are kept, since the submission may still be executing.
func (f *commandFence) Wait() error {
	if f.fence == nil {
		return nil
	}

	for {
		res, err := f.fence.Wait(FenceTimeout)
		if err != nil {
			return err
		}
		if res != core1_0.VKTimeout {
			break
		}
	}

	f.Release()
	return nil
}

func (f *commandFence) Release() {
	if f.fence == nil {
		return
	}

	f.fence.Destroy(nil)
	f.device.FreeCommandBuffers([]core1_0.CommandBuffer{f.buffer})
	f.fence = nil
}

func (d *Device) endSingleTimeCommands(buffer core1_0.CommandBuffer) (Fence, error) {
	_, err := buffer.End()
	if err != nil {
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return nil, err
	}

	fence, _, err := d.device.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return nil, err
	}

	_, err = d.queue.Submit(fence, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	})
	if err != nil {
		fence.Destroy(nil)
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return nil, err
	}

	return &commandFence{device: d.device, buffer: buffer, fence: fence}, nil
}

func (d *Device) CopyBuffer(src core1_0.Buffer, dst core1_0.Buffer, size int) (Fence, error) {
	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return nil, err
	}

	err = buffer.CmdCopyBuffer(src, dst, []core1_0.BufferCopy{
		{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	})
	if err != nil {
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return nil, err
	}

	return d.endSingleTimeCommands(buffer)
}

func (d *Device) CopyBufferToImage(src core1_0.Buffer, dst core1_0.Image, width, height int) (Fence, error) {
	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return nil, err
	}

	err = buffer.CmdCopyBufferToImage(src, dst, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
		{
			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	})
	if err != nil {
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return nil, err
	}

	return d.endSingleTimeCommands(buffer)
}

func (d *Device) TransitionImageLayout(image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) (Fence, error) {
	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return nil, errors.Mark(errors.Newf("unexpected layout transition: %s -> %s", oldLayout, newLayout), ErrUnexpectedLayoutTransition)
	}

	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return nil, err
	}

	err = buffer.CmdPipelineBarrier(sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: sourceAccess,
			DstAccessMask: destAccess,
		},
	})
	if err != nil {
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return nil, err
	}

	return d.endSingleTimeCommands(buffer)
}

func (d *Device) CreateImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	imageView, _, err := d.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	return imageView, err
}

func (d *Device) DestroyImageView(view core1_0.ImageView) {
	view.Destroy(nil)
}

func (d *Device) CreateSampler(info core1_0.SamplerCreateInfo) (core1_0.Sampler, error) {
	sampler, _, err := d.device.CreateSampler(nil, info)
	return sampler, err
}

func (d *Device) DestroySampler(sampler core1_0.Sampler) {
	sampler.Destroy(nil)
}

func (d *Device) MaxSamplerAnisotropy() (float32, error) {
	properties, err := d.physicalDevice.Properties()
	if err != nil {
		return 0, err
	}

	return properties.Limits.MaxSamplerAnisotropy, nil
}

func (d *Device) CreateDescriptorSetLayout(info core1_0.DescriptorSetLayoutCreateInfo) (core1_0.DescriptorSetLayout, error) {
	layout, _, err := d.device.CreateDescriptorSetLayout(nil, info)
	return layout, err
}

func (d *Device) DestroyDescriptorSetLayout(layout core1_0.DescriptorSetLayout) {
	layout.Destroy(nil)
}

func (d *Device) CreateDescriptorPool(info core1_0.DescriptorPoolCreateInfo) (core1_0.DescriptorPool, error) {
	pool, _, err := d.device.CreateDescriptorPool(nil, info)
	return pool, err
}

func (d *Device) DestroyDescriptorPool(pool core1_0.DescriptorPool) {
	pool.Destroy(nil)
}

func (d *Device) AllocateDescriptorSets(info core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, error) {
	sets, _, err := d.device.AllocateDescriptorSets(info)
	return sets, err
}

func (d *Device) UpdateDescriptorSets(writes []core1_0.WriteDescriptorSet) error {
	return d.device.UpdateDescriptorSets(writes, nil)
}
