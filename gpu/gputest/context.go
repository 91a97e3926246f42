// Package gputest provides an in-memory gpu.Context for tests.
package gputest

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshes/gpu"
)

var ErrInjected = errors.New("injected failure")

type Buffer struct {
	core1_0.Buffer
	ID    int
	Size  int
	Usage core1_0.BufferUsageFlags

	memory *Memory
}

type Memory struct {
	core1_0.DeviceMemory
	ID          int
	Properties  core1_0.MemoryPropertyFlags
	HostVisible bool

	data []byte
}

type Image struct {
	core1_0.Image
	ID     int
	Info   gpu.ImageInfo
	Layout core1_0.ImageLayout

	memory *Memory
}

type ImageView struct {
	core1_0.ImageView
	ID    int
	Image *Image
}

type Sampler struct {
	core1_0.Sampler
	ID   int
	Info core1_0.SamplerCreateInfo
}

type DescriptorSetLayout struct {
	core1_0.DescriptorSetLayout
	ID   int
	Info core1_0.DescriptorSetLayoutCreateInfo
}

type DescriptorPool struct {
	core1_0.DescriptorPool
	ID        int
	Info      core1_0.DescriptorPoolCreateInfo
	allocated int
}

type DescriptorSet struct {
	core1_0.DescriptorSet
	ID     int
	Pool   *DescriptorPool
	Layout core1_0.DescriptorSetLayout
}

// Event is one call made against the fake device.
type Event struct {
	Op string
	ID int
}

func (e Event) String() string {
	return fmt.Sprintf("%s#%d", e.Op, e.ID)
}

// Context records every device call and backs memory with byte slices. Copies
// are carried out when their fence is waited on, so code that releases a
// staging buffer before waiting is reported in Violations.
type Context struct {
	// MaxAnisotropy is reported as the device sampler anisotropy limit.
	MaxAnisotropy float32

	// FailAllocationAt makes the n-th buffer or image allocation fail,
	// counting from 1. Zero disables it.
	FailAllocationAt int
	FailSampler      bool
	FailImageView    bool

	// FailWait makes fence waits fail while the work stays in flight until
	// WaitIdle.
	FailWait bool

	Events     []Event
	Violations []string
	Writes     []core1_0.WriteDescriptorSet

	nextID      int
	allocations int
	live        map[int]string
	destroyed   map[int]bool
	pending     int
	fences      []*fence
}

var _ gpu.Context = (*Context)(nil)

func New() *Context {
	return &Context{
		MaxAnisotropy: 16,
		live:          make(map[int]string),
		destroyed:     make(map[int]bool),
	}
}

func (c *Context) track(kind string) int {
	c.nextID++
	c.live[c.nextID] = kind
	c.Events = append(c.Events, Event{Op: "create-" + kind, ID: c.nextID})
	return c.nextID
}

func (c *Context) release(kind string, id int) {
	if c.destroyed[id] {
		c.Violations = append(c.Violations, fmt.Sprintf("%s #%d released twice", kind, id))
		return
	}
	if _, ok := c.live[id]; !ok {
		c.Violations = append(c.Violations, fmt.Sprintf("%s #%d released but never created", kind, id))
		return
	}

	delete(c.live, id)
	c.destroyed[id] = true
	c.Events = append(c.Events, Event{Op: "destroy-" + kind, ID: id})
}

// Live returns the number of objects that have been created and not released.
func (c *Context) Live() int {
	return len(c.live)
}

// Pending returns the number of fences that have not been waited on.
func (c *Context) Pending() int {
	return c.pending
}

// Released returns the destroy events in the order they happened.
func (c *Context) Released() []Event {
	var out []Event
	for _, event := range c.Events {
		if len(event.Op) > 8 && event.Op[:8] == "destroy-" {
			out = append(out, event)
		}
	}
	return out
}

// Count returns how many events with the given op were recorded.
func (c *Context) Count(op string) int {
	count := 0
	for _, event := range c.Events {
		if event.Op == op {
			count++
		}
	}
	return count
}

// Contents returns a copy of the bytes held by memory, host visible or not.
func (c *Context) Contents(memory core1_0.DeviceMemory) []byte {
	mem := memory.(*Memory)
	return append([]byte(nil), mem.data...)
}

// ID returns the fake identifier behind a handle, or 0 for nil or unknown
// handles.
func ID(handle interface{}) int {
	switch h := handle.(type) {
	case *Buffer:
		return h.ID
	case *Memory:
		return h.ID
	case *Image:
		return h.ID
	case *ImageView:
		return h.ID
	case *Sampler:
		return h.ID
	case *DescriptorSetLayout:
		return h.ID
	case *DescriptorPool:
		return h.ID
	case *DescriptorSet:
		return h.ID
	}
	return 0
}

func (c *Context) allocateMemory(size int, properties core1_0.MemoryPropertyFlags) *Memory {
	mem := &Memory{
		ID:          c.track("memory"),
		Properties:  properties,
		HostVisible: properties&core1_0.MemoryPropertyHostVisible != 0,
		data:        make([]byte, size),
	}
	return mem
}

func (c *Context) nextAllocationFails() bool {
	c.allocations++
	return c.FailAllocationAt > 0 && c.allocations == c.FailAllocationAt
}

func (c *Context) AllocateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	if c.nextAllocationFails() {
		return nil, nil, errors.Wrapf(ErrInjected, "allocation %d", c.allocations)
	}

	buffer := &Buffer{ID: c.track("buffer"), Size: size, Usage: usage}
	buffer.memory = c.allocateMemory(size, properties)
	return buffer, buffer.memory, nil
}

func (c *Context) AllocateImage(info gpu.ImageInfo, properties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	if c.nextAllocationFails() {
		return nil, nil, errors.Wrapf(ErrInjected, "allocation %d", c.allocations)
	}

	image := &Image{ID: c.track("image"), Info: info, Layout: core1_0.ImageLayoutUndefined}
	image.memory = c.allocateMemory(info.Width*info.Height*4, properties)
	return image, image.memory, nil
}

func (c *Context) DestroyBuffer(buffer core1_0.Buffer) {
	c.release("buffer", buffer.(*Buffer).ID)
}

func (c *Context) DestroyImage(image core1_0.Image) {
	c.release("image", image.(*Image).ID)
}

func (c *Context) FreeMemory(memory core1_0.DeviceMemory) {
	c.release("memory", memory.(*Memory).ID)
}

func (c *Context) WriteMemory(memory core1_0.DeviceMemory, offset int, data []byte) error {
	mem := memory.(*Memory)
	if !mem.HostVisible {
		return errors.Newf("memory #%d is not host visible", mem.ID)
	}
	if c.destroyed[mem.ID] {
		return errors.Newf("memory #%d has been freed", mem.ID)
	}
	if offset+len(data) > len(mem.data) {
		return errors.Newf("write of %d bytes at %d overflows memory #%d", len(data), offset, mem.ID)
	}

	copy(mem.data[offset:], data)
	return nil
}

func (c *Context) ReadMemory(memory core1_0.DeviceMemory, offset int, size int) ([]byte, error) {
	mem := memory.(*Memory)
	if !mem.HostVisible {
		return nil, errors.Newf("memory #%d is not host visible", mem.ID)
	}
	if offset+size > len(mem.data) {
		return nil, errors.Newf("read of %d bytes at %d overflows memory #%d", size, offset, mem.ID)
	}

	return append([]byte(nil), mem.data[offset:offset+size]...), nil
}

// fence is device work that completes when it is waited on or when the device
// goes idle.
type fence struct {
	ctx      *Context
	op       string
	id       int
	work     func()
	done     bool
	released bool
}

func (f *fence) Wait() error {
	if f.done {
		return nil
	}
	c := f.ctx
	c.Events = append(c.Events, Event{Op: "wait-" + f.op, ID: f.id})

	if c.FailWait {
		return errors.Wrapf(ErrInjected, "wait for %s", f.op)
	}

	f.complete()
	return nil
}

func (f *fence) complete() {
	if f.done {
		return
	}
	f.done = true
	f.ctx.pending--
	f.work()
}

func (f *fence) Release() {
	c := f.ctx
	if f.released {
		c.Violations = append(c.Violations, fmt.Sprintf("fence for %s #%d released twice", f.op, f.id))
		return
	}
	f.released = true
	if !f.done {
		c.Violations = append(c.Violations, fmt.Sprintf("fence for %s #%d released while in flight", f.op, f.id))
	}
}

func (c *Context) fence(op string, id int, work func()) gpu.Fence {
	c.pending++
	f := &fence{ctx: c, op: op, id: id, work: work}
	c.fences = append(c.fences, f)
	return f
}

// WaitIdle completes every submitted piece of work that has not been
// observed yet, as a device going idle would.
func (c *Context) WaitIdle() {
	c.Events = append(c.Events, Event{Op: "wait-idle"})
	for _, f := range c.fences {
		f.complete()
	}
	c.fences = nil
}

func (c *Context) releasedEarly(kind string, id int) bool {
	if !c.destroyed[id] {
		return false
	}
	c.Violations = append(c.Violations, fmt.Sprintf("%s #%d released before its copy completed", kind, id))
	return true
}

func (c *Context) CopyBuffer(src core1_0.Buffer, dst core1_0.Buffer, size int) (gpu.Fence, error) {
	srcBuffer := src.(*Buffer)
	dstBuffer := dst.(*Buffer)
	c.Events = append(c.Events, Event{Op: "copy-buffer", ID: dstBuffer.ID})

	if srcBuffer.Usage&core1_0.BufferUsageTransferSrc == 0 {
		c.Violations = append(c.Violations, fmt.Sprintf("buffer #%d copied from without TRANSFER_SRC usage", srcBuffer.ID))
	}
	if dstBuffer.Usage&core1_0.BufferUsageTransferDst == 0 {
		c.Violations = append(c.Violations, fmt.Sprintf("buffer #%d copied to without TRANSFER_DST usage", dstBuffer.ID))
	}

	return c.fence("copy-buffer", dstBuffer.ID, func() {
		if c.releasedEarly("buffer", srcBuffer.ID) || c.releasedEarly("buffer", dstBuffer.ID) {
			return
		}
		copy(dstBuffer.memory.data[:size], srcBuffer.memory.data[:size])
	}), nil
}

func (c *Context) CopyBufferToImage(src core1_0.Buffer, dst core1_0.Image, width, height int) (gpu.Fence, error) {
	srcBuffer := src.(*Buffer)
	dstImage := dst.(*Image)
	c.Events = append(c.Events, Event{Op: "copy-image", ID: dstImage.ID})

	if dstImage.Layout != core1_0.ImageLayoutTransferDstOptimal {
		c.Violations = append(c.Violations, fmt.Sprintf("image #%d copied to in layout %s", dstImage.ID, dstImage.Layout))
	}

	size := width * height * 4
	return c.fence("copy-image", dstImage.ID, func() {
		if c.releasedEarly("buffer", srcBuffer.ID) || c.releasedEarly("image", dstImage.ID) {
			return
		}
		copy(dstImage.memory.data[:size], srcBuffer.memory.data[:size])
	}), nil
}

func (c *Context) TransitionImageLayout(image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) (gpu.Fence, error) {
	img := image.(*Image)
	c.Events = append(c.Events, Event{Op: "transition", ID: img.ID})

	if img.Layout != oldLayout {
		c.Violations = append(c.Violations, fmt.Sprintf("image #%d transitioned from %s but is in %s", img.ID, oldLayout, img.Layout))
	}
	img.Layout = newLayout

	return c.fence("transition", img.ID, func() {
		c.releasedEarly("image", img.ID)
	}), nil
}

func (c *Context) CreateImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	if c.FailImageView {
		return nil, errors.Wrap(ErrInjected, "create image view")
	}
	return &ImageView{ID: c.track("view"), Image: image.(*Image)}, nil
}

func (c *Context) DestroyImageView(view core1_0.ImageView) {
	c.release("view", view.(*ImageView).ID)
}

func (c *Context) CreateSampler(info core1_0.SamplerCreateInfo) (core1_0.Sampler, error) {
	if c.FailSampler {
		return nil, errors.Wrap(ErrInjected, "create sampler")
	}
	return &Sampler{ID: c.track("sampler"), Info: info}, nil
}

func (c *Context) DestroySampler(sampler core1_0.Sampler) {
	c.release("sampler", sampler.(*Sampler).ID)
}

func (c *Context) MaxSamplerAnisotropy() (float32, error) {
	return c.MaxAnisotropy, nil
}

func (c *Context) CreateDescriptorSetLayout(info core1_0.DescriptorSetLayoutCreateInfo) (core1_0.DescriptorSetLayout, error) {
	return &DescriptorSetLayout{ID: c.track("set-layout"), Info: info}, nil
}

func (c *Context) DestroyDescriptorSetLayout(layout core1_0.DescriptorSetLayout) {
	c.release("set-layout", layout.(*DescriptorSetLayout).ID)
}

func (c *Context) CreateDescriptorPool(info core1_0.DescriptorPoolCreateInfo) (core1_0.DescriptorPool, error) {
	return &DescriptorPool{ID: c.track("pool"), Info: info}, nil
}

func (c *Context) DestroyDescriptorPool(pool core1_0.DescriptorPool) {
	c.release("pool", pool.(*DescriptorPool).ID)
}

func (c *Context) AllocateDescriptorSets(info core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, error) {
	pool := info.DescriptorPool.(*DescriptorPool)
	if pool.allocated+len(info.SetLayouts) > pool.Info.MaxSets {
		return nil, errors.Wrapf(ErrInjected, "pool #%d exhausted: %d of %d sets in use", pool.ID, pool.allocated, pool.Info.MaxSets)
	}
	pool.allocated += len(info.SetLayouts)

	sets := make([]core1_0.DescriptorSet, 0, len(info.SetLayouts))
	for _, layout := range info.SetLayouts {
		c.nextID++
		c.Events = append(c.Events, Event{Op: "allocate-set", ID: c.nextID})
		sets = append(sets, &DescriptorSet{ID: c.nextID, Pool: pool, Layout: layout})
	}
	return sets, nil
}

func (c *Context) UpdateDescriptorSets(writes []core1_0.WriteDescriptorSet) error {
	for _, write := range writes {
		c.Events = append(c.Events, Event{Op: "write-set", ID: ID(write.DstSet)})
	}
	c.Writes = append(c.Writes, writes...)
	return nil
}
