package dieselsss

import (
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// FenceManager creates and tracks the fences of the frame slots. Waits are
// bounded, a timeout surfaces as render.ErrTimeout.
// The manager is not thread-safe and belongs to the render thread.
type FenceManager struct {
	device vk.Device
	fences []vk.Fence
}

func NewFenceManager(device vk.Device) *FenceManager {
	return &FenceManager{
		device: device,
	}
}

// NewFence creates a fence, signaled when the first wait on it must not block.
func (f *FenceManager) NewFence(signaled bool) (vk.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(f.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	if isError(ret) {
		return fence, NewError(ret)
	}
	f.fences = append(f.fences, fence)
	return fence, nil
}

func (f *FenceManager) Wait(fence vk.Fence, timeout time.Duration) error {
	ret := vk.WaitForFences(f.device, 1, []vk.Fence{fence}, vk.True, uint64(timeout.Nanoseconds()))
	return NewError(ret)
}

func (f *FenceManager) Reset(fence vk.Fence) error {
	return NewError(vk.ResetFences(f.device, 1, []vk.Fence{fence}))
}

func (f *FenceManager) ActiveFences() []vk.Fence {
	return f.fences
}

func (f *FenceManager) DestroyFence(fence vk.Fence) {
	for i := range f.fences {
		if f.fences[i] == fence {
			f.fences = append(f.fences[:i], f.fences[i+1:]...)
			break
		}
	}
	vk.DestroyFence(f.device, fence, nil)
}

func (f *FenceManager) Destroy() {
	for i := range f.fences {
		vk.DestroyFence(f.device, f.fences[i], nil)
	}
	f.fences = nil
}

// NewSemaphore creates a binary semaphore for image acquire and render completion.
func NewSemaphore(device vk.Device) (vk.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	return sem, NewError(ret)
}

// CommandBufferManager allocates the primary command buffers of the frame slots
// from a pool that allows individual resets.
// The manager is not thread-safe and belongs to the render thread.
type CommandBufferManager struct {
	device             vk.Device
	pool               *CorePool
	commandBufferLevel vk.CommandBufferLevel
	buffers            []vk.CommandBuffer
}

// NewCommandBufferManager creates a new instance of this manager. Device is the Vulkan device to use,
// graphicsQueueIndex is the Vulkan queue family index for where we can submit graphics work.
func NewCommandBufferManager(device vk.Device, graphicsQueueIndex uint32) (*CommandBufferManager, error) {
	pool, err := NewCorePool(device, graphicsQueueIndex)
	if err != nil {
		return nil, err
	}
	m := &CommandBufferManager{
		pool:               pool,
		device:             device,
		commandBufferLevel: vk.CommandBufferLevelPrimary,
	}
	return m, nil
}

// NewCommandBuffer allocates a command buffer in the initial state.
func (c *CommandBufferManager) NewCommandBuffer() (vk.CommandBuffer, error) {
	bufs := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool.pool,
		Level:              c.commandBufferLevel,
		CommandBufferCount: 1,
	}, bufs)
	if isError(ret) {
		return nil, NewError(ret)
	}
	c.buffers = append(c.buffers, bufs[0])
	return bufs[0], nil
}

func (c *CommandBufferManager) Free(buf vk.CommandBuffer) {
	for i := range c.buffers {
		if c.buffers[i] == buf {
			c.buffers = append(c.buffers[:i], c.buffers[i+1:]...)
			break
		}
	}
	vk.FreeCommandBuffers(c.device, c.pool.pool, 1, []vk.CommandBuffer{buf})
}

// OneTime records fn into a throwaway command buffer, submits it to queue and
// waits for the queue to drain. Used for uploads during bring-up.
func (c *CommandBufferManager) OneTime(queue vk.Queue, fn func(cmd vk.CommandBuffer)) error {
	cmd, err := c.NewCommandBuffer()
	if err != nil {
		return err
	}
	defer c.Free(cmd)

	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isError(ret) {
		return NewError(ret)
	}
	fn(cmd)
	if ret := vk.EndCommandBuffer(cmd); isError(ret) {
		return NewError(ret)
	}
	ret = vk.QueueSubmit(queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, vk.NullFence)
	if isError(ret) {
		return NewError(ret)
	}
	return NewError(vk.QueueWaitIdle(queue))
}

func (c *CommandBufferManager) Destroy() {
	if len(c.buffers) > 0 {
		vk.FreeCommandBuffers(c.device, c.pool.pool, uint32(len(c.buffers)), c.buffers)
		c.buffers = nil
	}
	c.pool.Destroy(c.device)
}
