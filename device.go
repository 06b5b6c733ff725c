package dieselsss

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//CoreDevice is the selected physical device and the logical device created on it.
//Graphics and present may resolve to the same family and queue.
type CoreDevice struct {
	gpu               vk.PhysicalDevice
	properties        vk.PhysicalDeviceProperties
	memory_properties vk.PhysicalDeviceMemoryProperties
	handle            vk.Device
	name              string

	graphics_family uint32
	present_family  uint32
	graphics_queue  vk.Queue
	present_queue   vk.Queue
}

func (d *CoreDevice) HasSeparatePresentQueue() bool {
	return d.graphics_family != d.present_family
}

func (d *CoreDevice) Name() string {
	return d.name
}

// registry hands out render.Handles for device objects. Registries built on the
// same counter never issue the same handle twice.
type registry[T any] struct {
	counter *uint64
	items   map[render.Handle]T
}

func newRegistry[T any](counter *uint64) *registry[T] {
	return &registry[T]{counter: counter, items: make(map[render.Handle]T)}
}

func (r *registry[T]) put(v T) render.Handle {
	*r.counter++
	h := render.Handle(*r.counter)
	r.items[h] = v
	return h
}

func (r *registry[T]) get(h render.Handle) (T, bool) {
	v, ok := r.items[h]
	return v, ok
}

func (r *registry[T]) remove(h render.Handle) (T, bool) {
	v, ok := r.items[h]
	if ok {
		delete(r.items, h)
	}
	return v, ok
}

func (r *registry[T]) len() int {
	return len(r.items)
}

//Device objects owned by a render instance, keyed by the handles the render package sees
type deviceObjects struct {
	counter uint64

	images       *registry[vk.Image]
	memory       *registry[vk.DeviceMemory]
	views        *registry[vk.ImageView]
	samplers     *registry[vk.Sampler]
	buffers      *registry[*Buffer]
	passes       *registry[*CoreRenderPass]
	framebuffers *registry[vk.Framebuffer]
	pipelines    *registry[vk.Pipeline]
	sets         *registry[vk.DescriptorSet]
	fences       *registry[vk.Fence]
	semaphores   *registry[vk.Semaphore]
	commands     *registry[vk.CommandBuffer]
	swapchains   *registry[*CoreSwapchain]
}

func newDeviceObjects() *deviceObjects {
	o := &deviceObjects{}
	o.images = newRegistry[vk.Image](&o.counter)
	o.memory = newRegistry[vk.DeviceMemory](&o.counter)
	o.views = newRegistry[vk.ImageView](&o.counter)
	o.samplers = newRegistry[vk.Sampler](&o.counter)
	o.buffers = newRegistry[*Buffer](&o.counter)
	o.passes = newRegistry[*CoreRenderPass](&o.counter)
	o.framebuffers = newRegistry[vk.Framebuffer](&o.counter)
	o.pipelines = newRegistry[vk.Pipeline](&o.counter)
	o.sets = newRegistry[vk.DescriptorSet](&o.counter)
	o.fences = newRegistry[vk.Fence](&o.counter)
	o.semaphores = newRegistry[vk.Semaphore](&o.counter)
	o.commands = newRegistry[vk.CommandBuffer](&o.counter)
	o.swapchains = newRegistry[*CoreSwapchain](&o.counter)
	return o
}

//live counts every object still registered, swapchains included
func (o *deviceObjects) live() int {
	return o.images.len() + o.memory.len() + o.views.len() + o.samplers.len() +
		o.buffers.len() + o.passes.len() + o.framebuffers.len() + o.pipelines.len() +
		o.sets.len() + o.fences.len() + o.semaphores.len() + o.commands.len() + o.swapchains.len()
}
