package dieselsss

import (
	"fmt"
	"io"
	"log"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

const (
	swapchainExtension   = "VK_KHR_swapchain"
	portabilityExtension = "VK_KHR_portability_subset"
)

//CoreRenderInstance is the Vulkan implementation of render.Device. It owns the
//logical device, its queues and every object the renderer creates through it.
//All methods belong to the render thread.
type CoreRenderInstance struct {
	name     string
	platform *CorePlatform
	display  *CoreDisplay
	surface  vk.Surface
	logger   *log.Logger

	//Single Logical Device for the instance
	logical_device    *CoreDevice
	device_extensions *BaseExtensions

	//Command Pools, Fences and Descriptors
	commands    *CommandBufferManager
	fences      *FenceManager
	descriptors *CoreDescriptorPool
	pipelines   *CorePipeline

	objects *deviceObjects
}

//Creates a new render instance on the platform's Vulkan instance and attaches it to the
//first device that can render and present to the display
func NewCoreRenderInstance(platform *CorePlatform, display *CoreDisplay, name string, logger *log.Logger) (core *CoreRenderInstance, err error) {
	core = &CoreRenderInstance{
		name:     name,
		platform: platform,
		display:  display,
		logger:   logger,
		objects:  newDeviceObjects(),
	}
	if core.logger == nil {
		core.logger = log.New(io.Discard, "", 0)
	}

	core.surface, err = display.CreateSurface(platform.Instance())
	if err != nil {
		return nil, err
	}
	if err = core.Init([]string{portabilityExtension}); err != nil {
		core.Destroy()
		return nil, err
	}
	return core, nil
}

func (core *CoreRenderInstance) Init(wanted_extensions []string) (err error) {
	defer checkErr(&err)

	var gpu_count uint32
	ret := vk.EnumeratePhysicalDevices(core.platform.Instance(), &gpu_count, nil)
	orPanic(NewError(ret))
	if gpu_count == 0 {
		return fmt.Errorf("no Vulkan physical devices found")
	}
	gpus := make([]vk.PhysicalDevice, gpu_count)
	ret = vk.EnumeratePhysicalDevices(core.platform.Instance(), &gpu_count, gpus)
	orPanic(NewError(ret))

	//Select Valid Device By Queue Properties, discrete GPUs first
	device, queues := core.selectDevice(gpus)
	if device == nil {
		return fmt.Errorf("could not find suitable GPU device for graphics and presentation")
	}
	core.logical_device = device

	//Select device extensions
	available, err := DeviceExtensions(device.gpu)
	orPanic(err)
	core.device_extensions = NewBaseDeviceExtensions(wanted_extensions, []string{swapchainExtension}, available)
	if ok, missing := core.device_extensions.HasRequired(); !ok {
		return fmt.Errorf("device %s is missing extensions %v", device.name, missing)
	}
	dev_extensions := core.device_extensions.GetExtensions()
	layers := core.platform.Layers()

	graphics, present, err := queues.SelectFamilies()
	orPanic(err)
	device.graphics_family, device.present_family = graphics, present
	queue_infos := queues.GetCreateInfos(graphics, present)

	//Create Device
	var handle vk.Device
	ret = vk.CreateDevice(device.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queue_infos)),
		PQueueCreateInfos:       queue_infos,
		EnabledExtensionCount:   uint32(len(dev_extensions)),
		PpEnabledExtensionNames: safeStrings(dev_extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}, nil, &handle)
	orPanic(NewError(ret))
	device.handle = handle

	vk.GetDeviceQueue(handle, graphics, 0, &device.graphics_queue)
	device.present_queue = device.graphics_queue
	if device.HasSeparatePresentQueue() {
		vk.GetDeviceQueue(handle, present, 0, &device.present_queue)
	}

	core.commands, err = NewCommandBufferManager(handle, graphics)
	orPanic(err)
	core.fences = NewFenceManager(handle)
	core.descriptors, err = NewCoreDescriptorPool(handle)
	orPanic(err)
	core.pipelines, err = NewCorePipeline(handle)
	orPanic(err)

	core.logger.Printf("vulkan: %s on %s (graphics family %d, present family %d, extensions %v)",
		core.name, device.name, graphics, present, dev_extensions)
	return nil
}

func (core *CoreRenderInstance) selectDevice(gpus []vk.PhysicalDevice) (*CoreDevice, *CoreQueue) {
	var fallback *CoreDevice
	var fallback_queues *CoreQueue
	for _, gpu := range gpus {
		queues := NewCoreQueue(gpu, core.surface)
		if queues == nil || !queues.IsDeviceSuitable() {
			continue
		}
		device := &CoreDevice{gpu: gpu}
		vk.GetPhysicalDeviceProperties(gpu, &device.properties)
		device.properties.Deref()
		vk.GetPhysicalDeviceMemoryProperties(gpu, &device.memory_properties)
		device.memory_properties.Deref()
		device.name = vk.ToString(device.properties.DeviceName[:])

		if device.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			return device, queues
		}
		if fallback == nil {
			fallback, fallback_queues = device, queues
		}
	}
	return fallback, fallback_queues
}

func (core *CoreRenderInstance) Device() *CoreDevice {
	return core.logical_device
}

func (core *CoreRenderInstance) handle() vk.Device {
	return core.logical_device.handle
}

//Live is the number of renderer objects not yet released
func (core *CoreRenderInstance) Live() int {
	return core.objects.live()
}

//----------------render.Queue--------------------//

func (core *CoreRenderInstance) CreateFrameSlot() (slot render.FrameSlot, err error) {
	defer func() {
		if err != nil {
			core.DestroyFrameSlot(slot)
		}
	}()

	image_available, err := NewSemaphore(core.handle())
	if err != nil {
		return slot, err
	}
	slot.ImageAvailable = core.objects.semaphores.put(image_available)

	render_finished, err := NewSemaphore(core.handle())
	if err != nil {
		return slot, err
	}
	slot.RenderFinished = core.objects.semaphores.put(render_finished)

	fence, err := core.fences.NewFence(true)
	if err != nil {
		return slot, err
	}
	slot.InFlight = core.objects.fences.put(fence)

	cmd, err := core.commands.NewCommandBuffer()
	if err != nil {
		return slot, err
	}
	slot.Commands = core.objects.commands.put(cmd)
	return slot, nil
}

func (core *CoreRenderInstance) DestroyFrameSlot(s render.FrameSlot) {
	for _, h := range []render.Handle{s.ImageAvailable, s.RenderFinished} {
		if sem, ok := core.objects.semaphores.remove(h); ok {
			vk.DestroySemaphore(core.handle(), sem, nil)
		}
	}
	if fence, ok := core.objects.fences.remove(s.InFlight); ok {
		core.fences.DestroyFence(fence)
	}
	if cmd, ok := core.objects.commands.remove(s.Commands); ok {
		core.commands.Free(cmd)
	}
}

func (core *CoreRenderInstance) WaitFence(fence render.Handle, timeout time.Duration) error {
	f, ok := core.objects.fences.get(fence)
	if !ok {
		return fmt.Errorf("wait on unknown fence %d", fence)
	}
	return core.fences.Wait(f, timeout)
}

func (core *CoreRenderInstance) ResetFence(fence render.Handle) error {
	f, ok := core.objects.fences.get(fence)
	if !ok {
		return fmt.Errorf("reset of unknown fence %d", fence)
	}
	return core.fences.Reset(f)
}

func (core *CoreRenderInstance) AcquireNextImage(sc render.Swapchain, signal render.Handle, timeout time.Duration) (uint32, error) {
	swapchain, ok := core.objects.swapchains.get(sc.Handle)
	if !ok {
		return 0, fmt.Errorf("acquire from unknown swapchain %d", sc.Handle)
	}
	sem, _ := core.objects.semaphores.get(signal)
	var image_index uint32
	ret := vk.AcquireNextImage(core.handle(), swapchain.swapchain, uint64(timeout.Nanoseconds()), sem, vk.NullFence, &image_index)
	return image_index, NewError(ret)
}

func (core *CoreRenderInstance) Submit(cmd, wait, signal, fence render.Handle) error {
	buf, ok := core.objects.commands.get(cmd)
	if !ok {
		return fmt.Errorf("submit of unknown command buffer %d", cmd)
	}
	wait_sem, _ := core.objects.semaphores.get(wait)
	signal_sem, _ := core.objects.semaphores.get(signal)
	f, _ := core.objects.fences.get(fence)

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{wait_sem},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{buf},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal_sem},
	}
	ret := vk.QueueSubmit(core.logical_device.graphics_queue, 1, []vk.SubmitInfo{submitInfo}, f)
	return NewError(ret)
}

func (core *CoreRenderInstance) Present(sc render.Swapchain, image uint32, wait render.Handle) error {
	swapchain, ok := core.objects.swapchains.get(sc.Handle)
	if !ok {
		return fmt.Errorf("present to unknown swapchain %d", sc.Handle)
	}
	wait_sem, _ := core.objects.semaphores.get(wait)
	present_info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait_sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain.swapchain},
		PImageIndices:      []uint32{image},
	}
	return NewError(vk.QueuePresent(core.logical_device.present_queue, &present_info))
}

func (core *CoreRenderInstance) WaitIdle() error {
	return NewError(vk.DeviceWaitIdle(core.handle()))
}

//Destroy logs objects the renderer failed to release, then tears down the device and surface.
func (core *CoreRenderInstance) Destroy() {
	if core.logical_device != nil && core.logical_device.handle != nil {
		vk.DeviceWaitIdle(core.handle())
		if n := core.Live(); n > 0 {
			core.logger.Printf("vulkan: %d objects still live at shutdown", n)
		}
		if core.pipelines != nil {
			core.pipelines.Destroy(core.handle())
		}
		if core.descriptors != nil {
			core.descriptors.Destroy(core.handle())
		}
		if core.fences != nil {
			core.fences.Destroy()
		}
		if core.commands != nil {
			core.commands.Destroy()
		}
		vk.DestroyDevice(core.handle(), nil)
		core.logical_device.handle = nil
	}
	if core.surface != vk.NullSurface {
		vk.DestroySurface(core.platform.Instance(), core.surface, nil)
		core.surface = vk.NullSurface
	}
}

var _ render.Device = (*CoreRenderInstance)(nil)
