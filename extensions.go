package dieselsss

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

//enumerateNames runs the count-then-fill enumeration and reads one name per entry
func enumerateNames[T any](list func(count *uint32, out []T) vk.Result, name func(*T) []byte) ([]string, error) {
	var count uint32
	if ret := list(&count, nil); isError(ret) {
		return nil, NewError(ret)
	}
	props := make([]T, count)
	if ret := list(&count, props); isError(ret) {
		return nil, NewError(ret)
	}
	names := make([]string, 0, count)
	for i := range props[:count] {
		names = append(names, vk.ToString(name(&props[i])))
	}
	return names, nil
}

func extensionName(ext *vk.ExtensionProperties) []byte {
	ext.Deref()
	return ext.ExtensionName[:]
}

// InstanceExtensions lists the instance extensions the loader reports.
func InstanceExtensions() ([]string, error) {
	return enumerateNames(func(count *uint32, out []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateInstanceExtensionProperties("", count, out)
	}, extensionName)
}

// DeviceExtensions lists the extensions of a physical device.
func DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	return enumerateNames(func(count *uint32, out []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateDeviceExtensionProperties(gpu, "", count, out)
	}, extensionName)
}

func ValidationLayers() ([]string, error) {
	return enumerateNames(vk.EnumerateInstanceLayerProperties, func(layer *vk.LayerProperties) []byte {
		layer.Deref()
		return layer.LayerName[:]
	})
}

// FindRequiredMemoryType returns the first memory type allowed by
// deviceRequirements that has every hostRequirements property.
func FindRequiredMemoryType(props vk.PhysicalDeviceMemoryProperties,
	deviceRequirements, hostRequirements vk.MemoryPropertyFlagBits) (uint32, bool) {

	for i := uint32(0); i < props.MemoryTypeCount && i < vk.MaxMemoryTypes; i++ {
		if deviceRequirements&(vk.MemoryPropertyFlagBits(1)<<i) != 0 {
			props.MemoryTypes[i].Deref()
			flags := props.MemoryTypes[i].PropertyFlags
			if flags&vk.MemoryPropertyFlags(hostRequirements) == vk.MemoryPropertyFlags(hostRequirements) {
				return i, true
			}
		}
	}
	return 0, false
}

// FindRequiredMemoryTypeFallback relaxes hostRequirements to any allowed type
// when no type has them.
func FindRequiredMemoryTypeFallback(props vk.PhysicalDeviceMemoryProperties,
	deviceRequirements, hostRequirements vk.MemoryPropertyFlagBits) (uint32, bool) {

	if i, ok := FindRequiredMemoryType(props, deviceRequirements, hostRequirements); ok {
		return i, true
	}
	// Fallback to the first one available.
	if hostRequirements != 0 {
		return FindRequiredMemoryType(props, deviceRequirements, 0)
	}
	return 0, false
}

type Buffer struct {
	// device for destroy purposes.
	device vk.Device
	// Buffer is the buffer object.
	Buffer vk.Buffer
	// Memory is the device memory backing buffer object.
	Memory vk.DeviceMemory
	// Size is the requested size in bytes.
	Size int
}

func (b *Buffer) Destroy() {
	if b.device == nil {
		return
	}
	vk.FreeMemory(b.device, b.Memory, nil)
	vk.DestroyBuffer(b.device, b.Buffer, nil)
	b.device = nil
}

// Write copies data to the start of a host visible buffer.
func (b *Buffer) Write(data []byte) error {
	if len(data) > b.Size {
		return fmt.Errorf("buffer write of %d bytes exceeds size %d", len(data), b.Size)
	}
	if len(data) == 0 {
		return nil
	}
	var pData unsafe.Pointer
	ret := vk.MapMemory(b.device, b.Memory, 0, vk.DeviceSize(len(data)), 0, &pData)
	if isError(ret) {
		return NewError(ret)
	}
	n := vk.Memcopy(pData, data)
	vk.UnmapMemory(b.device, b.Memory)
	if n != len(data) {
		return fmt.Errorf("buffer write copied %d of %d bytes", n, len(data))
	}
	return nil
}

// CreateBuffer creates a host visible, coherent buffer of size bytes and fills
// it with data when data is not empty.
func CreateBuffer(device vk.Device, memProps vk.PhysicalDeviceMemoryProperties,
	size int, data []byte, usage vk.BufferUsageFlagBits) (b *Buffer, err error) {
	defer checkErr(&err)

	if size < len(data) {
		size = len(data)
	}
	var buffer vk.Buffer
	var memory vk.DeviceMemory
	ret := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	orPanic(NewError(ret))

	// Ask device about its memory requirements.
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &memReqs)
	memReqs.Deref()

	memType, ok := FindRequiredMemoryType(memProps, vk.MemoryPropertyFlagBits(memReqs.MemoryTypeBits),
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if !ok {
		orPanic(fmt.Errorf("no host visible memory type for buffer"), func() {
			vk.DestroyBuffer(device, buffer, nil)
		})
	}

	// Allocate device memory and bind to the buffer.
	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &memory)
	orPanic(NewError(ret), func() {
		vk.DestroyBuffer(device, buffer, nil)
	})
	vk.BindBufferMemory(device, buffer, memory, 0)
	b = &Buffer{
		device: device,
		Buffer: buffer,
		Memory: memory,
		Size:   size,
	}
	orPanic(b.Write(data), b.Destroy)
	return b, nil
}

func LoadShaderModule(device vk.Device, data []byte) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &module)
	if isError(ret) {
		return vk.NullShaderModule, NewError(ret)
	}
	return module, nil
}
