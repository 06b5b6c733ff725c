package dieselsss

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

//Device Queue properties is per device and constructed from the device
type CoreQueue struct {
	properties []vk.QueueFamilyProperties
	present    []bool
	gpu        vk.PhysicalDevice
}

//List queue properties available for a physical device along with the families
//that can present to the surface
func NewCoreQueue(gpu vk.PhysicalDevice, surface vk.Surface) *CoreQueue {
	var q CoreQueue
	var count uint32
	q.gpu = gpu
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	if count == 0 {
		return nil
	}
	q.properties = make([]vk.QueueFamilyProperties, count)
	q.present = make([]bool, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, q.properties)

	for index := uint32(0); index < count; index++ {
		q.properties[index].Deref()
		if surface == vk.NullSurface {
			continue
		}
		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(gpu, index, surface, &supported)
		q.present[index] = supported.B()
	}
	return &q
}

func (q *CoreQueue) hasFlags(index int, flag_bits vk.QueueFlagBits) bool {
	return q.properties[index].QueueFlags&vk.QueueFlags(flag_bits) == vk.QueueFlags(flag_bits)
}

//Picks the graphics and present families. A family that does both wins, otherwise
//the first graphics family is paired with the first family that can present.
func (q *CoreQueue) SelectFamilies() (graphics uint32, present uint32, err error) {
	graphics_found, present_found := false, false
	for index := range q.properties {
		if !q.hasFlags(index, vk.QueueGraphicsBit) {
			continue
		}
		if q.present[index] {
			return uint32(index), uint32(index), nil
		}
		if !graphics_found {
			graphics, graphics_found = uint32(index), true
		}
	}
	if !graphics_found {
		return 0, 0, fmt.Errorf("no queue family supports graphics")
	}
	for index := range q.present {
		if q.present[index] {
			present, present_found = uint32(index), true
			break
		}
	}
	if !present_found {
		return 0, 0, fmt.Errorf("no queue family can present to the surface")
	}
	return graphics, present, nil
}

//Gets the device create infos for the selected families, one queue each
func (q *CoreQueue) GetCreateInfos(graphics uint32, present uint32) []vk.DeviceQueueCreateInfo {
	priority := []float32{1.0}
	infos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: graphics,
		QueueCount:       1,
		PQueuePriorities: priority,
	}}
	if present != graphics {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: present,
			QueueCount:       1,
			PQueuePriorities: priority,
		})
	}
	return infos
}

//Checks if device is suitable for graphics and presentation
func (q *CoreQueue) IsDeviceSuitable() bool {
	_, _, err := q.SelectFamilies()
	return err == nil
}
