package dieselsss

import (
	vk "github.com/vulkan-go/vulkan"
)

//Descriptor pool capacity. Sets are allocated per object per frame slot and
//returned individually on every resize.
const (
	DescriptorPoolSets     = 512
	DescriptorPoolUniforms = 512
	DescriptorPoolSamplers = 2048
)

type CorePool struct {
	pool vk.CommandPool
}

func NewCorePool(device vk.Device, family_index uint32) (*CorePool, error) {
	var core CorePool
	var cmdPool vk.CommandPool

	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family_index,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &cmdPool)

	if isError(ret) {
		return nil, NewError(ret)
	}
	core.pool = cmdPool
	return &core, nil
}

func (c *CorePool) Destroy(device vk.Device) {
	if c.pool == vk.NullCommandPool {
		return
	}
	vk.DestroyCommandPool(device, c.pool, nil)
	c.pool = vk.NullCommandPool
}

//CoreDescriptorPool backs every descriptor set of a render instance
type CoreDescriptorPool struct {
	pool vk.DescriptorPool
}

func NewCoreDescriptorPool(device vk.Device) (*CoreDescriptorPool, error) {
	var core CoreDescriptorPool
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: DescriptorPoolUniforms},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: DescriptorPoolSamplers},
	}
	ret := vk.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       DescriptorPoolSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &core.pool)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return &core, nil
}

func (c *CoreDescriptorPool) Allocate(device vk.Device, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	sets := make([]vk.DescriptorSet, 1)
	ret := vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     c.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &sets[0])
	if isError(ret) {
		return vk.NullDescriptorSet, NewError(ret)
	}
	return sets[0], nil
}

func (c *CoreDescriptorPool) Free(device vk.Device, set vk.DescriptorSet) {
	vk.FreeDescriptorSets(device, c.pool, 1, &set)
}

func (c *CoreDescriptorPool) Destroy(device vk.Device) {
	if c.pool == vk.NullDescriptorPool {
		return
	}
	vk.DestroyDescriptorPool(device, c.pool, nil)
	c.pool = vk.NullDescriptorPool
}
