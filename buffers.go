package dieselsss

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//CreateUniformBuffer allocates a host visible uniform buffer rewritten once per frame
func (core *CoreRenderInstance) CreateUniformBuffer(size int) (render.Buffer, error) {
	if size <= 0 {
		return render.Buffer{}, fmt.Errorf("uniform buffer size %d", size)
	}
	b, err := CreateBuffer(core.handle(), core.logical_device.memory_properties, size, nil, vk.BufferUsageUniformBufferBit)
	if err != nil {
		return render.Buffer{}, err
	}
	return render.Buffer{
		Handle: core.objects.buffers.put(b),
		Memory: core.objects.memory.put(b.Memory),
		Size:   size,
	}, nil
}

func (core *CoreRenderInstance) WriteBuffer(b render.Buffer, data []byte) error {
	buf, ok := core.objects.buffers.get(b.Handle)
	if !ok {
		return fmt.Errorf("write to unknown buffer %d", b.Handle)
	}
	return buf.Write(data)
}

func (core *CoreRenderInstance) DestroyBuffer(b render.Buffer) {
	core.objects.memory.remove(b.Memory)
	if buf, ok := core.objects.buffers.remove(b.Handle); ok {
		buf.Destroy()
	}
}

//CreateMesh uploads interleaved position, normal, texcoord vertices and their
//triangle list indices
func (core *CoreRenderInstance) CreateMesh(vertices []float32, indices []uint32) (render.Mesh, error) {
	if len(vertices) == 0 || len(vertices)%VertexFloats != 0 {
		return render.Mesh{}, fmt.Errorf("mesh vertex data of %d floats is not a multiple of %d", len(vertices), VertexFloats)
	}
	if len(indices) == 0 || len(indices)%3 != 0 {
		return render.Mesh{}, fmt.Errorf("mesh index count %d is not a triangle list", len(indices))
	}
	device, props := core.handle(), core.logical_device.memory_properties

	vbo, err := CreateBuffer(device, props, 0, sliceBytes(vertices), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return render.Mesh{}, fmt.Errorf("vertex buffer: %w", err)
	}
	ibo, err := CreateBuffer(device, props, 0, indexBytes(indices), vk.BufferUsageIndexBufferBit)
	if err != nil {
		vbo.Destroy()
		return render.Mesh{}, fmt.Errorf("index buffer: %w", err)
	}
	return render.Mesh{
		Vertices:   core.objects.buffers.put(vbo),
		Indices:    core.objects.buffers.put(ibo),
		IndexCount: uint32(len(indices)),
	}, nil
}

func (core *CoreRenderInstance) DestroyMesh(m render.Mesh) {
	for _, h := range []render.Handle{m.Vertices, m.Indices} {
		if buf, ok := core.objects.buffers.remove(h); ok {
			buf.Destroy()
		}
	}
}
