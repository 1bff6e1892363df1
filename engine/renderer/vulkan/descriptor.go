package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type VulkanDescriptorSetLayout struct {
	Handle   vk.DescriptorSetLayout
	Bindings []metadata.DescriptorBinding
}

/**
 * @brief A descriptor set together with the layout it was allocated for.
 * Sets live as long as their pool, they are never freed one by one.
 */
type VulkanDescriptorSet struct {
	Handle vk.DescriptorSet
	Layout *VulkanDescriptorSetLayout
}

func (l *VulkanDescriptorSetLayout) binding(index uint32) (metadata.DescriptorBinding, bool) {
	for _, b := range l.Bindings {
		if b.Binding == index {
			return b, true
		}
	}
	return metadata.DescriptorBinding{}, false
}

func DescriptorSetLayoutCreate(context *VulkanContext, bindings []metadata.DescriptorBinding) (*VulkanDescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vulkanDescriptorType(b.Type),
			DescriptorCount: count,
			StageFlags:      vulkanShaderStages(b.Stages),
		}
	}

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var handle vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("vkCreateDescriptorSetLayout failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanDescriptorSetLayout{
		Handle:   handle,
		Bindings: append([]metadata.DescriptorBinding(nil), bindings...),
	}, nil
}

func (l *VulkanDescriptorSetLayout) Destroy(context *VulkanContext) {
	if l.Handle != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, l.Handle, context.Allocator)
		l.Handle = vk.NullDescriptorSetLayout
	}
}

/**
 * @brief Descriptor pools grow on demand. A full pool is kept and a new one
 * is appended, so sets already handed out stay valid.
 */
type VulkanDescriptorAllocator struct {
	pools []vk.DescriptorPool
}

func newDescriptorPool(context *VulkanContext) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: VULKAN_DESCRIPTOR_POOL_MAX_DESCRIPTORS,
		},
		{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: VULKAN_DESCRIPTOR_POOL_MAX_DESCRIPTORS,
		},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       VULKAN_DESCRIPTOR_POOL_MAX_SETS,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("vkCreateDescriptorPool failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullDescriptorPool, err
	}
	core.LogDebug("descriptor pool created")
	return pool, nil
}

func (a *VulkanDescriptorAllocator) Allocate(context *VulkanContext, layout *VulkanDescriptorSetLayout) (*VulkanDescriptorSet, error) {
	set := &VulkanDescriptorSet{Layout: layout}
	err := lockPool.SafeCall(DescriptorManagement, func() error {
		if len(a.pools) > 0 {
			res := a.allocate(context, a.pools[len(a.pools)-1], layout, &set.Handle)
			if res == vk.Success {
				return nil
			}
			if res != vk.ErrorOutOfPoolMemory && res != vk.ErrorFragmentedPool {
				return fmt.Errorf("vkAllocateDescriptorSets failed with %s", VulkanResultString(res, true))
			}
		}
		pool, err := newDescriptorPool(context)
		if err != nil {
			return err
		}
		a.pools = append(a.pools, pool)
		if res := a.allocate(context, pool, layout, &set.Handle); res != vk.Success {
			return fmt.Errorf("vkAllocateDescriptorSets failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return set, nil
}

func (a *VulkanDescriptorAllocator) allocate(context *VulkanContext, pool vk.DescriptorPool, layout *VulkanDescriptorSetLayout, out *vk.DescriptorSet) vk.Result {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.Handle},
	}
	return vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, out)
}

// Destroy frees every pool and with them every set.
func (a *VulkanDescriptorAllocator) Destroy(context *VulkanContext) {
	_ = lockPool.SafeCall(DescriptorManagement, func() error {
		for _, pool := range a.pools {
			vk.DestroyDescriptorPool(context.Device.LogicalDevice, pool, context.Allocator)
		}
		a.pools = nil
		return nil
	})
}

// DescriptorSetUpdate points bindings of the set at buffers and images. Every
// image is sampled with the context sampler in the shader read-only layout.
func DescriptorSetUpdate(context *VulkanContext, set *VulkanDescriptorSet, writes []descriptorWrite) error {
	if len(writes) == 0 {
		return nil
	}
	descriptorWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		binding, ok := set.Layout.binding(w.Binding)
		if !ok {
			err := fmt.Errorf("descriptor write to binding %d which is not in the layout", w.Binding)
			core.LogError(err.Error())
			return err
		}
		descriptorWrites[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.Handle,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vulkanDescriptorType(binding.Type),
		}
		switch binding.Type {
		case metadata.DescriptorTypeUniformBuffer:
			if w.Buffer == nil {
				err := fmt.Errorf("descriptor binding %d needs a buffer", w.Binding)
				core.LogError(err.Error())
				return err
			}
			size := vk.DeviceSize(w.Range)
			if w.Range == 0 {
				size = vk.DeviceSize(vk.WholeSize)
			}
			descriptorWrites[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: w.Buffer.Handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  size,
			}}
		case metadata.DescriptorTypeCombinedImageSampler:
			if w.Image == nil {
				err := fmt.Errorf("descriptor binding %d needs an image", w.Binding)
				core.LogError(err.Error())
				return err
			}
			descriptorWrites[i].PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     context.Sampler,
				ImageView:   w.Image.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		}
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)
	return nil
}

// descriptorWrite is a metadata.DescriptorWrite with its handles resolved.
type descriptorWrite struct {
	Binding uint32
	Buffer  *VulkanBuffer
	Offset  uint64
	Range   uint64
	Image   *VulkanImage
}

func SamplerCreate(context *VulkanContext) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorFloatOpaqueWhite,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0.0,
		MaxLod:                  0.0,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		err := fmt.Errorf("vkCreateSampler failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullSampler, err
	}
	return sampler, nil
}
