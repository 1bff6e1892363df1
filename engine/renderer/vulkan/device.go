package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
)

const (
	portabilitySubsetExtensionName = "VK_KHR_portability_subset"
	// lets the shadow vertex program pick the cascade layer with gl_Layer
	layerOutputExtensionName = "VK_EXT_shader_viewport_index_layer"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
	Name        string
	// LayerOutput is set when vertex programs may write gl_Layer.
	LayerOutput bool
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
}

// Family indices are -1 when the device has no such queue.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

// DeviceCreate selects a physical device and creates the logical device, its
// queues and the graphics command pool. Presentation support is only required
// when the context has a surface.
func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")
	device := context.Device

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if device.PresentQueueIndex >= 0 && device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, uint32(device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{}
	if context.Surface != vk.NullSurface {
		extensionNames = append(extensionNames, vk.KhrSwapchainExtensionName)
	}
	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return err
	}
	if available[portabilitySubsetExtensionName] {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensionNames = append(extensionNames, portabilitySubsetExtensionName)
	}
	if available[layerOutputExtensionName] {
		extensionNames = append(extensionNames, layerOutputExtensionName)
		device.LayerOutput = true
	} else {
		core.LogWarn("'%s' is not available, cascades cannot be selected per instance.", layerOutputExtensionName)
	}

	// wireframe pipelines rasterize lines
	enabled := vk.PhysicalDeviceFeatures{}
	if device.Features.FillModeNonSolid == vk.True {
		enabled.FillModeNonSolid = vk.True
	} else {
		core.LogWarn("Device does not support non solid fill modes, wireframes are drawn filled.")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{enabled},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		err := fmt.Errorf("vkCreateDevice failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var graphicsQueue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &graphicsQueue)
	device.GraphicsQueue = graphicsQueue
	lockPool.SetQueueFamily(uint32(device.GraphicsQueueIndex))

	if device.PresentQueueIndex >= 0 {
		var presentQueue vk.Queue
		vk.GetDeviceQueue(device.LogicalDevice, uint32(device.PresentQueueIndex), 0, &presentQueue)
		device.PresentQueue = presentQueue
		lockPool.SetQueueFamily(uint32(device.PresentQueueIndex))
	}
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("vkCreateCommandPool failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !DeviceDetectDepthFormat(device) {
		core.LogWarn("No depth attachment format is supported by '%s'.", device.Name)
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	if device.LogicalDevice != nil {
		core.LogInfo("Destroying command pools...")
		if device.GraphicsCommandPool != vk.NullCommandPool {
			vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
			device.GraphicsCommandPool = vk.NullCommandPool
		}

		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return fmt.Errorf("failed to get physical device surface capabilities: %s", VulkanResultString(res, false))
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return fmt.Errorf("failed to get physical device surface formats: %s", VulkanResultString(res, false))
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
	if supportInfo.FormatCount != 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return fmt.Errorf("failed to get physical device surface formats: %s", VulkanResultString(res, false))
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		return fmt.Errorf("failed to get physical device surface present modes: %s", VulkanResultString(res, false))
	}
	supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
	if supportInfo.PresentModeCount != 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			return fmt.Errorf("failed to get physical device surface present modes: %s", VulkanResultString(res, false))
		}
	}
	return nil
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	for _, candidate := range candidates {
		if DeviceFormatSupports(device, candidate, vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)) {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

// DeviceFormatSupports reports whether optimally tiled images of format have every feature.
func DeviceFormatSupports(device *VulkanDevice, format vk.Format, features vk.FormatFeatureFlags) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, format, &properties)
	properties.Deref()
	return properties.OptimalTilingFeatures&features == features
}

// SelectPhysicalDevice picks the first discrete GPU meeting the requirements,
// or else the first device meeting them.
func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return fmt.Errorf("vkEnumeratePhysicalDevices failed with %s", VulkanResultString(res, true))
	}
	if physicalDeviceCount == 0 {
		err := errors.New("no devices which support Vulkan were found")
		core.LogError(err.Error())
		return err
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("vkEnumeratePhysicalDevices failed with %s", VulkanResultString(res, true))
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics: true,
		Present:  context.Surface != vk.NullSurface,
	}
	if requirements.Present {
		requirements.DeviceExtensionNames = []string{vk.KhrSwapchainExtensionName}
	}

	var selected *VulkanDevice
	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		candidate := &VulkanDevice{
			PhysicalDevice: physicalDevice,
			Properties:     properties,
			Features:       features,
			Memory:         memory,
			Name:           cString(properties.DeviceName[:]),
		}

		queueInfo, ok := PhysicalDeviceMeetsRequirements(candidate, context.Surface, &requirements)
		if !ok {
			continue
		}
		candidate.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		candidate.PresentQueueIndex = queueInfo.PresentFamilyIndex

		if selected == nil {
			selected = candidate
		}
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			selected = candidate
			break
		}
	}

	if selected == nil {
		err := errors.New("no physical devices were found which meet the requirements")
		core.LogError(err.Error())
		return err
	}

	core.LogInfo("Selected device: '%s'.", selected.Name)
	switch selected.Properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(selected.Properties.ApiVersion).Major(),
		vk.Version(selected.Properties.ApiVersion).Minor(),
		vk.Version(selected.Properties.ApiVersion).Patch(),
	)

	context.Device = selected
	core.LogInfo("Physical device selected.")
	return nil
}

func PhysicalDeviceMeetsRequirements(device *VulkanDevice, surface vk.Surface, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device.PhysicalDevice, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device.PhysicalDevice, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if queueInfo.GraphicsFamilyIndex < 0 && queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			queueInfo.GraphicsFamilyIndex = int32(i)
		}
		if !requirements.Present {
			continue
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device.PhysicalDevice, uint32(i), surface, &supportsPresent); res != vk.Success {
			return queueInfo, false
		}
		// prefer a family that does both
		if supportsPresent == vk.True && (queueInfo.PresentFamilyIndex < 0 || queueInfo.GraphicsFamilyIndex == int32(i)) {
			queueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("%s: graphics family %d, present family %d", device.Name, queueInfo.GraphicsFamilyIndex, queueInfo.PresentFamilyIndex)

	if requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0 {
		core.LogInfo("Device '%s' has no graphics queue, skipping.", device.Name)
		return queueInfo, false
	}
	if requirements.Present && queueInfo.PresentFamilyIndex < 0 {
		core.LogInfo("Device '%s' cannot present to the surface, skipping.", device.Name)
		return queueInfo, false
	}

	if requirements.Present {
		if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, surface, &device.SwapchainSupport); err != nil {
			core.LogInfo("Device '%s': %s, skipping.", device.Name, err.Error())
			return queueInfo, false
		}
		if device.SwapchainSupport.FormatCount < 1 || device.SwapchainSupport.PresentModeCount < 1 {
			core.LogInfo("Required swapchain support not present, skipping device.")
			return queueInfo, false
		}
	}

	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensions(device.PhysicalDevice)
		if err != nil {
			return queueInfo, false
		}
		for _, name := range requirements.DeviceExtensionNames {
			if !available[name] {
				core.LogInfo("Required extension not found: '%s', skipping device.", name)
				return queueInfo, false
			}
		}
	}
	return queueInfo, true
}

func deviceExtensions(physicalDevice vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, nil); res != vk.Success {
		return nil, fmt.Errorf("vkEnumerateDeviceExtensionProperties failed with %s", VulkanResultString(res, false))
	}
	properties := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, properties); res != vk.Success {
			return nil, fmt.Errorf("vkEnumerateDeviceExtensionProperties failed with %s", VulkanResultString(res, false))
		}
	}
	out := make(map[string]bool, count)
	for i := range properties {
		properties[i].Deref()
		out[cString(properties[i].ExtensionName[:])] = true
	}
	return out, nil
}
