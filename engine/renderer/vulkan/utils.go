package vulkan

import (
	"bytes"
	"fmt"

	vk "github.com/goki/vulkan"
)

// Names and short descriptions of the results the backend runs into.
var resultNames = map[vk.Result][2]string{
	vk.Success:                   {"VK_SUCCESS", "command successfully completed"},
	vk.NotReady:                  {"VK_NOT_READY", "a fence or query has not yet completed"},
	vk.Timeout:                   {"VK_TIMEOUT", "a wait operation has not completed in the specified time"},
	vk.Incomplete:                {"VK_INCOMPLETE", "a return array was too small for the result"},
	vk.Suboptimal:                {"VK_SUBOPTIMAL_KHR", "the swapchain no longer matches the surface exactly"},
	vk.ErrorOutOfHostMemory:      {"VK_ERROR_OUT_OF_HOST_MEMORY", "a host memory allocation has failed"},
	vk.ErrorOutOfDeviceMemory:    {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "a device memory allocation has failed"},
	vk.ErrorInitializationFailed: {"VK_ERROR_INITIALIZATION_FAILED", "initialization of an object could not be completed"},
	vk.ErrorDeviceLost:           {"VK_ERROR_DEVICE_LOST", "the logical or physical device has been lost"},
	vk.ErrorMemoryMapFailed:      {"VK_ERROR_MEMORY_MAP_FAILED", "mapping of a memory object has failed"},
	vk.ErrorLayerNotPresent:      {"VK_ERROR_LAYER_NOT_PRESENT", "a requested layer is not present"},
	vk.ErrorExtensionNotPresent:  {"VK_ERROR_EXTENSION_NOT_PRESENT", "a requested extension is not supported"},
	vk.ErrorFeatureNotPresent:    {"VK_ERROR_FEATURE_NOT_PRESENT", "a requested feature is not supported"},
	vk.ErrorIncompatibleDriver:   {"VK_ERROR_INCOMPATIBLE_DRIVER", "the requested Vulkan version is not supported by the driver"},
	vk.ErrorTooManyObjects:       {"VK_ERROR_TOO_MANY_OBJECTS", "too many objects of the type have already been created"},
	vk.ErrorFormatNotSupported:   {"VK_ERROR_FORMAT_NOT_SUPPORTED", "a requested format is not supported on this device"},
	vk.ErrorFragmentedPool:       {"VK_ERROR_FRAGMENTED_POOL", "a pool allocation has failed due to fragmentation"},
	vk.ErrorSurfaceLost:          {"VK_ERROR_SURFACE_LOST_KHR", "the surface is no longer available"},
	vk.ErrorNativeWindowInUse:    {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "the window is already in use"},
	vk.ErrorOutOfDate:            {"VK_ERROR_OUT_OF_DATE_KHR", "the surface changed and the swapchain must be recreated"},
	vk.ErrorOutOfPoolMemory:      {"VK_ERROR_OUT_OF_POOL_MEMORY", "a pool memory allocation has failed"},
	vk.ErrorFragmentation:        {"VK_ERROR_FRAGMENTATION", "a descriptor pool creation has failed due to fragmentation"},
	vk.ErrorUnknown:              {"VK_ERROR_UNKNOWN", "an unknown error has occurred"},
}

// VulkanResultString names a result, with its description when extended is set.
func VulkanResultString(result vk.Result, extended bool) string {
	name, ok := resultNames[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", result)
	}
	if !extended {
		return name[0]
	}
	return name[0] + " " + name[1]
}

// Error codes are negative, everything else is some flavour of success.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	for i := range list {
		list[i] = VulkanSafeString(list[i])
	}
	return list
}

// cString reads a fixed size, zero terminated name out of a Vulkan properties struct.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
