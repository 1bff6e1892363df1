package vulkan

/**
 * @brief Max number of descriptor sets allocated from one descriptor pool.
 * A new pool is created when every existing one is exhausted.
 */
const VULKAN_DESCRIPTOR_POOL_MAX_SETS uint32 = 256

/**
 * @brief Descriptors of each type reserved per descriptor pool.
 */
const VULKAN_DESCRIPTOR_POOL_MAX_DESCRIPTORS uint32 = 4 * VULKAN_DESCRIPTOR_POOL_MAX_SETS

/** @brief Max size in bytes of a push constant block the device must support. */
const VULKAN_MAX_PUSH_CONSTANT_SIZE uint32 = 128

/**
 * @brief Depth bias applied by pipelines built with SHADER_FLAG_DEPTH_BIAS.
 * @todo TODO: expose through the pipeline config once a second technique needs different values.
 */
const (
	VULKAN_DEPTH_BIAS_CONSTANT float32 = 1.25
	VULKAN_DEPTH_BIAS_SLOPE    float32 = 1.75
)
