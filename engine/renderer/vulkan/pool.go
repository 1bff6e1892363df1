package vulkan

import "sync"

type LockGroup string

const (
	CommandPoolManagement LockGroup = "command_pool_management"
	DescriptorManagement  LockGroup = "descriptor_management"
)

// Objects Vulkan requires to be externally synchronized (command
// pools, descriptor pools, queues) are only touched through lockPool.
var lockPool = NewVulkanLockPool()

// keyedMutex hands out one mutex per key, created on first use.
type keyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

func (k *keyedMutex[K]) get(key K) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[K]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

func (k *keyedMutex[K]) call(key K, fn func() error) error {
	l := k.get(key)
	l.Lock()
	defer l.Unlock()
	return fn()
}

type VulkanLockPool struct {
	groups keyedMutex[LockGroup]
	// by queue family index
	queues keyedMutex[uint32]
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{}
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	return vs.groups.call(group, fn)
}

// SetQueueFamily registers a family up front so the first submit does not allocate.
func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.queues.get(index)
}

// SafeQueueCall serializes fn with every other call on the same queue family.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	return vs.queues.call(queueFamilyIndex, fn)
}
