package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type Config struct {
	ApplicationName string
	// Enables the Khronos validation layer and the debug report callback.
	Validation bool
	// nil renders offscreen only, no surface or swapchain is created.
	Platform      *platform.Platform
	SurfaceFormat metadata.Format
	Width         uint32
	Height        uint32
}

/**
 * @brief The Vulkan implementation of renderer.RendererBackend. Every object
 * handed to the frontend is kept in an arena and resolved by handle.
 */
type VulkanRenderer struct {
	config  Config
	context *VulkanContext

	descriptors VulkanDescriptorAllocator

	modules      *core.Arena[*VulkanShaderStage]
	layouts      *core.Arena[*VulkanDescriptorSetLayout]
	sets         *core.Arena[*VulkanDescriptorSet]
	renderpasses *core.Arena[*VulkanRenderpass]
	framebuffers *core.Arena[*VulkanFramebuffer]
	pipelines    *core.Arena[*VulkanPipeline]
	images       *core.Arena[*VulkanImage]
	buffers      *core.Arena[*VulkanBuffer]

	commandBuffer *VulkanCommandBuffer
	inFlight      *VulkanFence

	surfaceImages map[*VulkanImage]*metadata.Image
	initialized   bool
}

var (
	_ renderer.RendererBackend = (*VulkanRenderer)(nil)
	_ renderer.Presenter       = (*VulkanRenderer)(nil)
)

func New(config Config) *VulkanRenderer {
	if config.ApplicationName == "" {
		config.ApplicationName = "lumen"
	}
	return &VulkanRenderer{
		config: config,
		context: &VulkanContext{
			Allocator: nil,
			Surface:   vk.NullSurface,
		},
		modules:       core.NewArena[*VulkanShaderStage](32),
		layouts:       core.NewArena[*VulkanDescriptorSetLayout](16),
		sets:          core.NewArena[*VulkanDescriptorSet](64),
		renderpasses:  core.NewArena[*VulkanRenderpass](8),
		framebuffers:  core.NewArena[*VulkanFramebuffer](16),
		pipelines:     core.NewArena[*VulkanPipeline](32),
		images:        core.NewArena[*VulkanImage](32),
		buffers:       core.NewArena[*VulkanBuffer](32),
		surfaceImages: make(map[*VulkanImage]*metadata.Image),
	}
}

func (vr *VulkanRenderer) Initialize() error {
	if vr.config.Platform != nil {
		procAddr := glfw.GetVulkanGetInstanceProcAddress()
		if procAddr == nil {
			err := fmt.Errorf("GetInstanceProcAddress is nil")
			core.LogError(err.Error())
			return err
		}
		vk.SetGetInstanceProcAddr(procAddr)
	} else if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		err = fmt.Errorf("failed to load the Vulkan library: %w", err)
		core.LogError(err.Error())
		return err
	}
	if err := vk.Init(); err != nil {
		err = fmt.Errorf("failed to initialize vk: %w", err)
		core.LogError(err.Error())
		return err
	}

	if err := vr.createInstance(); err != nil {
		return err
	}

	if vr.config.Platform != nil {
		core.LogDebug("Creating Vulkan surface...")
		surface, err := vr.config.Platform.Window.CreateWindowSurface(vr.context.Instance, nil)
		if err != nil {
			err = fmt.Errorf("vulkan surface creation failed: %w", err)
			core.LogError(err.Error())
			return err
		}
		vr.context.Surface = vk.SurfaceFromPointer(surface)
		core.LogDebug("Vulkan surface created.")
	}

	if err := DeviceCreate(vr.context); err != nil {
		return err
	}

	sampler, err := SamplerCreate(vr.context)
	if err != nil {
		return err
	}
	vr.context.Sampler = sampler

	if vr.context.Surface != vk.NullSurface {
		sc, err := SwapchainCreate(vr.context, vr.config.Width, vr.config.Height, vulkanFormat(vr.config.SurfaceFormat))
		if err != nil {
			return err
		}
		vr.context.Swapchain = sc
		for _, image := range sc.Images {
			img := &metadata.Image{ImageConfig: metadata.ImageConfig{
				Name:    fmt.Sprintf("swapchain_%d", len(vr.surfaceImages)),
				Format:  vr.config.SurfaceFormat,
				Width:   image.Width,
				Height:  image.Height,
				Layers:  1,
				Samples: 1,
				Usage:   metadata.ImageUsageColorAttachment | metadata.ImageUsageTransferDst | metadata.ImageUsagePresent,
			}}
			img.Handle = vr.images.Acquire(image)
			vr.surfaceImages[image] = img
		}
	}

	cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
	if err != nil {
		return err
	}
	cb.renderer = vr
	vr.commandBuffer = cb

	fence, err := NewFence(vr.context, "in_flight")
	if err != nil {
		return err
	}
	vr.inFlight = fence

	vr.initialized = true
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(vr.config.ApplicationName),
		PEngineName:        VulkanSafeString("Lumen Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{}
	if vr.config.Platform != nil {
		extensions = append(extensions, vr.config.Platform.GetRequiredExtensionNames()...)
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	layers := []string{}
	if vr.config.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
		if err := checkValidationLayers(layers); err != nil {
			return err
		}
	}
	core.LogDebug("Required extensions: %v", extensions)

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.config.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if name == cString(available[i].LayerName[:]) {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", name)
			core.LogError(err.Error())
			return err
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (vr *VulkanRenderer) WaitIdle() error {
	if !vr.initialized {
		return nil
	}
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
		err := fmt.Errorf("vkDeviceWaitIdle failed: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	return nil
}

/**
 * @brief Destroys every object still alive, then the device, the surface and
 * the instance, in the opposite order of creation.
 */
func (vr *VulkanRenderer) Shutdown() error {
	if vr.context.Device == nil || vr.context.Device.LogicalDevice == nil {
		return nil
	}
	err := vr.WaitIdle()
	ctx := vr.context

	if vr.inFlight != nil {
		vr.inFlight.FenceDestroy(ctx)
		vr.inFlight = nil
	}
	if vr.commandBuffer != nil {
		vr.commandBuffer.Free(ctx, ctx.Device.GraphicsCommandPool)
		vr.commandBuffer = nil
	}

	vr.pipelines.Drain(func(_ core.Handle, p *VulkanPipeline) { p.Destroy(ctx) })
	vr.framebuffers.Drain(func(_ core.Handle, fb *VulkanFramebuffer) { fb.Destroy(ctx) })
	vr.renderpasses.Drain(func(_ core.Handle, rp *VulkanRenderpass) { rp.RenderpassDestroy(ctx) })
	vr.sets.Drain(func(core.Handle, *VulkanDescriptorSet) {})
	vr.descriptors.Destroy(ctx)
	vr.layouts.Drain(func(_ core.Handle, l *VulkanDescriptorSetLayout) { l.Destroy(ctx) })
	vr.modules.Drain(func(_ core.Handle, m *VulkanShaderStage) { m.Destroy(ctx) })
	vr.buffers.Drain(func(_ core.Handle, b *VulkanBuffer) { b.Destroy(ctx) })
	// surface images are destroyed with the swapchain
	vr.images.Drain(func(_ core.Handle, img *VulkanImage) {
		if img.owned {
			img.Destroy(ctx)
		}
	})
	vr.surfaceImages = make(map[*VulkanImage]*metadata.Image)

	if ctx.Swapchain != nil {
		ctx.Swapchain.Destroy(ctx)
		ctx.Swapchain = nil
	}
	if ctx.Sampler != vk.NullSampler {
		vk.DestroySampler(ctx.Device.LogicalDevice, ctx.Sampler, ctx.Allocator)
		ctx.Sampler = vk.NullSampler
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(ctx)

	core.LogDebug("Destroying Vulkan surface...")
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(ctx.Instance, ctx.Allocator)
	vr.initialized = false
	return err
}

func (vr *VulkanRenderer) ShaderModuleCreate(name string, stage metadata.ShaderStage, code []uint32) (*metadata.ShaderModule, error) {
	s, err := NewShaderModule(vr.context, name, stage, code)
	if err != nil {
		return nil, err
	}
	return &metadata.ShaderModule{
		Handle: vr.modules.Acquire(s),
		Name:   name,
		Stage:  stage,
	}, nil
}

func (vr *VulkanRenderer) ShaderModuleDestroy(module *metadata.ShaderModule) error {
	s, err := vr.modules.Release(module.Handle)
	if err != nil {
		return fmt.Errorf("shader module `%s`: %w", module.Name, err)
	}
	s.Destroy(vr.context)
	return nil
}

func (vr *VulkanRenderer) DescriptorSetLayoutCreate(bindings []metadata.DescriptorBinding) (*metadata.DescriptorSetLayout, error) {
	l, err := DescriptorSetLayoutCreate(vr.context, bindings)
	if err != nil {
		return nil, err
	}
	return &metadata.DescriptorSetLayout{
		Handle:   vr.layouts.Acquire(l),
		Bindings: l.Bindings,
	}, nil
}

func (vr *VulkanRenderer) DescriptorSetLayoutDestroy(layout *metadata.DescriptorSetLayout) error {
	l, err := vr.layouts.Release(layout.Handle)
	if err != nil {
		return fmt.Errorf("descriptor set layout: %w", err)
	}
	l.Destroy(vr.context)
	return nil
}

func (vr *VulkanRenderer) DescriptorSetAllocate(layout *metadata.DescriptorSetLayout) (*metadata.DescriptorSet, error) {
	l, err := vr.layouts.Get(layout.Handle)
	if err != nil {
		return nil, fmt.Errorf("descriptor set layout: %w", err)
	}
	s, err := vr.descriptors.Allocate(vr.context, l)
	if err != nil {
		return nil, err
	}
	return &metadata.DescriptorSet{
		Handle: vr.sets.Acquire(s),
		Layout: layout.Handle,
	}, nil
}

func (vr *VulkanRenderer) DescriptorSetUpdate(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error {
	s, err := vr.sets.Get(set.Handle)
	if err != nil {
		return fmt.Errorf("descriptor set: %w", err)
	}
	resolved := make([]descriptorWrite, len(writes))
	for i, w := range writes {
		resolved[i] = descriptorWrite{Binding: w.Binding, Offset: w.Offset, Range: w.Range}
		if w.Buffer != nil {
			if resolved[i].Buffer, err = vr.buffers.Get(w.Buffer.Handle); err != nil {
				return fmt.Errorf("descriptor binding %d: %w", w.Binding, err)
			}
		}
		if w.Image != nil {
			if resolved[i].Image, err = vr.images.Get(w.Image.Handle); err != nil {
				return fmt.Errorf("descriptor binding %d image `%s`: %w", w.Binding, w.Image.Name, err)
			}
		}
	}
	return DescriptorSetUpdate(vr.context, s, resolved)
}

func (vr *VulkanRenderer) RenderPassCreate(config *metadata.RenderPassConfig) (*metadata.RenderPass, error) {
	rp, err := RenderpassCreate(vr.context, config)
	if err != nil {
		return nil, err
	}
	return &metadata.RenderPass{
		Handle:           vr.renderpasses.Acquire(rp),
		RenderPassConfig: *config,
	}, nil
}

func (vr *VulkanRenderer) RenderPassDestroy(pass *metadata.RenderPass) error {
	rp, err := vr.renderpasses.Release(pass.Handle)
	if err != nil {
		return fmt.Errorf("render pass `%s`: %w", pass.Name, err)
	}
	rp.RenderpassDestroy(vr.context)
	return nil
}

func (vr *VulkanRenderer) RenderTargetCreate(pass *metadata.RenderPass, images []*metadata.Image, width, height, layers uint32) (*metadata.Framebuffer, error) {
	rp, err := vr.renderpasses.Get(pass.Handle)
	if err != nil {
		return nil, fmt.Errorf("render pass `%s`: %w", pass.Name, err)
	}
	if len(images) != len(pass.Attachments) {
		err := fmt.Errorf("render target for `%s`: %d images for %d attachments: %w", pass.Name, len(images), len(pass.Attachments), core.ErrAttachmentMismatch)
		core.LogError(err.Error())
		return nil, err
	}
	attachments := make([]*VulkanImage, len(images))
	for i, img := range images {
		if img.Format != pass.Attachments[i].Format {
			err := fmt.Errorf("render target for `%s`: image `%s` is %s, attachment %d wants %s: %w",
				pass.Name, img.Name, img.Format, i, pass.Attachments[i].Format, core.ErrAttachmentMismatch)
			core.LogError(err.Error())
			return nil, err
		}
		if attachments[i], err = vr.images.Get(img.Handle); err != nil {
			return nil, fmt.Errorf("render target for `%s`: image `%s`: %w", pass.Name, img.Name, err)
		}
	}
	fb, err := FramebufferCreate(vr.context, rp, width, height, layers, attachments)
	if err != nil {
		return nil, err
	}
	return &metadata.Framebuffer{
		Handle: vr.framebuffers.Acquire(fb),
		Pass:   pass.Handle,
		Images: append([]*metadata.Image(nil), images...),
		Width:  width,
		Height: height,
		Layers: max(layers, 1),
	}, nil
}

func (vr *VulkanRenderer) RenderTargetDestroy(target *metadata.Framebuffer) error {
	fb, err := vr.framebuffers.Release(target.Handle)
	if err != nil {
		return fmt.Errorf("render target: %w", err)
	}
	fb.Destroy(vr.context)
	return nil
}

func (vr *VulkanRenderer) PipelineCreate(desc *metadata.PipelineDescription) (*metadata.Pipeline, error) {
	if desc.RenderPass == nil {
		return nil, fmt.Errorf("pipeline `%s`: no render pass", desc.Name)
	}
	rp, err := vr.renderpasses.Get(desc.RenderPass.Handle)
	if err != nil {
		return nil, fmt.Errorf("pipeline `%s`: render pass `%s`: %w", desc.Name, desc.RenderPass.Name, err)
	}
	if !desc.VertexLayout.Validate() {
		err := fmt.Errorf("pipeline `%s`: %w", desc.Name, core.ErrInvalidVertexLayout)
		core.LogError(err.Error())
		return nil, err
	}
	if len(desc.Stages) == 0 {
		err := fmt.Errorf("pipeline `%s`: no shader stages", desc.Name)
		core.LogError(err.Error())
		return nil, err
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(desc.Stages))
	for i, m := range desc.Stages {
		s, err := vr.modules.Get(m.Handle)
		if err != nil {
			return nil, fmt.Errorf("pipeline `%s`: shader `%s`: %w", desc.Name, m.Name, err)
		}
		stages[i] = s.ShaderStageCreateInfo
	}
	layouts := make([]vk.DescriptorSetLayout, len(desc.DescriptorSetLayouts))
	for i, l := range desc.DescriptorSetLayouts {
		vl, err := vr.layouts.Get(l.Handle)
		if err != nil {
			return nil, fmt.Errorf("pipeline `%s`: descriptor set %d: %w", desc.Name, i, err)
		}
		layouts[i] = vl.Handle
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(desc.VertexLayout.Attributes))
	for i, a := range desc.VertexLayout.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vulkanAttributeFormat(a.Type),
			Offset:   a.Offset,
		}
	}

	p, err := NewGraphicsPipeline(vr.context, &VulkanPipelineConfig{
		Name:                 desc.Name,
		Renderpass:           rp,
		Subpass:              desc.Subpass,
		Stride:               desc.VertexLayout.Stride,
		Attributes:           attributes,
		DescriptorSetLayouts: layouts,
		Stages:               stages,
		CullMode:             desc.Config.CullMode,
		IsWireframe:          desc.Config.IsWireframe,
		ShaderFlags:          desc.Config.ShaderFlags,
		PushConstantSize:     desc.Config.PushConstantSize,
	})
	if err != nil {
		return nil, err
	}
	return &metadata.Pipeline{
		Handle:           vr.pipelines.Acquire(p),
		Name:             desc.Name,
		RenderPass:       desc.RenderPass.Handle,
		Subpass:          desc.Subpass,
		SetCount:         uint32(len(layouts)),
		PushConstantSize: p.PushConstantSize,
	}, nil
}

func (vr *VulkanRenderer) PipelineDestroy(pipeline *metadata.Pipeline) error {
	p, err := vr.pipelines.Release(pipeline.Handle)
	if err != nil {
		return fmt.Errorf("pipeline `%s`: %w", pipeline.Name, err)
	}
	p.Destroy(vr.context)
	return nil
}

func (vr *VulkanRenderer) ImageCreate(config *metadata.ImageConfig) (*metadata.Image, error) {
	image, err := ImageCreate(vr.context, config)
	if err != nil {
		return nil, err
	}
	// Images only ever sampled are made valid for sampling right away.
	attachment := metadata.ImageUsageColorAttachment | metadata.ImageUsageDepthAttachment
	if config.Usage.Has(metadata.ImageUsageSampled) && config.Usage&attachment == 0 {
		if err := vr.singleUse(func(cmd vk.CommandBuffer) {
			image.TransitionLayout(cmd, vk.ImageLayoutShaderReadOnlyOptimal)
		}); err != nil {
			image.Destroy(vr.context)
			return nil, err
		}
	}

	img := &metadata.Image{ImageConfig: *config}
	img.Layers = max(img.Layers, 1)
	img.Samples = max(img.Samples, 1)
	img.Handle = vr.images.Acquire(image)
	return img, nil
}

func (vr *VulkanRenderer) ImageDestroy(image *metadata.Image) error {
	vi, err := vr.images.Get(image.Handle)
	if err != nil {
		return fmt.Errorf("image `%s`: %w", image.Name, err)
	}
	if !vi.owned {
		return fmt.Errorf("image `%s` belongs to the swapchain", image.Name)
	}
	if _, err := vr.images.Release(image.Handle); err != nil {
		return fmt.Errorf("image `%s`: %w", image.Name, err)
	}
	vi.Destroy(vr.context)
	return nil
}

func (vr *VulkanRenderer) ImageWrite(image *metadata.Image, data []byte) error {
	vi, err := vr.images.Get(image.Handle)
	if err != nil {
		return fmt.Errorf("image `%s`: %w", image.Name, err)
	}
	if image.Format.IsDepth() {
		return fmt.Errorf("image `%s`: depth images cannot be written", image.Name)
	}
	if want := int(image.Width*image.Height) * image.Format.Size(); len(data) != want {
		err := fmt.Errorf("image `%s`: %d bytes for %d expected", image.Name, len(data), want)
		core.LogError(err.Error())
		return err
	}

	staging, err := BufferCreate(vr.context, uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	defer staging.Destroy(vr.context)
	if err := staging.LoadData(vr.context, 0, data); err != nil {
		return err
	}
	return vr.singleUse(func(cmd vk.CommandBuffer) {
		vi.TransitionLayout(cmd, vk.ImageLayoutTransferDstOptimal)
		vi.CopyFromBuffer(cmd, staging)
		vi.TransitionLayout(cmd, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

func (vr *VulkanRenderer) singleUse(record func(cmd vk.CommandBuffer)) error {
	pool := vr.context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(vr.context, pool)
	if err != nil {
		return err
	}
	record(cb.Handle)
	return cb.EndSingleUse(vr.context, pool, vr.context.Device.GraphicsQueue)
}

func (vr *VulkanRenderer) RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (*metadata.RenderBuffer, error) {
	b, err := BufferCreate(vr.context, totalSize, vulkanBufferUsage(renderbufferType))
	if err != nil {
		return nil, err
	}
	return &metadata.RenderBuffer{
		Handle:           vr.buffers.Acquire(b),
		RenderBufferType: renderbufferType,
		TotalSize:        totalSize,
	}, nil
}

func (vr *VulkanRenderer) RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	b, err := vr.buffers.Get(buffer.Handle)
	if err != nil {
		return fmt.Errorf("render buffer: %w", err)
	}
	return b.LoadData(vr.context, offset, data)
}

func (vr *VulkanRenderer) RenderBufferDestroy(buffer *metadata.RenderBuffer) error {
	b, err := vr.buffers.Release(buffer.Handle)
	if err != nil {
		return fmt.Errorf("render buffer: %w", err)
	}
	b.Destroy(vr.context)
	return nil
}

// CommandBufferBegin starts recording into the single frame command buffer.
// The previous frame must have been submitted.
func (vr *VulkanRenderer) CommandBufferBegin() (renderer.CommandBuffer, error) {
	cb := vr.commandBuffer
	if cb == nil {
		return nil, fmt.Errorf("vulkan renderer: %w", core.ErrNotInitialized)
	}
	switch cb.State {
	case COMMAND_BUFFER_STATE_RECORDING, COMMAND_BUFFER_STATE_IN_RENDER_PASS, COMMAND_BUFFER_STATE_RECORDING_ENDED:
		err := fmt.Errorf("command buffer begun again before submit: %w", core.ErrFrameInProgress)
		core.LogError(err.Error())
		return nil, err
	}
	cb.Reset()
	if err := cb.Begin(true, false, false); err != nil {
		return nil, err
	}
	return cb, nil
}

func (vr *VulkanRenderer) Submit(commandBuffer renderer.CommandBuffer) error {
	cb, ok := commandBuffer.(*VulkanCommandBuffer)
	if !ok || cb != vr.commandBuffer {
		return fmt.Errorf("foreign command buffer %T", commandBuffer)
	}
	if err := cb.End(); err != nil {
		// nothing of a broken recording reaches the queue
		cb.Reset()
		return err
	}
	if err := vr.inFlight.FenceReset(vr.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	err := lockPool.SafeQueueCall(uint32(vr.context.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vr.inFlight.Handle); res != vk.Success {
			return fmt.Errorf("vkQueueSubmit failed with result: %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		cb.Reset()
		return err
	}
	cb.UpdateSubmitted()

	return vr.inFlight.FenceWait(vr.context, vk.MaxUint64)
}

// SurfaceFormat is the format of the images AcquireSurfaceImage returns.
func (vr *VulkanRenderer) SurfaceFormat() metadata.Format {
	return vr.config.SurfaceFormat
}

// AcquireSurfaceImage returns the next presentable image. It fails when the
// renderer runs without a window.
func (vr *VulkanRenderer) AcquireSurfaceImage() (*metadata.Image, error) {
	sc := vr.context.Swapchain
	if sc == nil {
		return nil, fmt.Errorf("vulkan renderer has no surface")
	}
	image, err := sc.AcquireNextImage(vr.context)
	if err != nil {
		return nil, err
	}
	return vr.surfaceImages[image], nil
}

func (vr *VulkanRenderer) Present(image *metadata.Image) error {
	sc := vr.context.Swapchain
	if sc == nil {
		return fmt.Errorf("vulkan renderer has no surface")
	}
	vi, err := vr.images.Get(image.Handle)
	if err != nil {
		return fmt.Errorf("present `%s`: %w", image.Name, err)
	}
	return sc.Present(vr.context, vi)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
