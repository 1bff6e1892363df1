package systems

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/passes"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

/** @brief Configuration for the frame system. */
type FrameSystemConfig struct {
	Passes passes.Config
	/**
	 * @brief The shader sets used at each stage. Their pipelines are built
	 * at Initialize, so a misspelled name fails at start-up. Screen space
	 * techniques listed for a stage are drawn once per frame over the whole
	 * target when the stage begins.
	 */
	Techniques map[metadata.FrameStage][]string
	Exposure   float32
	Gamma      float32
	// ShadowBias is the depth bias applied when comparing against the shadow map.
	ShadowBias     float32
	ShadowStrength float32
}

func DefaultFrameSystemConfig() *FrameSystemConfig {
	return &FrameSystemConfig{
		Passes: passes.DefaultConfig(),
		Techniques: map[metadata.FrameStage][]string{
			metadata.FrameStageShadow:      {shaders.ShaderSetShadow},
			metadata.FrameStageForward:     {shaders.ShaderSetPbr, shaders.ShaderSetWireframe},
			metadata.FrameStagePostProcess: {shaders.ShaderSetPpExposure},
			metadata.FrameStageResolve:     {shaders.ShaderSetPpResolveHdr},
		},
		Exposure:       1,
		Gamma:          2.2,
		ShadowBias:     0.005,
		ShadowStrength: 1,
	}
}

/**
 * @brief What a drawable asks the frame system to record. Sets override the
 * frame level descriptor sets of the same family for this draw only.
 */
type DrawCall struct {
	ShaderSet string
	Geometry  *components.Geometry
	Transform math.Mat4
	Sets      map[shaders.DescriptorSetFamily]*metadata.DescriptorSet
	// Instances defaults to 1.
	Instances uint32
}

/**
 * @brief Owns the render passes, the offscreen images between them and the
 * frame level uniform data, and walks every frame through the stages
 * Shadow, Forward, PostProcess, Resolve and Assemble. Not safe for
 * concurrent use: one goroutine builds frames.
 */
type FrameSystem struct {
	Config  *FrameSystemConfig
	id      uuid.UUID
	device  renderer.RendererBackend
	shaders *ShaderSystem
	lights  *LightSystem
	metrics *core.Metrics
	clock   *core.Clock

	shadow      *passes.ShadowPass
	forward     *passes.ForwardPass
	postProcess *passes.PostProcessPass
	resolve     *passes.ResolvePass
	assemble    *passes.AssemblePass

	images       map[string]*metadata.Image
	buffers      map[string]*metadata.RenderBuffer
	framebuffers map[metadata.FrameStage]*metadata.Framebuffer
	targets      map[core.Handle]*metadata.Framebuffer
	quad         *components.Geometry
	material     *components.Material
	stageSets    map[metadata.FrameStage]map[shaders.DescriptorSetFamily]*metadata.DescriptorSet

	current     *Frame
	initialized bool
}

// Offscreen images and uniform buffers, by role.
const (
	imageShadowMap   = "shadow_map"
	imageHDRColour   = "hdr_colour"
	imageDepth       = "depth"
	imageExposure    = "exposure"
	imageLDRColour   = "ldr_colour"
	imageShadowEmpty = "shadow_map_empty"
	imageWhite       = "white"

	bufferCamera      = "camera"
	bufferLights      = "lights"
	bufferCascades    = "cascades"
	bufferShadowMask  = "shadow_mask"
	bufferPostProcess = "post_process"
)

func NewFrameSystem(config *FrameSystemConfig, device renderer.RendererBackend, shaderSystem *ShaderSystem, lightSystem *LightSystem) (*FrameSystem, error) {
	if device == nil || shaderSystem == nil || lightSystem == nil {
		err := fmt.Errorf("NewFrameSystem - device, shader system and light system are required")
		core.LogError(err.Error())
		return nil, err
	}
	if config.Passes.Width == 0 || config.Passes.Height == 0 {
		err := fmt.Errorf("NewFrameSystem - width and height must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.Passes.Cascades != lightSystem.Config.Cascades {
		err := fmt.Errorf("NewFrameSystem - %d shadow map layers for %d light cascades", config.Passes.Cascades, lightSystem.Config.Cascades)
		core.LogError(err.Error())
		return nil, err
	}
	for stage := range config.Techniques {
		if stage.IsTerminal() {
			err := fmt.Errorf("NewFrameSystem - stage %s takes no shader sets", stage)
			core.LogError(err.Error())
			return nil, err
		}
	}
	return &FrameSystem{
		Config:  config,
		id:      uuid.New(),
		device:  device,
		shaders: shaderSystem,
		lights:  lightSystem,
		metrics: core.NewMetrics(),
		clock:   core.NewClock(),
	}, nil
}

// ID names the images of this frame system on the device.
func (fs *FrameSystem) ID() uuid.UUID {
	return fs.id
}

// ImageName is the device name of the offscreen image with the given role.
func (fs *FrameSystem) ImageName(role string) string {
	return fmt.Sprintf("%s-%s", role, fs.id)
}

func (fs *FrameSystem) Metrics() *core.Metrics {
	return fs.metrics
}

func (fs *FrameSystem) Cascades() uint32 {
	return fs.Config.Passes.Cascades
}

// Image returns one of the offscreen images, e.g. "ldr_colour" for the resolved frame.
func (fs *FrameSystem) Image(role string) *metadata.Image {
	return fs.images[role]
}

/**
 * @brief Creates every device object the frame needs. On failure everything
 * created so far is released and the system stays uninitialized.
 */
func (fs *FrameSystem) Initialize() error {
	if fs.initialized {
		return nil
	}
	// Unknown names are configuration errors; they fail here, before anything is allocated.
	names := fs.techniqueNames()
	for _, name := range names {
		if !fs.shaders.library.HasShaderSet(name) {
			err := fmt.Errorf("frame system: shader set `%s`: %w", name, core.ErrShaderSetNotFound)
			core.LogError(err.Error())
			return err
		}
	}
	if err := fs.shaders.Prewarm(names...); err != nil {
		return err
	}

	if err := fs.initialize(); err != nil {
		if rerr := fs.release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		core.LogError("frame system initialization failed: %s", err.Error())
		return err
	}
	fs.initialized = true
	core.LogInfo("frame system %s initialized (%dx%d, %d samples, %d cascades)",
		fs.id, fs.Config.Passes.Width, fs.Config.Passes.Height, fs.Config.Passes.Samples, fs.Config.Passes.Cascades)
	return nil
}

func (fs *FrameSystem) techniqueNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, stage := range metadata.FrameStages {
		for _, name := range fs.Config.Techniques[stage] {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func (fs *FrameSystem) initialize() error {
	fs.images = make(map[string]*metadata.Image)
	fs.buffers = make(map[string]*metadata.RenderBuffer)
	fs.framebuffers = make(map[metadata.FrameStage]*metadata.Framebuffer)
	fs.targets = make(map[core.Handle]*metadata.Framebuffer)

	if err := fs.createPasses(); err != nil {
		return err
	}
	if err := fs.createImages(); err != nil {
		return err
	}
	if err := fs.createFramebuffers(); err != nil {
		return err
	}
	if err := fs.createBuffers(); err != nil {
		return err
	}
	if err := fs.createStageSets(); err != nil {
		return err
	}

	for _, stage := range metadata.FrameStages {
		for _, name := range fs.Config.Techniques[stage] {
			if _, err := fs.pipeline(stage, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fs *FrameSystem) createPasses() error {
	var err error
	c := fs.Config.Passes
	if fs.shadow, err = passes.NewShadowPass(fs.device, c); err != nil {
		return err
	}
	if fs.forward, err = passes.NewForwardPass(fs.device, c); err != nil {
		return err
	}
	if fs.postProcess, err = passes.NewPostProcessPass(fs.device, c); err != nil {
		return err
	}
	if fs.resolve, err = passes.NewResolvePass(fs.device, c); err != nil {
		return err
	}
	if fs.assemble, err = passes.NewAssemblePass(fs.device, c); err != nil {
		return err
	}
	return nil
}

func (fs *FrameSystem) createImage(role string, config metadata.ImageConfig) error {
	config.Name = fs.ImageName(role)
	img, err := fs.device.ImageCreate(&config)
	if err != nil {
		return fmt.Errorf("image `%s`: %w", role, err)
	}
	fs.images[role] = img
	return nil
}

func (fs *FrameSystem) createImages() error {
	c := fs.Config.Passes
	sampled := metadata.ImageUsageSampled
	configs := []struct {
		role   string
		config metadata.ImageConfig
	}{
		{imageShadowMap, fs.shadow.ImageConfig(0, "", fs.shadow.Size, fs.shadow.Size, sampled)},
		{imageHDRColour, fs.forward.ImageConfig(0, "", c.Width, c.Height, sampled)},
		{imageDepth, fs.forward.ImageConfig(1, "", c.Width, c.Height, sampled)},
		{imageExposure, fs.postProcess.ImageConfig(0, "", c.Width, c.Height, sampled)},
		{imageLDRColour, fs.resolve.ImageConfig(0, "", c.Width, c.Height, 0)},
		// bound while the shadow map itself is being rendered
		{imageShadowEmpty, metadata.ImageConfig{Format: c.DepthFormat, Width: 1, Height: 1, Layers: fs.shadow.Cascades, Samples: 1, Usage: sampled}},
		{imageWhite, metadata.ImageConfig{Format: metadata.FormatRGBA8Unorm, Width: 1, Height: 1, Layers: 1, Samples: 1, Usage: sampled | metadata.ImageUsageTransferDst}},
	}
	for _, ic := range configs {
		if err := fs.createImage(ic.role, ic.config); err != nil {
			return err
		}
	}
	return fs.device.ImageWrite(fs.images[imageWhite], []byte{0xff, 0xff, 0xff, 0xff})
}

func (fs *FrameSystem) createFramebuffers() error {
	targets := []struct {
		stage  metadata.FrameStage
		pass   *passes.RenderPass
		images []*metadata.Image
	}{
		{metadata.FrameStageShadow, fs.shadow.RenderPass, []*metadata.Image{fs.images[imageShadowMap]}},
		{metadata.FrameStageForward, fs.forward.RenderPass, []*metadata.Image{fs.images[imageHDRColour], fs.images[imageDepth]}},
		{metadata.FrameStagePostProcess, fs.postProcess.RenderPass, []*metadata.Image{fs.images[imageExposure]}},
		{metadata.FrameStageResolve, fs.resolve.RenderPass, []*metadata.Image{fs.images[imageLDRColour]}},
	}
	for _, t := range targets {
		fb, err := t.pass.GetFramebuffer(t.images...)
		if err != nil {
			return err
		}
		fs.framebuffers[t.stage] = fb
	}
	return nil
}

func (fs *FrameSystem) createBuffers() error {
	sizes := map[string]uintptr{
		bufferCamera:      unsafe.Sizeof(shaders.CameraLayout{}),
		bufferLights:      unsafe.Sizeof(shaders.LightsLayout{}),
		bufferCascades:    unsafe.Sizeof(shaders.CascadeLayout{}),
		bufferShadowMask:  unsafe.Sizeof(shaders.ShadowMaskLayout{}),
		bufferPostProcess: unsafe.Sizeof(shaders.PostProcessLayout{}),
	}
	for name, size := range sizes {
		buf, err := fs.device.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_UNIFORM, uint64(size))
		if err != nil {
			return fmt.Errorf("uniform buffer `%s`: %w", name, err)
		}
		fs.buffers[name] = buf
	}

	vertices, indices := shaders.FullScreenQuad()
	quad, err := components.NewScreenGeometry(fs.device, "fullscreen_quad", vertices, indices)
	if err != nil {
		return err
	}
	fs.quad = quad
	return nil
}

func (fs *FrameSystem) createStageSets() error {
	ubo := func(name string) metadata.DescriptorWrite {
		b := fs.buffers[name]
		return metadata.DescriptorWrite{Binding: 0, Buffer: b, Range: b.TotalSize}
	}
	sampler := func(binding uint32, role string) metadata.DescriptorWrite {
		return metadata.DescriptorWrite{Binding: binding, Image: fs.images[role]}
	}

	sets := []struct {
		name   string
		family shaders.DescriptorSetFamily
		writes []metadata.DescriptorWrite
	}{
		{"camera", shaders.CameraData, []metadata.DescriptorWrite{ubo(bufferCamera)}},
		{"lights", shaders.Lights, []metadata.DescriptorWrite{ubo(bufferLights)}},
		{"cascades", shaders.CascadedCameraInfo, []metadata.DescriptorWrite{ubo(bufferCascades)}},
		{"shadow_mask", shaders.ShadowMaskInfo, []metadata.DescriptorWrite{ubo(bufferShadowMask), sampler(1, imageShadowMap)}},
		{"shadow_mask_empty", shaders.ShadowMaskInfo, []metadata.DescriptorWrite{ubo(bufferShadowMask), sampler(1, imageShadowEmpty)}},
		{"exposure", shaders.PostProcessData, []metadata.DescriptorWrite{ubo(bufferPostProcess), sampler(1, imageHDRColour)}},
		{"resolve", shaders.PostProcessData, []metadata.DescriptorWrite{ubo(bufferPostProcess), sampler(1, imageExposure)}},
		{"ms_colour", shaders.MultisampledColor, []metadata.DescriptorWrite{sampler(0, imageHDRColour)}},
		{"ms_colour_depth", shaders.MultisampledColorAndDepth, []metadata.DescriptorWrite{sampler(0, imageHDRColour), sampler(1, imageDepth)}},
	}
	created := make(map[string]*metadata.DescriptorSet, len(sets))
	for _, s := range sets {
		set, err := fs.shaders.AllocateDescriptorSet(s.family, s.writes)
		if err != nil {
			return err
		}
		created[s.name] = set
	}

	fs.material = components.NewMaterial("default")
	for i := range fs.material.Textures {
		fs.material.Textures[i] = fs.images[imageWhite]
	}
	if err := fs.material.Upload(fs.device, fs.shaders); err != nil {
		return err
	}
	material := fs.material.Sets()

	fs.stageSets = map[metadata.FrameStage]map[shaders.DescriptorSetFamily]*metadata.DescriptorSet{
		metadata.FrameStageShadow: {
			shaders.CascadedCameraInfo: created["cascades"],
			shaders.ShadowMaskInfo:     created["shadow_mask_empty"],
		},
		metadata.FrameStageForward: {
			shaders.CameraData:         created["camera"],
			shaders.Lights:             created["lights"],
			shaders.ShadowMaskInfo:     created["shadow_mask"],
			shaders.CascadedCameraInfo: created["cascades"],
			shaders.MaterialTextures:   material[shaders.MaterialTextures],
			shaders.MaterialData:       material[shaders.MaterialData],
		},
		metadata.FrameStagePostProcess: {
			shaders.CameraData:                created["camera"],
			shaders.PostProcessData:           created["exposure"],
			shaders.MultisampledColor:         created["ms_colour"],
			shaders.MultisampledColorAndDepth: created["ms_colour_depth"],
		},
		// resolve only sees the exposed image, never the multisampled one
		metadata.FrameStageResolve: {
			shaders.CameraData:      created["camera"],
			shaders.PostProcessData: created["resolve"],
		},
		metadata.FrameStageAssemble: {
			shaders.CameraData: created["camera"],
		},
	}
	return nil
}

// pass returns the render pass of a stage, nil for Submitted.
func (fs *FrameSystem) pass(stage metadata.FrameStage) *passes.RenderPass {
	switch stage {
	case metadata.FrameStageShadow:
		return fs.shadow.RenderPass
	case metadata.FrameStageForward:
		return fs.forward.RenderPass
	case metadata.FrameStagePostProcess:
		return fs.postProcess.RenderPass
	case metadata.FrameStageResolve:
		return fs.resolve.RenderPass
	case metadata.FrameStageAssemble:
		return fs.assemble.RenderPass
	}
	return nil
}

func (fs *FrameSystem) pipeline(stage metadata.FrameStage, name string) (*ShaderPipeline, error) {
	p := fs.pass(stage)
	if p == nil {
		return nil, fmt.Errorf("pipeline `%s` at stage %s: %w", name, stage, core.ErrStageMismatch)
	}
	return fs.shaders.GetPipeline(name, metadata.DefaultPipelineConfig(), p.RenderPass, 0)
}

// ReleaseTarget destroys the framebuffer made for a target image, e.g. when a swapchain is rebuilt.
func (fs *FrameSystem) ReleaseTarget(target *metadata.Image) error {
	if target == nil {
		return nil
	}
	fb, ok := fs.targets[target.Handle]
	if !ok {
		return nil
	}
	delete(fs.targets, target.Handle)
	return fs.device.RenderTargetDestroy(fb)
}

func (fs *FrameSystem) targetFramebuffer(target *metadata.Image) (*metadata.Framebuffer, error) {
	if fb, ok := fs.targets[target.Handle]; ok {
		return fb, nil
	}
	fb, err := fs.assemble.GetFramebuffer(target)
	if err != nil {
		return nil, err
	}
	fs.targets[target.Handle] = fb
	return fb, nil
}

// encodeGamma is the gamma the resolve shader applies. The blit into an sRGB
// surface encodes on its own, so the shader must not.
func (fs *FrameSystem) encodeGamma() float32 {
	if fs.Config.Passes.SurfaceFormat.IsSRGB() {
		return 1
	}
	return fs.Config.Gamma
}

func (fs *FrameSystem) upload(camera *components.Camera) error {
	var cam shaders.CameraLayout
	cam.SetViewProjection(camera.GetViewProjection())
	cam.SetView(camera.GetView())
	cam.SetProjection(camera.GetProjection())
	cam.SetPosition(camera.GetPosition())
	cam.SetClip(camera.NearClip, camera.FarClip)

	lights := fs.lights.Lights()
	cascades, mask := fs.lights.Cascades(camera, fs.Config.ShadowBias, fs.Config.ShadowStrength)

	var pp shaders.PostProcessLayout
	pp.SetExposure(fs.Config.Exposure)
	pp.SetGamma(fs.encodeGamma())
	pp.SetSamples(int32(max(fs.Config.Passes.Samples, 1)))

	uploads := []struct {
		name string
		data []byte
	}{
		{bufferCamera, shaders.Bytes(&cam)},
		{bufferLights, shaders.Bytes(&lights)},
		{bufferCascades, shaders.Bytes(&cascades)},
		{bufferShadowMask, shaders.Bytes(&mask)},
		{bufferPostProcess, shaders.Bytes(&pp)},
	}
	for _, u := range uploads {
		if err := fs.device.RenderBufferLoadRange(fs.buffers[u.name], 0, u.data); err != nil {
			return fmt.Errorf("uniform buffer `%s`: %w", u.name, err)
		}
	}
	return nil
}

/**
 * @brief Starts a frame that ends in target, seen from camera. The frame
 * starts in the Shadow stage with the shadow pass begun.
 *
 * @param target The image the Assemble pass writes, e.g. a swapchain image.
 * @return The frame; core.ErrFrameInProgress if the previous frame was not submitted.
 */
func (fs *FrameSystem) BeginFrame(target *metadata.Image, camera *components.Camera) (*Frame, error) {
	if !fs.initialized {
		return nil, fmt.Errorf("frame system: %w", core.ErrNotInitialized)
	}
	if fs.current != nil {
		err := fmt.Errorf("frame %s: %w", fs.current.ID, core.ErrFrameInProgress)
		core.LogError(err.Error())
		return nil, err
	}
	if target == nil || camera == nil {
		return nil, fmt.Errorf("frame system: a target image and a camera are required")
	}

	fb, err := fs.targetFramebuffer(target)
	if err != nil {
		return nil, err
	}
	if err := fs.upload(camera); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	cmd, err := fs.device.CommandBufferBegin()
	if err != nil {
		err = fmt.Errorf("frame system: command buffer: %w", err)
		core.LogError(err.Error())
		return nil, err
	}

	f := &Frame{
		ID:      uuid.New(),
		fs:      fs,
		cmd:     cmd,
		target:  fb,
		image:   target,
		stage:   metadata.FrameStageShadow,
		frustum: camera.Frustum(),
		draws:   make(map[metadata.FrameStage]int),
	}
	fs.current = f
	fs.clock.Start()
	fs.beginStage(f)
	return f, nil
}

func (fs *FrameSystem) framebuffer(f *Frame) *metadata.Framebuffer {
	if f.stage == metadata.FrameStageAssemble {
		return f.target
	}
	return fs.framebuffers[f.stage]
}

// beginStage records the fixed work of the frame's current stage.
func (fs *FrameSystem) beginStage(f *Frame) {
	if f.stage == metadata.FrameStageAssemble {
		// the resolved image becomes the base the Assemble pass loads
		f.cmd.BlitImage(fs.images[imageLDRColour], f.image)
	}
	p := fs.pass(f.stage)
	f.cmd.BeginRenderPass(p.RenderPass, fs.framebuffer(f), p.ClearValues())

	for _, name := range fs.Config.Techniques[f.stage] {
		set, err := fs.shaders.GetShaderSet(name)
		if err != nil {
			continue
		}
		if set.Technique != shaders.TechniquePostProcess && set.Technique != shaders.TechniqueResolve {
			continue
		}
		_ = fs.Draw(f.stage, DrawCall{ShaderSet: name, Geometry: fs.quad, Transform: math.NewMat4Identity()})
	}
}

/**
 * @brief Records one draw of the current frame. The stage must be the
 * stage the frame is in. An unknown shader set or a family without a bound
 * descriptor set skips the draw: the error is logged and returned, and the
 * frame continues.
 */
func (fs *FrameSystem) Draw(stage metadata.FrameStage, call DrawCall) error {
	f := fs.current
	if f == nil {
		return fmt.Errorf("draw `%s`: no frame in progress: %w", call.ShaderSet, core.ErrStageMismatch)
	}
	if stage != f.stage {
		err := fmt.Errorf("draw `%s` at stage %s while the frame is at %s: %w", call.ShaderSet, stage, f.stage, core.ErrStageMismatch)
		core.LogWarn(err.Error())
		return err
	}
	if call.Geometry == nil || call.Geometry.VertexBuffer == nil {
		f.skipped++
		err := fmt.Errorf("draw `%s`: no geometry", call.ShaderSet)
		core.LogWarn(err.Error())
		return err
	}

	p, err := fs.pipeline(stage, call.ShaderSet)
	if err != nil {
		f.skipped++
		return err
	}

	sets := make([]*metadata.DescriptorSet, len(p.Families))
	for i, family := range p.Families {
		set := call.Sets[family]
		if set == nil {
			set = fs.stageSets[stage][family]
		}
		if set == nil {
			f.skipped++
			err := fmt.Errorf("draw `%s` at stage %s: %s: %w", call.ShaderSet, stage, family, core.ErrMissingDescriptorFamily)
			core.LogWarn(err.Error())
			return err
		}
		sets[i] = set
	}

	cmd := f.cmd
	cmd.BindPipeline(p.Pipeline)
	if len(sets) > 0 {
		cmd.BindDescriptorSets(p.Pipeline, 0, sets)
	}
	if p.Pipeline.PushConstantSize >= uint32(unsafe.Sizeof(shaders.ModelPushConstant{})) {
		var model shaders.ModelPushConstant
		model.SetModel(call.Transform)
		cmd.PushConstants(p.Pipeline, shaders.Bytes(&model))
	}

	g := call.Geometry
	instances := max(call.Instances, 1)
	cmd.BindVertexBuffer(g.VertexBuffer, 0)
	if g.Indexed() {
		cmd.BindIndexBuffer(g.IndexBuffer, 0)
		cmd.DrawIndexed(g.IndexCount, instances, 0, 0, 0)
	} else {
		cmd.Draw(g.VertexCount, instances, 0, 0)
	}
	f.draws[stage]++
	return nil
}

/**
 * @brief Builds and submits a whole frame: every stage is offered to every
 * instance, in insertion order. In the Forward stage instances whose bound
 * lies outside the camera frustum are skipped.
 */
func (fs *FrameSystem) RenderFrame(target *metadata.Image, camera *components.Camera, instances []RenderInstance) (*Frame, error) {
	f, err := fs.BeginFrame(target, camera)
	if err != nil {
		return nil, err
	}
	for {
		stage := f.Stage()
		for _, inst := range instances {
			if stage == metadata.FrameStageForward && !f.Visible(inst.Object.GetBound().Transform(inst.Transform)) {
				f.culled++
				continue
			}
			if got := inst.Object.Draw(stage, fs, fs.lights, inst.Transform); got != stage {
				core.LogWarn("drawable `%s` returned stage %s at %s", inst.Object.GetName(), got, stage)
			}
		}
		if stage == metadata.FrameStageAssemble {
			return f, f.Submit()
		}
		if _, err := f.Advance(); err != nil {
			return f, err
		}
	}
}

// Current returns the frame being built, nil between frames.
func (fs *FrameSystem) Current() *Frame {
	return fs.current
}

/**
 * @brief Waits for the device and destroys everything Initialize created.
 * An unsubmitted frame is dropped.
 */
func (fs *FrameSystem) Shutdown() error {
	if !fs.initialized {
		return nil
	}
	if fs.current != nil {
		core.LogWarn("frame %s dropped at shutdown in stage %s", fs.current.ID, fs.current.stage)
		fs.current.closed = true
		fs.current = nil
	}
	err := fs.device.WaitIdle()
	err = errors.Join(err, fs.release())
	fs.initialized = false
	if err != nil {
		core.LogError(err.Error())
	}
	return err
}

// release destroys in reverse creation order whatever exists.
func (fs *FrameSystem) release() error {
	var errs []error
	for h, fb := range fs.targets {
		errs = append(errs, fs.device.RenderTargetDestroy(fb))
		delete(fs.targets, h)
	}
	for stage, fb := range fs.framebuffers {
		errs = append(errs, fs.device.RenderTargetDestroy(fb))
		delete(fs.framebuffers, stage)
	}
	if fs.material != nil {
		errs = append(errs, fs.material.Destroy(fs.device))
		fs.material = nil
	}
	if fs.quad != nil {
		errs = append(errs, fs.quad.Destroy(fs.device))
		fs.quad = nil
	}
	for name, buf := range fs.buffers {
		errs = append(errs, fs.device.RenderBufferDestroy(buf))
		delete(fs.buffers, name)
	}
	for role, img := range fs.images {
		errs = append(errs, fs.device.ImageDestroy(img))
		delete(fs.images, role)
	}
	var rps []*passes.RenderPass
	if fs.assemble != nil {
		rps = append(rps, fs.assemble.RenderPass)
	}
	if fs.resolve != nil {
		rps = append(rps, fs.resolve.RenderPass)
	}
	if fs.postProcess != nil {
		rps = append(rps, fs.postProcess.RenderPass)
	}
	if fs.forward != nil {
		rps = append(rps, fs.forward.RenderPass)
	}
	if fs.shadow != nil {
		rps = append(rps, fs.shadow.RenderPass)
	}
	handles := make([]core.Handle, len(rps))
	for i, p := range rps {
		handles[i] = p.Handle
	}
	errs = append(errs, fs.shaders.DestroyPipelinesFor(handles...))
	for _, p := range rps {
		errs = append(errs, p.Destroy())
	}
	fs.shadow, fs.forward, fs.postProcess, fs.resolve, fs.assemble = nil, nil, nil, nil, nil
	fs.stageSets = nil
	return errors.Join(errs...)
}
