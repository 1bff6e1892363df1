package systems

import (
	"fmt"
	stdmath "math"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

type DirectionalLight struct {
	Direction    math.Vec3
	Color        math.Vec3
	Intensity    float32
	CastsShadows bool
}

type PointLight struct {
	Position  math.Vec3
	Color     math.Vec3
	Intensity float32
	Range     float32
}

/** @brief Configuration for the light system. */
type LightSystemConfig struct {
	/** @brief Number of shadow cascades, between 1 and shaders.MaxCascades. */
	Cascades uint32
	/**
	 * @brief Blend between uniform (0) and logarithmic (1) cascade splits.
	 */
	SplitLambda float32
	Ambient     math.Vec3
}

/**
 * @brief Holds the scene lights and derives the uniform data of the Lights,
 * CascadedCameraInfo and ShadowMaskInfo families from them.
 */
type LightSystem struct {
	Config *LightSystemConfig

	mu          sync.RWMutex
	directional *DirectionalLight
	// insertion order is kept so the uploaded light array is stable
	pointNames []string
	points     map[string]PointLight
}

func NewLightSystem(config *LightSystemConfig) (*LightSystem, error) {
	if config.Cascades == 0 || config.Cascades > shaders.MaxCascades {
		err := fmt.Errorf("NewLightSystem - config.Cascades must be between 1 and %d", shaders.MaxCascades)
		core.LogError(err.Error())
		return nil, err
	}
	if config.SplitLambda < 0 || config.SplitLambda > 1 {
		err := fmt.Errorf("NewLightSystem - config.SplitLambda must be between 0 and 1")
		core.LogError(err.Error())
		return nil, err
	}
	return &LightSystem{
		Config: config,
		points: make(map[string]PointLight),
	}, nil
}

func (ls *LightSystem) SetDirectional(light DirectionalLight) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	light.Direction = light.Direction.Normalized()
	ls.directional = &light
}

func (ls *LightSystem) Directional() (DirectionalLight, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if ls.directional == nil {
		return DirectionalLight{}, false
	}
	return *ls.directional, true
}

// CastsShadows reports whether the Shadow stage has anything to render for.
func (ls *LightSystem) CastsShadows() bool {
	l, ok := ls.Directional()
	return ok && l.CastsShadows
}

/**
 * @brief Adds or replaces a point light.
 * @return An error when the light would exceed the capacity of the Lights block.
 */
func (ls *LightSystem) AddPointLight(name string, light PointLight) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if _, ok := ls.points[name]; !ok {
		if ls.countLocked()+1 > shaders.MaxLights {
			err := fmt.Errorf("point light `%s`: at most %d lights are supported", name, shaders.MaxLights)
			core.LogError(err.Error())
			return err
		}
		ls.pointNames = append(ls.pointNames, name)
	}
	ls.points[name] = light
	return nil
}

func (ls *LightSystem) RemovePointLight(name string) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if _, ok := ls.points[name]; !ok {
		return false
	}
	delete(ls.points, name)
	for i, n := range ls.pointNames {
		if n == name {
			ls.pointNames = append(ls.pointNames[:i], ls.pointNames[i+1:]...)
			break
		}
	}
	return true
}

func (ls *LightSystem) countLocked() int {
	n := len(ls.points)
	if ls.directional != nil {
		n++
	}
	return n
}

// Lights returns the Lights block: the directional light first, then the point lights.
func (ls *LightSystem) Lights() shaders.LightsLayout {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	var out shaders.LightsLayout
	out.SetAmbient(ls.Config.Ambient)
	i := 0
	if d := ls.directional; d != nil {
		l := &out.Lights[i]
		l.SetType(shaders.DirectionalLight)
		l.SetDirection(d.Direction)
		l.SetColor(d.Color)
		l.SetIntensity(d.Intensity)
		l.SetCastsShadows(d.CastsShadows)
		i++
	}
	for _, name := range ls.pointNames {
		p := ls.points[name]
		l := &out.Lights[i]
		l.SetType(shaders.PointLight)
		l.SetPosition(p.Position)
		l.SetColor(p.Color)
		l.SetIntensity(p.Intensity)
		l.SetRange(p.Range)
		i++
	}
	out.SetCount(int32(i))
	return out
}

/**
 * @brief Splits the camera range [near, far] into cascades; element i is the
 * far distance of cascade i.
 */
func (ls *LightSystem) CascadeSplits(near, far float32) []float32 {
	n := int(ls.Config.Cascades)
	splits := make([]float32, n)
	ratio := far / near
	for i := 0; i < n; i++ {
		p := float32(i+1) / float32(n)
		log := near * float32(stdmath.Pow(float64(ratio), float64(p)))
		uniform := near + (far-near)*p
		splits[i] = ls.Config.SplitLambda*log + (1-ls.Config.SplitLambda)*uniform
	}
	splits[n-1] = far
	return splits
}

/**
 * @brief Computes the light space matrix of every cascade for the camera.
 * Each cascade is an orthographic box around the bounding sphere of its
 * slice of the view frustum, so the box does not change size as the camera
 * rotates. Without a directional light the result is zero and the shadow
 * mask has a count of 0.
 */
func (ls *LightSystem) Cascades(camera *components.Camera, bias, strength float32) (shaders.CascadeLayout, shaders.ShadowMaskLayout) {
	var cascades shaders.CascadeLayout
	var mask shaders.ShadowMaskLayout
	mask.SetBias(bias)
	mask.SetStrength(strength)

	light, ok := ls.Directional()
	if !ok || !light.CastsShadows {
		return cascades, mask
	}

	splits := ls.CascadeSplits(camera.NearClip, camera.FarClip)
	view := camera.GetView()
	near := camera.NearClip
	for i, far := range splits {
		vp := view.Mul(camera.GetProjectionRange(near, far))
		cascades.SetViewProjection(i, lightViewProjection(vp.Inverse(), light.Direction))
		mask.SetSplit(i, far)
		near = far
	}
	mask.SetCount(int32(len(splits)))
	return cascades, mask
}

func lightViewProjection(inverseViewProjection math.Mat4, direction math.Vec3) math.Mat4 {
	var corners [8]math.Vec3
	i := 0
	for _, x := range []float32{-1, 1} {
		for _, y := range []float32{-1, 1} {
			for _, z := range []float32{0, 1} {
				corners[i] = math.NewVec3(x, y, z).Transform(inverseViewProjection)
				i++
			}
		}
	}

	center := math.NewVec3Zero()
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.MulScalar(1.0 / 8.0)

	radius := float32(0)
	for _, c := range corners {
		radius = max(radius, c.Sub(center).Length())
	}
	// quantize so the box only changes when the slice really grows
	radius = float32(stdmath.Ceil(float64(radius)*16) / 16)

	up := math.NewVec3Up()
	if stdmath.Abs(float64(direction.Dot(up))) > 0.99 {
		up = math.NewVec3(0, 0, 1)
	}
	eye := center.Sub(direction.MulScalar(radius))
	lightView := math.NewMat4LookAt(eye, center, up)
	ortho := math.NewMat4Orthographic(-radius, radius, -radius, radius, 0, 2*radius)
	return lightView.Mul(ortho)
}
