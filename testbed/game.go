package testbed

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/drawables"
	"github.com/spaghettifunk/lumen/engine/systems"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	geometries []*components.Geometry
	materials  []*components.Material
	bounds     []*drawables.Wireframe

	// cubes spin, the floor stays put
	cubes      []*math.Transform
	floor      *math.Transform
	instances  []systems.RenderInstance
	showBounds bool
}

type cube struct {
	name     string
	size     float32
	position math.Vec3
	color    math.Vec4
	metallic float32
}

var testCubes = []cube{
	{name: "test_cube", size: 10, position: math.NewVec3(0, 5, 0), color: math.NewVec4(0.8, 0.2, 0.2, 1), metallic: 0},
	{name: "test_cube_2", size: 5, position: math.NewVec3(12, 2.5, 1), color: math.NewVec4(0.2, 0.7, 0.3, 1), metallic: 0.5},
	{name: "test_cube_3", size: 2, position: math.NewVec3(-8, 1, 4), color: math.NewVec4(0.9, 0.8, 0.3, 1), metallic: 1},
}

func NewTestGame(cfg *config.Config) (*TestGame, error) {
	if cfg == nil {
		return nil, fmt.Errorf("testbed needs a configuration")
	}
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State:  &gameState{showBounds: cfg.Application.LogLevel == string(core.LogLevelDebug)},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(sm *systems.SystemManager, device renderer.RendererBackend) error {
	core.LogDebug("TestGame Initialize() called!")
	state := g.state()

	state.WorldCamera = sm.Cameras().GetDefault()
	state.WorldCamera.SetPosition(math.NewVec3(10.5, 12.0, 30.5))
	state.WorldCamera.SetEulerRotation(math.NewVec3(math.DegToRad(-15), 0, 0))

	sm.Lights().SetDirectional(systems.DirectionalLight{
		Direction:    math.NewVec3(-0.4, -1, -0.3).Normalized(),
		Color:        math.NewVec3(1, 0.96, 0.9),
		Intensity:    3,
		CastsShadows: true,
	})
	if err := sm.Lights().AddPointLight("fill", systems.PointLight{
		Position:  math.NewVec3(-10, 6, 10),
		Color:     math.NewVec3(0.4, 0.5, 1),
		Intensity: 40,
		Range:     30,
	}); err != nil {
		return err
	}

	floor, err := g.addBox(sm, device, "floor", math.Extents3D{
		Min: math.NewVec3(-40, -0.5, -40),
		Max: math.NewVec3(40, 0, 40),
	}, math.NewVec4(0.6, 0.6, 0.6, 1), 0)
	if err != nil {
		return err
	}
	state.floor = math.TransformCreate()
	state.instances = append(state.instances, systems.RenderInstance{Object: floor})

	for _, c := range testCubes {
		half := c.size / 2
		mesh, err := g.addBox(sm, device, c.name, math.Extents3D{
			Min: math.NewVec3(-half, -half, -half),
			Max: math.NewVec3(half, half, half),
		}, c.color, c.metallic)
		if err != nil {
			return err
		}
		state.cubes = append(state.cubes, math.TransformFromPosition(c.position))
		state.instances = append(state.instances,
			systems.RenderInstance{Object: mesh},
			systems.RenderInstance{Object: drawables.NewShadowCaster(c.name+"_shadow", mesh.Geometry)},
		)
		if state.showBounds {
			wf, err := drawables.NewBoxWireframe(device, c.name+"_bounds", mesh.GetBound())
			if err != nil {
				return err
			}
			state.bounds = append(state.bounds, wf)
			state.instances = append(state.instances, systems.RenderInstance{Object: wf})
		}
	}
	return nil
}

// addBox uploads a box with its own material and returns it as a mesh.
func (g *TestGame) addBox(sm *systems.SystemManager, device renderer.RendererBackend, name string, extents math.Extents3D, color math.Vec4, metallic float32) (*drawables.Mesh, error) {
	state := g.state()
	vertices, indices := components.BoxVertices(extents)
	geometry, err := components.NewGeometry(device, name, vertices, indices)
	if err != nil {
		return nil, err
	}
	state.geometries = append(state.geometries, geometry)

	material := components.NewMaterial(name + "_material")
	material.BaseColor = color
	material.Metallic = metallic
	material.Roughness = 0.5
	if err := material.Upload(device, sm.Shaders()); err != nil {
		return nil, err
	}
	state.materials = append(state.materials, material)
	return drawables.NewMesh(name, geometry, material), nil
}

var tempRotateSpeed float32 = 0.5

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	rotation := math.NewQuatFromAxisAngle(math.NewVec3Up(), tempRotateSpeed*float32(deltaTime))
	for _, t := range state.cubes {
		t.Rotate(rotation)
	}
	// slow orbit so every cascade gets exercised
	state.WorldCamera.Yaw(0.05 * float32(deltaTime))
	return nil
}

// Render lays out the transforms of this frame. Every cube is followed by its shadow caster and, when debugging, its bounds.
func (g *TestGame) Render(deltaTime float64) ([]systems.RenderInstance, error) {
	state := g.state()
	state.instances[0].Transform = state.floor.GetWorld()
	stride := 2
	if state.showBounds {
		stride = 3
	}
	for i, t := range state.cubes {
		world := t.GetWorld()
		for j := 0; j < stride; j++ {
			state.instances[1+i*stride+j].Transform = world
		}
	}
	return state.instances, nil
}

func (g *TestGame) Shutdown(device renderer.RendererBackend) error {
	state := g.state()
	var errs []error
	for _, wf := range state.bounds {
		errs = append(errs, wf.Destroy(device))
	}
	for _, m := range state.materials {
		errs = append(errs, m.Destroy(device))
	}
	for _, geometry := range state.geometries {
		errs = append(errs, geometry.Destroy(device))
	}
	state.bounds, state.materials, state.geometries = nil, nil, nil
	return errors.Join(errs...)
}
