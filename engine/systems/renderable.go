package systems

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Anything the frame system can draw. Draw is offered every stage of
 * every frame; an implementation records work only for the stages it takes
 * part in and returns the stage it was given.
 */
type RenderAble interface {
	Draw(stage metadata.FrameStage, frames *FrameSystem, lights *LightSystem, transform math.Mat4) metadata.FrameStage
	// GetBound is the local space bound, before transform.
	GetBound() math.Extents3D
	GetName() string
}

// RenderInstance places a drawable in the world for one frame.
type RenderInstance struct {
	Object    RenderAble
	Transform math.Mat4
}

/**
 * @brief One frame being recorded. Stages only move forward, from Shadow to
 * Submitted; each stage owns exactly one render pass.
 */
type Frame struct {
	ID uuid.UUID

	fs      *FrameSystem
	cmd     renderer.CommandBuffer
	target  *metadata.Framebuffer
	image   *metadata.Image
	stage   metadata.FrameStage
	frustum math.Frustum
	draws   map[metadata.FrameStage]int
	skipped int
	culled  int
	closed  bool
}

func (f *Frame) Stage() metadata.FrameStage {
	return f.stage
}

// Draws is the number of draws recorded in a stage.
func (f *Frame) Draws(stage metadata.FrameStage) int {
	return f.draws[stage]
}

// Skipped counts draws dropped because their shader set or descriptor sets were missing.
func (f *Frame) Skipped() int {
	return f.skipped
}

// Culled counts instances the Forward stage did not offer to their drawable.
func (f *Frame) Culled() int {
	return f.culled
}

// Visible reports whether a world space bound intersects the camera frustum.
func (f *Frame) Visible(bound math.Extents3D) bool {
	return f.frustum.IntersectsExtents(bound)
}

func (f *Frame) checkOpen() error {
	if f.closed || f.stage.IsTerminal() {
		return fmt.Errorf("frame %s: %w", f.ID, core.ErrFrameSubmitted)
	}
	return nil
}

/**
 * @brief Ends the pass of the current stage and begins the next one.
 * Advancing from Assemble submits the frame.
 *
 * @return The stage the frame is in afterwards.
 */
func (f *Frame) Advance() (metadata.FrameStage, error) {
	if err := f.checkOpen(); err != nil {
		return f.stage, err
	}
	if f.stage == metadata.FrameStageAssemble {
		err := f.Submit()
		return f.stage, err
	}
	f.cmd.EndRenderPass()
	f.stage = f.stage.Next()
	f.fs.beginStage(f)
	return f.stage, nil
}

/**
 * @brief Ends the Assemble pass and hands the recorded frame to the device.
 * A frame whose submission failed is closed all the same; the next frame
 * can begin.
 */
func (f *Frame) Submit() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.stage != metadata.FrameStageAssemble {
		err := fmt.Errorf("frame %s submitted at stage %s: %w", f.ID, f.stage, core.ErrStageMismatch)
		core.LogError(err.Error())
		return err
	}
	f.cmd.EndRenderPass()
	f.closed = true
	f.fs.current = nil

	if err := f.fs.device.Submit(f.cmd); err != nil {
		err = fmt.Errorf("frame %s: submit: %w", f.ID, err)
		core.LogError(err.Error())
		return err
	}
	f.stage = metadata.FrameStageSubmitted

	f.fs.clock.Update()
	f.fs.metrics.Update(f.fs.clock.Elapsed())
	f.fs.clock.Stop()
	core.LogDebug("frame %s submitted: %d shadow, %d forward draws, %d culled, %d skipped",
		f.ID, f.draws[metadata.FrameStageShadow], f.draws[metadata.FrameStageForward], f.culled, f.skipped)
	return nil
}
