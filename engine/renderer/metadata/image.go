package metadata

import "github.com/spaghettifunk/lumen/engine/core"

type ImageConfig struct {
	Name    string
	Format  Format
	Width   uint32
	Height  uint32
	Layers  uint32
	Samples uint32
	Usage   ImageUsage
}

/**
 * @brief A GPU image. The backend owns the underlying object, the
 * frontend only keeps the handle and the creation parameters.
 */
type Image struct {
	Handle core.Handle
	ImageConfig
}

/** @brief A clear value for one attachment, colour or depth/stencil. */
type ClearValue struct {
	Colour  [4]float32
	Depth   float32
	Stencil uint32
}
