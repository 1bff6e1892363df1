package core

import (
	"errors"
)

var (
	// configuration errors, recoverable at the call site
	ErrShaderSetNotFound       = errors.New("shader set not found")
	ErrMissingDescriptorFamily = errors.New("descriptor set family not bound")

	// resource build errors
	ErrShaderBuild            = errors.New("shader set build failed")
	ErrPipelineBuild          = errors.New("pipeline build failed")
	ErrPipelineTargetMismatch = errors.New("pipeline already built for a different render pass target")
	ErrSubpassOutOfRange      = errors.New("subpass index out of range")
	ErrIncompatibleRenderPass = errors.New("shader set is incompatible with the render pass")
	ErrInvalidVertexLayout    = errors.New("invalid vertex layout")
	ErrAttachmentMismatch     = errors.New("framebuffer images do not match the render pass attachments")
	ErrInvalidHandle          = errors.New("invalid or stale handle")

	// frame errors
	ErrStageMismatch   = errors.New("draw issued outside of its frame stage")
	ErrFrameSubmitted  = errors.New("frame already submitted")
	ErrFrameInProgress = errors.New("a frame is already in progress")
	ErrNotInitialized  = errors.New("system not initialized")

	ErrUnknown = errors.New("unknown")
)
