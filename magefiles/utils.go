//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

// glfw and the Vulkan loader are reached through cgo.
var goEnv = map[string]string{"CGO_ENABLED": "1"}

func goCmd(args ...string) error {
	return sh.RunWithV(goEnv, "go", args...)
}

// glslc compiles one stage of a program. Outputs newer than their source
// and the shared include are left alone.
func glslc(flags []string, name, stage string) error {
	src := filepath.Join(shaderDir, name+"."+stage)
	out := spvPath(name, stage)
	stale, err := target.Path(out, src, filepath.Join(shaderDir, "common.glsl"))
	if err != nil || !stale {
		return err
	}
	return sh.RunV("glslc", append(flags, src, "-o", out)...)
}

func spvPath(name, stage string) string {
	return filepath.Join(shaderDir, name+"."+stage+".spv")
}
