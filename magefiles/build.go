//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// programs compiled by Build.Shaders, each from <name>.vert and <name>.frag
var shaderPrograms = []string{"pbr", "wireframe", "shadow", "pp_exposure", "pp_resolve_hdr"}

var shaderStages = []string{"vert", "frag"}

// Compiles every GLSL program to <name>.<stage>.spv. Set LUMEN_SAMPLES=1 when
// the forward pass is not multisampled, after a Build:Clean.
func (Build) Shaders() error {
	flags := []string{"--target-env=vulkan1.0", "-I", shaderDir}
	if os.Getenv("LUMEN_SAMPLES") != "1" {
		flags = append(flags, "-DMULTISAMPLED")
	}
	for _, name := range shaderPrograms {
		for _, stage := range shaderStages {
			if err := glslc(flags, name, stage); err != nil {
				return err
			}
		}
	}
	return nil
}

// Removes the compiled shaders and the engine binary.
func (Build) Clean() error {
	for _, name := range shaderPrograms {
		for _, stage := range shaderStages {
			if err := sh.Rm(spvPath(name, stage)); err != nil {
				return err
			}
		}
	}
	return sh.Rm("bin")
}

// Builds the shaders and the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	return goCmd("build", "-o", "bin/lumen", ".")
}
