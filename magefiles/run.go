//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed in a window.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	return goCmd("run", ".")
}

// Compiles the shaders and renders the configured frames offscreen.
func (Run) Headless() error {
	mg.Deps(Build.Shaders)
	return goCmd("run", ".", "-headless")
}

// Runs the unit tests, none of which need a GPU.
func (Run) Test() error {
	return goCmd("test", "./...")
}
