//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Exports the shaders and renders the testbed scene to frame.png.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Opens the preview window and re-renders whenever a testbed asset changes.
func (Run) Preview() error {
	fmt.Println("Run engine with preview...")
	if _, err := executeCmd("go", withArgs("run", ".", "-preview", "-watch"), withStream()); err != nil {
		return err
	}
	return nil
}
