//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the tests of a single package, e.g. mage test:package ./engine/kernel
func (Test) Package(pkg string) error {
	if _, err := executeCmd("go", withArgs("test", "-race", "-count=1", "-v", pkg), withStream()); err != nil {
		return err
	}
	return nil
}
