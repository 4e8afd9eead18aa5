//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Build mg.Namespace

// Builds the vkcachetool binary.
func (Build) Tool() error {
	return sh.RunV("go", "build", "-o", "bin/vkcachetool", "./cmd/vkcachetool")
}

// Builds every package.
func (Build) All() error {
	return sh.RunV("go", "build", "./...")
}

type Test mg.Namespace

// Runs the full test suite.
func (Test) All() error {
	return sh.RunV("go", "test", "./...")
}

// Runs the test suite with the race detector.
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Runs go vet over every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Removes build artifacts.
func Clean() error {
	return sh.Rm("bin")
}
