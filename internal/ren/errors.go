package ren

import "errors"

// Domain errors. Configuration problems surface at construction and are
// fatal; shape mismatches are fatal to the offending call only.
var (
	// ErrBadDimensions indicates a non-positive model dimension.
	ErrBadDimensions = errors.New("ren: dimensions must be positive")

	// ErrBadOption indicates an invalid option value, e.g. a
	// non-positive positive-definiteness tolerance.
	ErrBadOption = errors.New("ren: invalid option value")

	// ErrShapeMismatch indicates a state/input matrix whose shape does
	// not agree with the model dimensions.
	ErrShapeMismatch = errors.New("ren: shape mismatch")

	// ErrNotCompiled indicates a forward call before any Compile.
	ErrNotCompiled = errors.New("ren: dynamics not compiled")
)
