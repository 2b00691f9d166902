// Package apperr holds the sentinel errors shared by the tree, editor and
// transport layers. Match them with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound indicates that an id (or storage key) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStructuralViolation indicates a move that would place a node inside
	// itself or one of its own descendants.
	ErrStructuralViolation = errors.New("structural violation")

	// ErrNotFolder indicates that a parent or move target is a file.
	ErrNotFolder = errors.New("not a folder")

	// ErrNotFile indicates that an operation addressed to a file hit a folder.
	ErrNotFile = errors.New("not a file")

	// ErrInvalidTree indicates that a decoded forest breaks the tree invariants.
	ErrInvalidTree = errors.New("invalid tree")

	// ErrInvalidInput indicates a malformed request, such as an unknown node type.
	ErrInvalidInput = errors.New("invalid input")
)
