package core

import "errors"

var (
	ErrInvalidIdentifier          = errors.New("invalid surface identifier")
	ErrInvalidGeometry            = errors.New("invalid geometry")
	ErrInvalidRadiativeProperties = errors.New("invalid radiative properties")
	ErrDuplicateSurfaceID         = errors.New("surface already exists")
	ErrDuplicateViewedSurface     = errors.New("viewed surface already added")
	ErrUnknownSurface             = errors.New("unknown surface")
	ErrUnknownViewedSurface       = errors.New("unknown viewed surface")
	ErrNotYetComputed             = errors.New("view factor not yet computed")
	ErrLengthMismatch             = errors.New("view factor batch length mismatch")
	ErrInvalidCriterion           = errors.New("minimum view factor criterion outside [0,1]")
)
