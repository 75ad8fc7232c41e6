package models

import "errors"

// Validation errors returned by model hooks.
var (
	// ErrSourcePathRequired indicates a job was created without a source file.
	ErrSourcePathRequired = errors.New("source path is required")
	// ErrProfileNameRequired indicates an encoding profile is missing a name.
	ErrProfileNameRequired = errors.New("profile name is required")
	// ErrProfileDimensions indicates an encoding profile has non-positive dimensions or bitrate.
	ErrProfileDimensions = errors.New("profile width, height, and bitrate must be positive")
	// ErrRuleNameRequired indicates an alert rule is missing a name.
	ErrRuleNameRequired = errors.New("alert rule name is required")
	// ErrUnknownAlertType indicates an alert rule references an unsupported condition.
	ErrUnknownAlertType = errors.New("unknown alert type")
)
