// Package errs provides the error taxonomy used across omop2owl.
// Errors are classified as configuration, data or external tool failures so the
// pipeline can decide whether a failure is fatal for the run or only for one partition.
package errs

import (
	"errors"
	"fmt"
)

// Class represents the classification of errors for handling purposes
type Class int

const (
	// ClassConfig represents invalid or conflicting run configuration
	ClassConfig Class = iota
	// ClassData represents problems in the input tables or intermediate artifacts
	ClassData
	// ClassTool represents failures of an external tool invocation
	ClassTool
)

// String returns the string representation of Class
func (c Class) String() string {
	switch c {
	case ClassConfig:
		return "config"
	case ClassData:
		return "data"
	case ClassTool:
		return "tool"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Configuration errors
	ErrMissingInput       = errors.New("missing required input")
	ErrConflictingOptions = errors.New("conflicting options")
	ErrInvalidConfig      = errors.New("invalid configuration")

	// Data errors
	ErrPredicateCollision = errors.New("predicate sanitization collision")
	ErrEmptyPredicate     = errors.New("relationship label sanitizes to empty predicate")
	ErrDuplicateConcept   = errors.New("duplicate concept identifier")
	ErrMissingColumn      = errors.New("missing required column")
	ErrMergeBoundary      = errors.New("merge boundary not found")
	ErrPartitionCollision = errors.New("partition name collision")

	// Tool errors
	ErrToolFailed = errors.New("external tool failed")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     Class
	Err       error
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Component == "" {
		return ce.Err.Error()
	}
	return fmt.Sprintf("%s.%s: %v", ce.Component, ce.Operation, ce.Err)
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

func wrap(class Class, err error, component, operation string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Err: err, Component: component, Operation: operation}
}

// WrapConfig wraps err as a configuration error
func WrapConfig(err error, component, operation string) error {
	return wrap(ClassConfig, err, component, operation)
}

// WrapData wraps err as a data error
func WrapData(err error, component, operation string) error {
	return wrap(ClassData, err, component, operation)
}

// WrapTool wraps err as an external tool error
func WrapTool(err error, component, operation string) error {
	return wrap(ClassTool, err, component, operation)
}

// Classify returns the class of err. Unclassified errors matching a known
// sentinel are classified by that sentinel; anything else is a tool error.
func Classify(err error) Class {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	switch {
	case errors.Is(err, ErrMissingInput),
		errors.Is(err, ErrConflictingOptions),
		errors.Is(err, ErrInvalidConfig):
		return ClassConfig
	case errors.Is(err, ErrPredicateCollision),
		errors.Is(err, ErrEmptyPredicate),
		errors.Is(err, ErrDuplicateConcept),
		errors.Is(err, ErrMissingColumn),
		errors.Is(err, ErrMergeBoundary),
		errors.Is(err, ErrPartitionCollision):
		return ClassData
	}
	return ClassTool
}

// IsConfig checks if an error is a configuration error
func IsConfig(err error) bool {
	return err != nil && Classify(err) == ClassConfig
}

// IsData checks if an error is a data error
func IsData(err error) bool {
	return err != nil && Classify(err) == ClassData
}

// IsTool checks if an error is an external tool error
func IsTool(err error) bool {
	return err != nil && Classify(err) == ClassTool
}
