// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrSchema        = errors.New("input schema invalid")
	ErrConfigInvalid = errors.New("invalid configuration")
	ErrDegenerateFit = errors.New("degenerate trend fit")
	ErrDataNotFound  = errors.New("data not found")
)

// SchemaError reports a required price field missing from the input series.
// Index is -1 when the field is missing from the whole table (e.g. a CSV header).
type SchemaError struct {
	Field   string
	Index   int
	Message string
}

func (e *SchemaError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("schema error: %s at row %d: %s", e.Field, e.Index, e.Message)
	}
	return fmt.Sprintf("schema error: %s: %s", e.Field, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(field string, index int, message string) *SchemaError {
	return &SchemaError{
		Field:   field,
		Index:   index,
		Message: message,
	}
}

// ConfigurationError represents an invalid parameter combination.
type ConfigurationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field string, value interface{}, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DegenerateFitError is returned when a least-squares fit has no defined slope.
type DegenerateFitError struct {
	Points int
	Reason string
}

func (e *DegenerateFitError) Error() string {
	return fmt.Sprintf("degenerate fit over %d points: %s", e.Points, e.Reason)
}

func (e *DegenerateFitError) Unwrap() error {
	return ErrDegenerateFit
}

// NewDegenerateFitError creates a new DegenerateFitError.
func NewDegenerateFitError(points int, reason string) *DegenerateFitError {
	return &DegenerateFitError{
		Points: points,
		Reason: reason,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Source   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Source, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, source, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Source:   source,
		Message:  message,
		Err:      err,
	}
}

// New returns a plain error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
