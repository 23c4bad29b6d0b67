package errors

import (
	"errors"
	"testing"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"schema", NewSchemaError("close", -1, "column not found"), ErrSchema},
		{"config", NewConfigurationError("short_pivot_interval", 10, "must be less than pivot_interval"), ErrConfigInvalid},
		{"fit", NewDegenerateFitError(1, "need at least 2 points"), ErrDegenerateFit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrapf(tt.err, "scanning %s", "EURUSD")
			if !Is(wrapped, tt.sentinel) {
				t.Errorf("expected %v to match sentinel %v", wrapped, tt.sentinel)
			}
		})
	}
}

func TestAsConfigurationError(t *testing.T) {
	err := Wrap(NewConfigurationError("lookback", 0, "must be positive"), "validate")

	var cfgErr *ConfigurationError
	if !As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError in chain")
	}
	if cfgErr.Field != "lookback" {
		t.Errorf("field = %q, want lookback", cfgErr.Field)
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	withRow := NewSchemaError("high", 12, "value is NaN").Error()
	if withRow != "schema error: high at row 12: value is NaN" {
		t.Errorf("unexpected message %q", withRow)
	}
	table := NewSchemaError("open", -1, "column not found").Error()
	if table != "schema error: open: column not found" {
		t.Errorf("unexpected message %q", table)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
	if !errors.Is(NewDataError("csv", "x.csv", "bad", ErrDataNotFound), ErrDataNotFound) {
		t.Error("DataError should unwrap to its cause")
	}
}
