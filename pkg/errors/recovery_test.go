package errors

import (
	"errors"
	"strings"
	"testing"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "training_step")
		panic("index out of range")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}

	if panicErr.Hook != "training_step" {
		t.Errorf("Expected hook 'training_step', got '%s'", panicErr.Hook)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}

	expectedMsg := "panic in training_step: index out of range"
	if panicErr.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, panicErr.Error())
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include the stack trace")
	}
}

// TestRecover_WithoutPanic tests the Recover function when no panic occurs
func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "training_step")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WrapsExistingError(t *testing.T) {
	base := errors.New("loss missing")
	testFunc := func() (err error) {
		defer Recover(&err, "training_step_end")
		err = base
		panic("boom")
	}

	err := testFunc()
	if !Is(err, base) {
		t.Fatalf("expected original error to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "panic in training_step_end: boom") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   bool
	}{
		{"success", func() error { return nil }, false, false},
		{"returned error", func() error { return errors.New("failed") }, false, true},
		{"string panic", func() error { panic("nil pointer") }, true, true},
		{"error panic", func() error { panic(errors.New("bad batch")) }, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("on_batch_end", tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafeExecute() error = %v, wantErr %v", err, tt.wantErr)
			}
			var panicErr *PanicError
			if got := errors.As(err, &panicErr); got != tt.wantPanic {
				t.Errorf("PanicError = %v, want %v", got, tt.wantPanic)
			}
		})
	}
}

func TestPanicError_UnwrapsErrorValue(t *testing.T) {
	inner := errors.New("bad batch")
	err := SafeExecute("validation_step", func() error { panic(inner) })
	if !errors.Is(err, inner) {
		t.Error("expected panic error value to be reachable through Unwrap")
	}
}
