package lifecycle

import (
	"testing"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

func TestTrackerTransitions(t *testing.T) {
	tr := NewTracker()
	if tr.Current() != Idle {
		t.Fatalf("new tracker state = %v, want idle", tr.Current())
	}
	if tr.Started() {
		t.Error("Started() should be false before the first epoch")
	}

	if !tr.OpenEpoch(0) {
		t.Fatal("OpenEpoch from idle should succeed")
	}
	if tr.OpenEpoch(0) {
		t.Error("OpenEpoch while open should be a no-op")
	}

	if err := tr.OpenStep(0); err != nil {
		t.Fatalf("OpenStep: %v", err)
	}
	if tr.Current() != StepOpen {
		t.Errorf("state = %v, want step_open", tr.Current())
	}

	if !tr.CloseStep() {
		t.Error("CloseStep should report a transition")
	}
	if tr.CloseStep() {
		t.Error("second CloseStep should be a no-op")
	}
	if tr.GlobalStep() != 1 {
		t.Errorf("GlobalStep = %d, want 1", tr.GlobalStep())
	}

	if !tr.CloseEpoch() {
		t.Error("CloseEpoch should report a transition")
	}
	if tr.CloseEpoch() {
		t.Error("second CloseEpoch should be a no-op")
	}
	if tr.Current() != Idle {
		t.Errorf("state = %v, want idle", tr.Current())
	}
}

func TestTrackerOpenStepWhileIdle(t *testing.T) {
	tr := NewTracker()
	err := tr.OpenStep(0)
	if err == nil {
		t.Fatal("expected error")
	}
	var windowErr *errors.NoOpenWindowError
	if !errors.As(err, &windowErr) {
		t.Fatalf("expected NoOpenWindowError, got %T", err)
	}
}

func TestTrackerValidationStepsDoNotAdvanceGlobalStep(t *testing.T) {
	tr := NewTracker()
	tr.OpenEpoch(0)
	tr.SetStage(StageValidation)
	for i := 0; i < 3; i++ {
		if err := tr.OpenStep(i); err != nil {
			t.Fatal(err)
		}
		tr.CloseStep()
	}
	if tr.GlobalStep() != 0 {
		t.Errorf("GlobalStep = %d, want 0", tr.GlobalStep())
	}

	tr.CloseEpoch()
	if tr.Stage() != StageTrain {
		t.Error("closing the epoch should reset the stage")
	}
}

func TestTrackerSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.OpenEpoch(4)
	_ = tr.OpenStep(7)

	snap := tr.Snapshot()
	want := Snapshot{State: "step_open", Stage: "train", Epoch: 4, BatchIdx: 7, GlobalStep: 0}
	if snap != want {
		t.Errorf("Snapshot() = %+v, want %+v", snap, want)
	}
}
