package grading

import "testing"

func TestReconcile(t *testing.T) {
	tests := []struct {
		name   string
		grades []Grade
		want   Summary
	}{
		{"empty", nil, Summary{Score: 0, FullyGraded: true, Status: StatusGraded}},
		{"pending short answer", []Grade{CorrectGrade(1), CorrectGrade(1), UngradedGrade()}, Summary{Score: 2, Status: StatusSubmitted}},
		{"all resolved", []Grade{CorrectGrade(1), IncorrectGrade(), ManualGrade(fp(0.5))}, Summary{Score: 1.5, FullyGraded: true, Status: StatusGraded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconcile(tt.grades); got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestManualGrade(t *testing.T) {
	if g := ManualGrade(nil); g.Resolved() {
		t.Fatal("nil points should be ungraded")
	}
	if g := ManualGrade(fp(0)); g.State != Incorrect || *g.IsCorrect() {
		t.Fatalf("zero points: %+v", g)
	}
	if g := ManualGrade(fp(1)); g.State != Correct || !*g.IsCorrect() || *g.PointsAwarded() != 1 {
		t.Fatalf("one point: %+v", g)
	}
}

func TestFromColumnsRoundTrip(t *testing.T) {
	for _, g := range []Grade{UngradedGrade(), CorrectGrade(1), IncorrectGrade(), ManualGrade(fp(0.25))} {
		back := FromColumns(g.IsCorrect(), g.PointsAwarded())
		if back != g {
			t.Errorf("round trip %+v -> %+v", g, back)
		}
	}
}
