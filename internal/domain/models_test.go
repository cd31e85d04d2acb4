package domain

import "testing"

func TestQuestionIsCorrect(t *testing.T) {
	mc := Question{Type: QuestionMC, CorrectAnswer: "B", Options: map[string]string{"A": "1", "B": "2", "C": "3", "D": "4"}}
	tf := Question{Type: QuestionTF, CorrectAnswer: "A", Options: map[string]string{"A": "True", "B": "False"}}
	short := Question{Type: QuestionShort, CorrectAnswer: "Paris"}

	tests := []struct {
		name     string
		q        Question
		response string
		want     bool
	}{
		{"mc exact", mc, "B", true},
		{"mc lower case", mc, "b", true},
		{"mc wrong", mc, "C", false},
		{"mc empty", mc, "", false},
		{"tf lower", tf, "a", true},
		{"tf wrong", tf, "B", false},
		{"short lower", short, "paris", true},
		{"short contains answer", short, "PARIS, France", true},
		{"short padded", short, "  Paris  ", true},
		{"short prefix of answer", short, "par", true},
		{"short unrelated", short, "Lyon", false},
		{"short blank", short, "   ", false},
		{"short empty", short, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.IsCorrect(tt.response); got != tt.want {
				t.Fatalf("IsCorrect(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestIdentityFrom(t *testing.T) {
	if got := IdentityFrom(""); got != Guest {
		t.Fatalf("expected guest, got %q", got)
	}
	if got := IdentityFrom("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("expected normalized key, got %q", got)
	}
	if !Identity("").IsGuest() || IdentityFrom("bob@example.com").IsGuest() {
		t.Fatalf("unexpected IsGuest result")
	}
}

func TestAttemptRecordPercent(t *testing.T) {
	if p := (AttemptRecord{Correct: 2, Total: 3}).Percent(); p != 67 {
		t.Fatalf("expected 67, got %d", p)
	}
	if p := (AttemptRecord{}).Percent(); p != 0 {
		t.Fatalf("expected 0 for empty attempt, got %d", p)
	}
	if (AttemptRecord{Correct: 0, Total: 0}).Perfect() {
		t.Fatalf("empty attempt must not be perfect")
	}
}
