package quizbuilder

import "testing"

func bankWith(prompts ...string) QuestionBank {
	bank := make(QuestionBank, 0, len(prompts))
	for _, p := range prompts {
		bank = append(bank, Question{
			Prompt:  p,
			Choices: []Choice{{Key: "A", Value: "x"}},
			Answer:  "A",
		})
	}
	return bank
}

func TestIsUnique(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		bank      QuestionBank
		expected  bool
	}{
		{
			name:      "empty bank",
			candidate: "What is Go?",
			bank:      nil,
			expected:  true,
		},
		{
			name:      "exact duplicate",
			candidate: "What is Go?",
			bank:      bankWith("What is Go?"),
			expected:  false,
		},
		{
			name:      "different prompt",
			candidate: "What is a slice?",
			bank:      bankWith("What is Go?"),
			expected:  true,
		},
		{
			name:      "case differs",
			candidate: "what is go?",
			bank:      bankWith("What is Go?"),
			expected:  true,
		},
		{
			name:      "whitespace differs",
			candidate: "What is Go? ",
			bank:      bankWith("What is Go?"),
			expected:  true,
		},
		{
			name:      "empty prompt is never unique",
			candidate: "",
			bank:      nil,
			expected:  false,
		},
		{
			name:      "duplicate deeper in bank",
			candidate: "Third?",
			bank:      bankWith("First?", "Second?", "Third?"),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := &Question{
				Prompt:  tt.candidate,
				Choices: []Choice{{Key: "A", Value: "x"}},
				Answer:  "A",
			}
			if got := IsUnique(candidate, tt.bank); got != tt.expected {
				t.Errorf("IsUnique(%q) = %v, expected %v", tt.candidate, got, tt.expected)
			}
		})
	}

	if IsUnique(nil, nil) {
		t.Error("IsUnique(nil) should be false")
	}
}

func TestNearDuplicates(t *testing.T) {
	bank := bankWith(
		"Which keyword declares a new variable in Go?",
		"What year was the moon landing?",
	)

	candidate := &Question{
		Prompt:  "Which keyword declares a new variable in go?",
		Choices: []Choice{{Key: "A", Value: "x"}},
		Answer:  "A",
	}

	near := NearDuplicates(candidate, bank)
	if len(near) != 1 {
		t.Fatalf("expected 1 near duplicate, got %d: %v", len(near), near)
	}
	if near[0] != "Which keyword declares a new variable in Go?" {
		t.Errorf("unexpected near duplicate: %q", near[0])
	}

	// An exact match is a duplicate, not a near duplicate.
	exact := &Question{Prompt: "What year was the moon landing?"}
	if near := NearDuplicates(exact, bank); len(near) != 0 {
		t.Errorf("exact match reported as near duplicate: %v", near)
	}
}
