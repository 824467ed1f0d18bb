package quizbuilder

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// ParseQuestion decodes the raw synthesizer output into a Question.
// The output is expected to be a JSON object with keys "question",
// "choices" (ordered array of {key, value} objects), "answer" and
// "explanation". Any decode failure or cross-field violation (empty
// prompt, no choices, repeated choice keys, answer that references no
// choice) is reported as a parse failure so the assembly loop treats
// malformed and inconsistent candidates uniformly.
func ParseQuestion(raw string) (*Question, error) {
	var payload struct {
		Question string `json:"question"`
		Choices  []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"choices"`
		Answer      string `json:"answer"`
		Explanation string `json:"explanation"`
	}

	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("malformed question payload: %w", err)
	}

	if payload.Question == "" {
		return nil, fmt.Errorf("question payload has empty question text")
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("question payload has no choices")
	}

	choices := make([]Choice, 0, len(payload.Choices))
	seen := make(map[string]bool, len(payload.Choices))
	for _, c := range payload.Choices {
		if c.Key == "" {
			return nil, fmt.Errorf("question payload has a choice with an empty key")
		}
		if seen[c.Key] {
			return nil, fmt.Errorf("question payload repeats choice key %q", c.Key)
		}
		seen[c.Key] = true
		choices = append(choices, Choice{Key: c.Key, Value: c.Value})
	}

	if !lo.ContainsBy(choices, func(c Choice) bool { return c.Key == payload.Answer }) {
		return nil, fmt.Errorf("answer %q does not match any choice key", payload.Answer)
	}

	return &Question{
		Prompt:      payload.Question,
		Choices:     choices,
		Answer:      payload.Answer,
		Explanation: payload.Explanation,
	}, nil
}
