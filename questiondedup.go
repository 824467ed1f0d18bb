package quizbuilder

import (
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// IsUnique reports whether the candidate may enter the bank. A candidate
// with an empty prompt is never unique, and neither is one whose prompt
// exactly matches an already accepted question. The comparison is
// byte-for-byte: case matters and no trimming is applied.
func IsUnique(candidate *Question, bank QuestionBank) bool {
	if candidate == nil || candidate.Prompt == "" {
		return false
	}
	for i := range bank {
		if bank[i].Prompt == candidate.Prompt {
			return false
		}
	}
	return true
}

// NearDuplicates returns prompts in the bank that are close rewordings of
// the candidate's prompt, measured by Levenshtein distance relative to the
// prompt length. This is diagnostic only: near matches are logged but do
// not affect acceptance, which is decided by IsUnique's exact comparison.
func NearDuplicates(candidate *Question, bank QuestionBank) []string {
	if candidate == nil || candidate.Prompt == "" {
		return nil
	}
	var near []string
	for i := range bank {
		existing := bank[i].Prompt
		if existing == candidate.Prompt {
			continue
		}
		distance := fuzzy.LevenshteinDistance(candidate.Prompt, existing)
		longer := len(candidate.Prompt)
		if len(existing) > longer {
			longer = len(existing)
		}
		// Within 20% of the longer prompt counts as a near rewording.
		if longer > 0 && distance*5 <= longer {
			near = append(near, existing)
		}
	}
	return near
}
