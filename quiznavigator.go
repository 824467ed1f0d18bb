package quizbuilder

// QuizNavigator provides bounded-index traversal over a finished
// question bank. It never mutates the bank.
type QuizNavigator struct {
	bank QuestionBank
}

// NewQuizNavigator wraps a finished bank for display-side consumption.
func NewQuizNavigator(bank QuestionBank) *QuizNavigator {
	return &QuizNavigator{bank: bank}
}

// Size returns the number of questions in the bank.
func (qn *QuizNavigator) Size() int {
	return len(qn.bank)
}

// QuestionAt returns the question at index, clamped into range. The bank
// must be non-empty.
func (qn *QuizNavigator) QuestionAt(index int) Question {
	return qn.bank[clampIndex(index, len(qn.bank))]
}

// Advance moves an index by direction (-1 or +1) and clamps the result
// to [0, size-1], so navigation stops at either end instead of wrapping.
func (qn *QuizNavigator) Advance(index, direction int) int {
	return clampIndex(index+direction, len(qn.bank))
}

func clampIndex(index, size int) int {
	if size <= 0 || index < 0 {
		return 0
	}
	if index >= size {
		return size - 1
	}
	return index
}
