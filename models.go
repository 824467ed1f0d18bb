package quizbuilder

import (
	"errors"
	"time"
)

// MaxQuestions is the upper bound on questions per quiz.
const MaxQuestions = 10

// DefaultMaxRetries is how many synthesis cycles a single question slot
// gets before it is abandoned.
const DefaultMaxRetries = 10

// DefaultTopic is used when a request arrives with an empty topic.
const DefaultTopic = "General Knowledge"

var (
	// ErrTooManyQuestions is returned when a request asks for more than
	// MaxQuestions questions.
	ErrTooManyQuestions = errors.New("number of questions cannot exceed 10")

	// ErrGeneratorUnavailable is returned when the question synthesizer
	// cannot be constructed or reached at all. It is terminal: the
	// assembly loop never retries it.
	ErrGeneratorUnavailable = errors.New("question generator unavailable")

	// ErrNoDocuments is returned when ingestion is attempted with no
	// processed documents.
	ErrNoDocuments = errors.New("no documents found")
)

// Choice is a single answer option. Key is the display label (A-D) and
// Value is the option text. Slice order is display order.
type Choice struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Question represents a single multiple choice question.
type Question struct {
	Prompt      string   `json:"question"`
	Choices     []Choice `json:"choices"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// CorrectChoice returns the choice referenced by Answer.
func (q *Question) CorrectChoice() (Choice, bool) {
	for _, c := range q.Choices {
		if c.Key == q.Answer {
			return c, true
		}
	}
	return Choice{}, false
}

// IsWellFormed reports whether the question satisfies the structural
// invariant: non-empty prompt, at least one choice, and an answer that
// references an existing choice key.
func (q *Question) IsWellFormed() bool {
	if q.Prompt == "" || len(q.Choices) == 0 {
		return false
	}
	_, ok := q.CorrectChoice()
	return ok
}

// QuestionBank is an ordered list of accepted questions, unique by prompt.
// It is owned exclusively by the assembly loop while a quiz is being
// generated and is immutable once generation completes.
type QuestionBank []Question

// Quiz is the finished output artifact of one generation run. Requested
// records the asked-for question count; a shorter Questions slice means
// some slots exhausted their retries.
type Quiz struct {
	ID        string       `json:"id"`
	Topic     string       `json:"topic"`
	Questions QuestionBank `json:"questions"`
	Requested int          `json:"requested"`
	CreatedAt time.Time    `json:"created_at"`
}

// GenerationRequest describes one quiz generation run.
type GenerationRequest struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
	MaxRetries   int    `json:"max_retries,omitempty"`
}

// NewGenerationRequest builds a validated request. An empty topic falls
// back to DefaultTopic.
func NewGenerationRequest(topic string, numQuestions int) (GenerationRequest, error) {
	req := GenerationRequest{
		Topic:        topic,
		NumQuestions: numQuestions,
		MaxRetries:   DefaultMaxRetries,
	}
	if req.Topic == "" {
		req.Topic = DefaultTopic
	}
	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// Validate checks the construction parameters. A zero question count is
// tolerated (the loop simply produces an empty bank); a count above
// MaxQuestions is a configuration error.
func (req GenerationRequest) Validate() error {
	if req.NumQuestions > MaxQuestions {
		return ErrTooManyQuestions
	}
	if req.NumQuestions < 0 {
		return errors.New("number of questions cannot be negative")
	}
	return nil
}
