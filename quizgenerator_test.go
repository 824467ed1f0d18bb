package quizbuilder

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// scriptedSynthesizer replays a fixed sequence of raw responses and then
// keeps returning the last one. It counts every call.
type scriptedSynthesizer struct {
	script []string
	calls  int
}

func (s *scriptedSynthesizer) Synthesize(ctx context.Context, topic string, passages []string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i], nil
}

// countingSynthesizer returns a fresh unique question on every call.
type countingSynthesizer struct {
	calls int
}

func (s *countingSynthesizer) Synthesize(ctx context.Context, topic string, passages []string) (string, error) {
	s.calls++
	return questionJSON(fmt.Sprintf("Question number %d?", s.calls)), nil
}

func questionJSON(prompt string) string {
	return fmt.Sprintf(`{
		"question": %q,
		"choices": [
			{"key": "A", "value": "first"},
			{"key": "B", "value": "second"},
			{"key": "C", "value": "third"},
			{"key": "D", "value": "fourth"}
		],
		"answer": "A",
		"explanation": "because"
	}`, prompt)
}

func TestGenerateQuizFillsAllSlots(t *testing.T) {
	synth := &countingSynthesizer{}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 3, MaxRetries: 10}
	quiz, err := generator.GenerateQuiz(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateQuiz() error: %v", err)
	}

	if len(quiz.Questions) != 3 {
		t.Errorf("expected 3 questions, got %d", len(quiz.Questions))
	}
	if synth.calls != 3 {
		t.Errorf("expected 3 synthesizer calls, got %d", synth.calls)
	}
	if quiz.Requested != 3 {
		t.Errorf("expected Requested=3, got %d", quiz.Requested)
	}
	if quiz.Topic != "Go" {
		t.Errorf("expected topic Go, got %q", quiz.Topic)
	}

	// Every accepted question must be well-formed and pairwise distinct.
	seen := make(map[string]bool)
	for _, q := range quiz.Questions {
		if !q.IsWellFormed() {
			t.Errorf("accepted question is not well-formed: %+v", q)
		}
		if seen[q.Prompt] {
			t.Errorf("duplicate prompt in bank: %q", q.Prompt)
		}
		seen[q.Prompt] = true
	}
}

func TestGenerateQuizRejectsTooManyQuestions(t *testing.T) {
	synth := &countingSynthesizer{}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 11}
	_, err := generator.GenerateQuiz(context.Background(), req)
	if !errors.Is(err, ErrTooManyQuestions) {
		t.Fatalf("expected ErrTooManyQuestions, got %v", err)
	}
	if synth.calls != 0 {
		t.Errorf("expected zero synthesizer calls on rejected request, got %d", synth.calls)
	}
}

func TestGenerateQuizZeroQuestions(t *testing.T) {
	synth := &countingSynthesizer{}
	generator := NewQuizGenerator(synth, nil)

	quiz, err := generator.GenerateQuiz(context.Background(), GenerationRequest{Topic: "Go"})
	if err != nil {
		t.Fatalf("GenerateQuiz() error: %v", err)
	}
	if len(quiz.Questions) != 0 {
		t.Errorf("expected empty bank, got %d questions", len(quiz.Questions))
	}
	if synth.calls != 0 {
		t.Errorf("expected zero synthesizer calls, got %d", synth.calls)
	}
}

func TestGenerateQuizRetriesParseFailures(t *testing.T) {
	// Nine malformed responses, then a valid one: a single slot with a
	// retry budget of 10 must succeed on the last attempt.
	script := make([]string, 0, 10)
	for i := 0; i < 9; i++ {
		script = append(script, "this is not json")
	}
	script = append(script, questionJSON("What is a goroutine?"))

	synth := &scriptedSynthesizer{script: script}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 1, MaxRetries: 10}
	quiz, err := generator.GenerateQuiz(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateQuiz() error: %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(quiz.Questions))
	}
	if synth.calls != 10 {
		t.Errorf("expected exactly 10 synthesizer calls, got %d", synth.calls)
	}
}

func TestGenerateQuizDuplicateExhaustsSlot(t *testing.T) {
	// Every call yields the same prompt: slot 0 accepts it, slot 1 burns
	// its whole retry budget on duplicates.
	synth := &scriptedSynthesizer{script: []string{questionJSON("Q")}}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 2, MaxRetries: 5}
	quiz, err := generator.GenerateQuiz(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateQuiz() error: %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Errorf("expected 1 question, got %d", len(quiz.Questions))
	}
	if synth.calls != 6 {
		t.Errorf("expected 1+5=6 synthesizer calls, got %d", synth.calls)
	}
}

func TestGenerateQuizExhaustionIsNotFatal(t *testing.T) {
	synth := &scriptedSynthesizer{script: []string{"garbage"}}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 1, MaxRetries: 3}
	quiz, err := generator.GenerateQuiz(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no terminal error on exhaustion, got %v", err)
	}
	if len(quiz.Questions) != 0 {
		t.Errorf("expected empty bank, got %d questions", len(quiz.Questions))
	}
	if synth.calls != 3 {
		t.Errorf("expected exactly 3 synthesizer calls, got %d", synth.calls)
	}
}

func TestGenerateQuizSkipsMalformedCandidates(t *testing.T) {
	// A decodable payload whose answer references no choice must be
	// treated like any other parse failure, never accepted.
	badAnswer := `{
		"question": "Which keyword starts a goroutine?",
		"choices": [{"key": "A", "value": "go"}, {"key": "B", "value": "run"}],
		"answer": "Z",
		"explanation": "nope"
	}`
	synth := &scriptedSynthesizer{script: []string{badAnswer, questionJSON("Which keyword starts a goroutine?")}}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 1, MaxRetries: 5}
	quiz, err := generator.GenerateQuiz(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateQuiz() error: %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(quiz.Questions))
	}
	if synth.calls != 2 {
		t.Errorf("expected 2 synthesizer calls, got %d", synth.calls)
	}
	if !quiz.Questions[0].IsWellFormed() {
		t.Errorf("accepted question is not well-formed: %+v", quiz.Questions[0])
	}
}

// cancellingSynthesizer cancels the run after a fixed number of calls.
type cancellingSynthesizer struct {
	inner       countingSynthesizer
	cancelAfter int
	cancel      context.CancelFunc
}

func (s *cancellingSynthesizer) Synthesize(ctx context.Context, topic string, passages []string) (string, error) {
	raw, err := s.inner.Synthesize(ctx, topic, passages)
	if s.inner.calls >= s.cancelAfter {
		s.cancel()
	}
	return raw, err
}

func TestGenerateQuizCancellationReturnsPartialBank(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	synth := &cancellingSynthesizer{cancelAfter: 1, cancel: cancel}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 5, MaxRetries: 10}
	quiz, err := generator.GenerateQuiz(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if quiz == nil {
		t.Fatal("expected partial quiz alongside cancellation error")
	}
	if len(quiz.Questions) != 1 {
		t.Errorf("expected 1 question in partial bank, got %d", len(quiz.Questions))
	}
}

func TestGenerateQuizStreamDeliversQuestions(t *testing.T) {
	synth := &countingSynthesizer{}
	generator := NewQuizGenerator(synth, nil)

	req := GenerationRequest{Topic: "Go", NumQuestions: 4, MaxRetries: 10}
	questionChan, err := generator.GenerateQuizStream(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateQuizStream() error: %v", err)
	}

	var received []Question
	for q := range questionChan {
		received = append(received, q)
	}
	if len(received) != 4 {
		t.Errorf("expected 4 streamed questions, got %d", len(received))
	}
	seen := make(map[string]bool)
	for _, q := range received {
		if seen[q.Prompt] {
			t.Errorf("duplicate prompt streamed: %q", q.Prompt)
		}
		seen[q.Prompt] = true
	}
}

// failingRetriever simulates a missing collection.
type failingRetriever struct{}

func (failingRetriever) Retrieve(ctx context.Context, topic string) ([]string, error) {
	return nil, errors.New("collection has not been created")
}

func TestGenerateQuizRetrieverFailureIsTerminal(t *testing.T) {
	synth := &countingSynthesizer{}
	generator := NewQuizGenerator(synth, failingRetriever{})

	req := GenerationRequest{Topic: "Go", NumQuestions: 2, MaxRetries: 10}
	_, err := generator.GenerateQuiz(context.Background(), req)
	if err == nil {
		t.Fatal("expected retrieval failure to be terminal")
	}
	if synth.calls != 0 {
		t.Errorf("expected zero synthesizer calls, got %d", synth.calls)
	}
}

// passingRetriever records what it was asked and returns fixed passages.
type passingRetriever struct {
	topics []string
}

func (r *passingRetriever) Retrieve(ctx context.Context, topic string) ([]string, error) {
	r.topics = append(r.topics, topic)
	return []string{"passage one", "passage two"}, nil
}

func TestGenerateQuizPassesContextToSynthesizer(t *testing.T) {
	var gotPassages []string
	synth := synthFunc(func(ctx context.Context, topic string, passages []string) (string, error) {
		gotPassages = passages
		return questionJSON("What is a channel?"), nil
	})
	retriever := &passingRetriever{}
	generator := NewQuizGenerator(synth, retriever)

	req := GenerationRequest{Topic: "Go", NumQuestions: 1, MaxRetries: 3}
	if _, err := generator.GenerateQuiz(context.Background(), req); err != nil {
		t.Fatalf("GenerateQuiz() error: %v", err)
	}
	if len(retriever.topics) != 1 || retriever.topics[0] != "Go" {
		t.Errorf("retriever topics = %v, expected one query for Go", retriever.topics)
	}
	if len(gotPassages) != 2 {
		t.Errorf("expected 2 passages forwarded to synthesizer, got %d", len(gotPassages))
	}
}

type synthFunc func(ctx context.Context, topic string, passages []string) (string, error)

func (f synthFunc) Synthesize(ctx context.Context, topic string, passages []string) (string, error) {
	return f(ctx, topic, passages)
}

func TestNewGenerationRequestDefaults(t *testing.T) {
	req, err := NewGenerationRequest("", 3)
	if err != nil {
		t.Fatalf("NewGenerationRequest() error: %v", err)
	}
	if req.Topic != DefaultTopic {
		t.Errorf("expected default topic %q, got %q", DefaultTopic, req.Topic)
	}
	if req.MaxRetries != DefaultMaxRetries {
		t.Errorf("expected default retries %d, got %d", DefaultMaxRetries, req.MaxRetries)
	}

	if _, err := NewGenerationRequest("Go", 11); !errors.Is(err, ErrTooManyQuestions) {
		t.Errorf("expected ErrTooManyQuestions for 11 questions, got %v", err)
	}
}
