package quizbuilder

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"
)

// Synthesizer produces one raw candidate question per call. The returned
// string is expected to decode as the question JSON shape; anything else
// is handled by the parser as a recoverable failure. Call errors
// (transport problems, timeouts) consume a retry cycle like malformed
// output does. Only construction of the synthesizer may fail terminally.
type Synthesizer interface {
	Synthesize(ctx context.Context, topic string, passages []string) (string, error)
}

// QuizGenerator orchestrates synthesis, parsing and deduplication into a
// finished quiz. It owns the question bank for the duration of a run; the
// bank is handed off inside the returned Quiz once the run completes.
type QuizGenerator struct {
	maker     Synthesizer
	retriever ContextRetriever
	logger    *LLMLogger
}

// NewQuizGenerator creates a generator. The retriever may be nil, in
// which case questions are grounded on the topic alone.
func NewQuizGenerator(maker Synthesizer, retriever ContextRetriever) *QuizGenerator {
	return &QuizGenerator{
		maker:     maker,
		retriever: retriever,
	}
}

// SetLogger attaches a per-quiz LLM interaction logger.
func (qg *QuizGenerator) SetLogger(logger *LLMLogger) {
	qg.logger = logger
}

// GenerateQuiz generates a complete quiz for the request. Slots are
// filled strictly in order; each slot gets at most req.MaxRetries
// synthesis cycles and an exhausted slot is skipped rather than aborting
// the run, so the result may hold fewer questions than requested
// (Quiz.Requested records the asked-for count). If the context is
// cancelled the partial quiz assembled so far is returned together with
// the context error.
func (qg *QuizGenerator) GenerateQuiz(ctx context.Context, req GenerationRequest) (*Quiz, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	log.Printf("Starting quiz generation for topic: %s, target questions: %d", req.Topic, req.NumQuestions)

	passages, err := qg.retrieve(ctx, req.Topic)
	if err != nil {
		return nil, err
	}

	quiz := &Quiz{
		ID:        generateQuizID(),
		Topic:     req.Topic,
		Questions: make(QuestionBank, 0, req.NumQuestions),
		Requested: req.NumQuestions,
		CreatedAt: time.Now(),
	}

	for slot := 0; slot < req.NumQuestions; slot++ {
		question, err := qg.fillSlot(ctx, req.Topic, passages, quiz.Questions, slot, maxRetries)
		if err != nil {
			// Cancelled between cycles: hand back what we have.
			log.Printf("Quiz %s cancelled after %d questions: %v", quiz.ID, len(quiz.Questions), err)
			return quiz, err
		}
		if question == nil {
			continue
		}
		quiz.Questions = append(quiz.Questions, *question)
	}

	if len(quiz.Questions) < req.NumQuestions {
		log.Printf("Quiz %s: filled %d of %d slots", quiz.ID, len(quiz.Questions), req.NumQuestions)
	}
	log.Printf("Quiz generation complete: %d questions for topic '%s'", len(quiz.Questions), quiz.Topic)
	return quiz, nil
}

// GenerateQuizStream runs the same slot loop in the background and
// delivers accepted questions over the returned channel as they are
// produced. The channel is closed when every slot has been attempted or
// the context is cancelled. Request validation and retrieval failures
// surface before the stream starts.
func (qg *QuizGenerator) GenerateQuizStream(ctx context.Context, req GenerationRequest) (<-chan Question, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	passages, err := qg.retrieve(ctx, req.Topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Question)
	go func() {
		defer close(out)

		bank := make(QuestionBank, 0, req.NumQuestions)
		for slot := 0; slot < req.NumQuestions; slot++ {
			question, err := qg.fillSlot(ctx, req.Topic, passages, bank, slot, maxRetries)
			if err != nil {
				log.Printf("Quiz stream cancelled after %d questions: %v", len(bank), err)
				return
			}
			if question == nil {
				continue
			}
			bank = append(bank, *question)
			select {
			case out <- *question:
			case <-ctx.Done():
				return
			}
		}
		if len(bank) < req.NumQuestions {
			log.Printf("Quiz stream: filled %d of %d slots", len(bank), req.NumQuestions)
		}
	}()
	return out, nil
}

// fillSlot runs up to maxRetries synthesize/parse/validate cycles for a
// single slot. It returns the accepted question, or nil when the slot
// exhausted its retries. A non-nil error only means the context was
// cancelled; every per-cycle failure is absorbed here.
func (qg *QuizGenerator) fillSlot(ctx context.Context, topic string, passages []string, bank QuestionBank, slot, maxRetries int) (*Question, error) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		// Cancellation is only checked between cycles, never mid-call.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := qg.maker.Synthesize(ctx, topic, passages)
		if err != nil {
			VerboseLog("Slot %d attempt %d: synthesis call failed: %v", slot, attempt, err)
			qg.logCycle(slot, attempt, "call-failure", err.Error())
			continue
		}
		if qg.logger != nil {
			qg.logger.LogLLMResponse("QuestionMaker", raw)
		}

		question, err := ParseQuestion(raw)
		if err != nil {
			VerboseLog("Slot %d attempt %d: %v", slot, attempt, err)
			qg.logCycle(slot, attempt, "parse-failure", err.Error())
			continue
		}

		if !IsUnique(question, bank) {
			VerboseLog("Slot %d attempt %d: duplicate question %q", slot, attempt, question.Prompt)
			qg.logCycle(slot, attempt, "duplicate", question.Prompt)
			continue
		}
		if near := NearDuplicates(question, bank); len(near) > 0 {
			VerboseLog("Slot %d: accepted question is a near rewording of %d existing prompt(s)", slot, len(near))
		}

		qg.logCycle(slot, attempt, "accepted", question.Prompt)
		return question, nil
	}

	log.Printf("Slot %d exhausted after %d attempts, leaving it unfilled", slot, maxRetries)
	if qg.logger != nil {
		qg.logger.LogSlotExhausted(slot, maxRetries)
	}
	return nil, nil
}

func (qg *QuizGenerator) retrieve(ctx context.Context, topic string) ([]string, error) {
	if qg.retriever == nil {
		return nil, nil
	}
	passages, err := qg.retriever.Retrieve(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context for topic %q: %w", topic, err)
	}
	VerboseLog("Retrieved %d context passages for topic %q", len(passages), topic)
	return passages, nil
}

func (qg *QuizGenerator) logCycle(slot, attempt int, outcome, detail string) {
	if qg.logger != nil {
		qg.logger.LogCycleResult(slot, attempt, outcome, detail)
	}
}

func generateQuizID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
