package quizbuilder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes a per-quiz log of all LLM traffic and cycle outcomes.
type LLMLogger struct {
	file   *os.File
	mu     sync.Mutex
	quizID string
}

// NewLLMLogger creates a new LLM logger for a specific quiz.
func NewLLMLogger(quizID string, req GenerationRequest) (*LLMLogger, error) {
	if err := os.MkdirAll("log", 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join("log", fmt.Sprintf("%s.log", quizID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{
		file:   file,
		quizID: quizID,
	}

	logger.Logf("=== Quiz Generation Log ===\n")
	logger.Logf("Quiz ID: %s\n", quizID)
	logger.Logf("Topic: %s\n", req.Topic)
	logger.Logf("Number of Questions: %d\n", req.NumQuestions)
	logger.Logf("Max Retries per Slot: %d\n", req.MaxRetries)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("========================\n\n")

	return logger, nil
}

// Logf writes a formatted log entry with timestamp.
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	message := fmt.Sprintf(format, args...)

	fmt.Fprintf(ll.file, "[%s] %s", timestamp, message)
	ll.file.Sync()
}

// LogLLMRequest logs an LLM request.
func (ll *LLMLogger) LogLLMRequest(module, prompt string) {
	ll.Logf("=== LLM REQUEST (%s) ===\n", module)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

// LogLLMResponse logs a raw LLM response.
func (ll *LLMLogger) LogLLMResponse(module, response string) {
	ll.Logf("=== LLM RESPONSE (%s) ===\n", module)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogCycleResult records the outcome of one synthesize/parse/validate
// cycle for a slot.
func (ll *LLMLogger) LogCycleResult(slot, attempt int, outcome, detail string) {
	ll.Logf("Slot %d attempt %d: %s - %s\n", slot, attempt, outcome, detail)
}

// LogSlotExhausted records a slot that consumed its whole retry budget
// without an accepted question.
func (ll *LLMLogger) LogSlotExhausted(slot, attempts int) {
	ll.Logf("Slot %d: EXHAUSTED after %d attempts, left unfilled\n", slot, attempts)
}

// Close closes the log file.
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file != nil {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(ll.file, "[%s] === Quiz Generation Complete: %s ===\n", timestamp, time.Now().Format(time.RFC3339))
		return ll.file.Close()
	}
	return nil
}
