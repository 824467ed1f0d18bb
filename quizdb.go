package quizbuilder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB persists finished quizzes and their questions.
type DB struct {
	db *sql.DB
}

// DBQuiz is a quiz row.
type DBQuiz struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	NumQuestions int       `json:"num_questions"`
	CreatedAt    time.Time `json:"created_at"`
	Status       string    `json:"status"` // "generating", "ready", "completed", "failed"
}

// DBQuestion is a question row. Choices holds the ordered key/value
// pairs encoded as JSON.
type DBQuestion struct {
	ID          string `json:"id"`
	QuizID      string `json:"quiz_id"`
	QuestionNum int    `json:"question_num"`
	Prompt      string `json:"prompt"`
	Choices     string `json:"choices"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// OpenDB opens a new database connection.
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// CloseDB closes the database connection.
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist.
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			num_questions INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'generating'
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			choices TEXT NOT NULL,
			answer TEXT NOT NULL,
			explanation TEXT,
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// CreateQuiz creates a new quiz row.
func (db *DB) CreateQuiz(quiz *DBQuiz) error {
	_, err := db.db.Exec(
		"INSERT INTO quizzes (id, topic, num_questions, created_at, status) VALUES (?, ?, ?, ?, ?)",
		quiz.ID, quiz.Topic, quiz.NumQuestions, quiz.CreatedAt, quiz.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}
	return nil
}

// GetQuiz retrieves a quiz by ID.
func (db *DB) GetQuiz(id string) (*DBQuiz, error) {
	var quiz DBQuiz
	err := db.db.QueryRow(
		"SELECT id, topic, num_questions, created_at, status FROM quizzes WHERE id = ?",
		id,
	).Scan(&quiz.ID, &quiz.Topic, &quiz.NumQuestions, &quiz.CreatedAt, &quiz.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("quiz not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return &quiz, nil
}

// GetQuizzes retrieves all quizzes, optionally limited by count.
func (db *DB) GetQuizzes(limit int) ([]DBQuiz, error) {
	query := "SELECT id, topic, num_questions, created_at, status FROM quizzes ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []DBQuiz
	for rows.Next() {
		var quiz DBQuiz
		err := rows.Scan(&quiz.ID, &quiz.Topic, &quiz.NumQuestions, &quiz.CreatedAt, &quiz.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}

	return quizzes, nil
}

// UpdateQuizStatus updates the status of a quiz.
func (db *DB) UpdateQuizStatus(id, status string) error {
	_, err := db.db.Exec("UPDATE quizzes SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update quiz status: %w", err)
	}
	return nil
}

// CreateQuestion creates a new question row.
func (db *DB) CreateQuestion(question *DBQuestion) error {
	_, err := db.db.Exec(
		"INSERT INTO questions (id, quiz_id, question_num, prompt, choices, answer, explanation) VALUES (?, ?, ?, ?, ?, ?, ?)",
		question.ID, question.QuizID, question.QuestionNum, question.Prompt, question.Choices, question.Answer, question.Explanation,
	)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// GetQuestion retrieves a question by quiz ID and question number.
func (db *DB) GetQuestion(quizID string, questionNum int) (*DBQuestion, error) {
	var question DBQuestion
	err := db.db.QueryRow(
		"SELECT id, quiz_id, question_num, prompt, choices, answer, explanation FROM questions WHERE quiz_id = ? AND question_num = ?",
		quizID, questionNum,
	).Scan(&question.ID, &question.QuizID, &question.QuestionNum, &question.Prompt, &question.Choices, &question.Answer, &question.Explanation)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("question not found: quiz_id=%s, question_num=%d", quizID, questionNum)
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// GetQuestions retrieves all questions for a quiz in display order.
func (db *DB) GetQuestions(quizID string) ([]DBQuestion, error) {
	rows, err := db.db.Query(
		"SELECT id, quiz_id, question_num, prompt, choices, answer, explanation FROM questions WHERE quiz_id = ? ORDER BY question_num",
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []DBQuestion
	for rows.Next() {
		var question DBQuestion
		err := rows.Scan(&question.ID, &question.QuizID, &question.QuestionNum, &question.Prompt, &question.Choices, &question.Answer, &question.Explanation)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, question)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	return questions, nil
}

// CountQuestions returns how many questions a quiz currently has.
func (db *DB) CountQuestions(quizID string) (int, error) {
	var count int
	err := db.db.QueryRow("SELECT COUNT(*) FROM questions WHERE quiz_id = ?", quizID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// GetQuizNumQuestions gets the requested question count for a quiz.
func (db *DB) GetQuizNumQuestions(quizID string) (int, error) {
	var numQuestions int
	err := db.db.QueryRow("SELECT num_questions FROM quizzes WHERE id = ?", quizID).Scan(&numQuestions)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("quiz not found: %s", quizID)
		}
		return 0, fmt.Errorf("failed to get quiz num questions: %w", err)
	}
	return numQuestions, nil
}

// ChoicesToJSON encodes the ordered choice list for storage.
func ChoicesToJSON(choices []Choice) (string, error) {
	data, err := json.Marshal(choices)
	if err != nil {
		return "", fmt.Errorf("failed to marshal choices: %w", err)
	}
	return string(data), nil
}

// JSONToChoices decodes a stored choice column.
func JSONToChoices(choicesJSON string) ([]Choice, error) {
	var choices []Choice
	err := json.Unmarshal([]byte(choicesJSON), &choices)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal choices: %w", err)
	}
	return choices, nil
}

// ToQuestion converts a stored row back into a Question.
func (q *DBQuestion) ToQuestion() (*Question, error) {
	choices, err := JSONToChoices(q.Choices)
	if err != nil {
		return nil, err
	}
	return &Question{
		Prompt:      q.Prompt,
		Choices:     choices,
		Answer:      q.Answer,
		Explanation: q.Explanation,
	}, nil
}

// RunGeneration drives one background generation run, draining the quiz
// stream into the database. The quiz is marked ready as soon as the first
// question lands so the UI can start serving it, and completed when the
// run finishes. Terminal generation failures mark the quiz failed.
func (db *DB) RunGeneration(generator *QuizGenerator, quizID string, req GenerationRequest) {
	logger, err := NewLLMLogger(quizID, req)
	if err != nil {
		log.Printf("Failed to create logger for quiz %s: %v", quizID, err)
		// Continue without logging rather than failing.
	} else {
		generator.SetLogger(logger)
		defer logger.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	questionChan, err := generator.GenerateQuizStream(ctx, req)
	if err != nil {
		log.Printf("Failed to generate quiz %s: %v", quizID, err)
		if err := db.UpdateQuizStatus(quizID, "failed"); err != nil {
			log.Printf("Failed to update quiz status %s: %v", quizID, err)
		}
		return
	}

	questionNum := 1
	firstQuestionStored := false

	for question := range questionChan {
		choicesJSON, err := ChoicesToJSON(question.Choices)
		if err != nil {
			log.Printf("Failed to marshal choices for quiz %s question %d: %v", quizID, questionNum, err)
			continue
		}

		dbQuestion := &DBQuestion{
			ID:          fmt.Sprintf("%s-%d", quizID, questionNum),
			QuizID:      quizID,
			QuestionNum: questionNum,
			Prompt:      question.Prompt,
			Choices:     choicesJSON,
			Answer:      question.Answer,
			Explanation: question.Explanation,
		}

		if err := db.CreateQuestion(dbQuestion); err != nil {
			log.Printf("Failed to store question %s: %v", dbQuestion.ID, err)
			continue
		}

		if !firstQuestionStored {
			if err := db.UpdateQuizStatus(quizID, "ready"); err != nil {
				log.Printf("Failed to update quiz status %s: %v", quizID, err)
			} else {
				log.Printf("Quiz %s marked as ready after first question", quizID)
			}
			firstQuestionStored = true
		}

		questionNum++
	}

	if err := db.UpdateQuizStatus(quizID, "completed"); err != nil {
		log.Printf("Failed to update quiz status to completed %s: %v", quizID, err)
	}
}
