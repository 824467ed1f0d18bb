package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"quizbuilder"

	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

type Server struct {
	db        *quizbuilder.DB
	store     *sessions.CookieStore
	templates map[string]*template.Template
	maker     *quizbuilder.QuestionMaker
	retriever quizbuilder.ContextRetriever
}

func main() {
	_ = godotenv.Load()
	quizbuilder.SetVerbose(true)

	maker, err := quizbuilder.NewQuestionMaker(os.Getenv("OPENAI_API_KEY"))
	if err != nil {
		log.Fatalf("Cannot start server: %v", err)
	}

	var retriever quizbuilder.ContextRetriever
	if indexName := os.Getenv("QUIZ_INDEX"); indexName != "" {
		retriever, err = buildRetriever(indexName)
		if err != nil {
			log.Fatalf("Failed to set up context retrieval: %v", err)
		}
		log.Printf("Context retrieval enabled from index %s", indexName)
	}

	db, err := quizbuilder.OpenDB("./quiz.db")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		sessionKey = "quizbuilder-dev-key"
	}
	store := sessions.NewCookieStore([]byte(sessionKey))

	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}

	templates := make(map[string]*template.Template)
	for _, name := range []string{"home", "new_quiz", "generating", "question"} {
		file := fmt.Sprintf("templates/%s.html", name)
		templates[name] = template.Must(template.New(name).Funcs(funcMap).ParseFiles("templates/base.html", file))
	}

	server := &Server{
		db:        db,
		store:     store,
		templates: templates,
		maker:     maker,
		retriever: retriever,
	}

	http.HandleFunc("/", server.handleHome)
	http.HandleFunc("/quiz/new", server.handleNewQuiz)
	http.HandleFunc("/quiz/", server.handleQuiz)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8180"
	}

	log.Printf("Starting server on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func buildRetriever(indexName string) (quizbuilder.ContextRetriever, error) {
	pineconeAPIKey := os.Getenv("PINECONE_API_KEY")
	if pineconeAPIKey == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY is required when QUIZ_INDEX is set")
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: pineconeAPIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	llm, err := openai.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return quizbuilder.NewPineconeRetriever(ctx, pc, indexName, "quizbuilder", embedder)
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	if err := s.templates[name].ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Template error in %s: %v", name, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	quizzes, err := s.db.GetQuizzes(0)
	if err != nil {
		log.Printf("Failed to get quizzes: %v", err)
		http.Error(w, "Failed to get quizzes", http.StatusInternalServerError)
		return
	}

	var visible []quizbuilder.DBQuiz
	for _, quiz := range quizzes {
		if quiz.Status == "ready" || quiz.Status == "completed" {
			visible = append(visible, quiz)
		}
	}

	s.render(w, "home", map[string]interface{}{"Quizzes": visible})
}

func (s *Server) handleNewQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, "new_quiz", map[string]interface{}{"MaxQuestions": quizbuilder.MaxQuestions})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	topic := strings.TrimSpace(r.FormValue("topic"))
	numQuestions, err := strconv.Atoi(r.FormValue("num_questions"))
	if err != nil {
		http.Error(w, "Invalid question count", http.StatusBadRequest)
		return
	}

	req, err := quizbuilder.NewGenerationRequest(topic, numQuestions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	quiz := &quizbuilder.DBQuiz{
		ID:           fmt.Sprintf("%d", time.Now().UnixNano()),
		Topic:        req.Topic,
		NumQuestions: req.NumQuestions,
		CreatedAt:    time.Now(),
		Status:       "generating",
	}
	if err := s.db.CreateQuiz(quiz); err != nil {
		log.Printf("Failed to create quiz: %v", err)
		http.Error(w, "Failed to create quiz", http.StatusInternalServerError)
		return
	}

	// Each run gets its own generator so its LLM log stays per-quiz.
	generator := quizbuilder.NewQuizGenerator(s.maker, s.retriever)
	go s.db.RunGeneration(generator, quiz.ID, req)

	http.Redirect(w, r, "/quiz/"+quiz.ID, http.StatusSeeOther)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := strings.TrimPrefix(r.URL.Path, "/quiz/")
	if quizID == "" || strings.Contains(quizID, "/") {
		http.NotFound(w, r)
		return
	}

	quiz, err := s.db.GetQuiz(quizID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if quiz.Status == "failed" {
		http.Error(w, "Quiz generation failed", http.StatusInternalServerError)
		return
	}

	rows, err := s.db.GetQuestions(quizID)
	if err != nil {
		log.Printf("Failed to get questions for quiz %s: %v", quizID, err)
		http.Error(w, "Failed to get questions", http.StatusInternalServerError)
		return
	}

	if len(rows) == 0 {
		if quiz.Status == "generating" || quiz.Status == "ready" {
			s.render(w, "generating", map[string]interface{}{"Quiz": quiz})
			return
		}
		http.Error(w, "No questions could be generated for this quiz", http.StatusInternalServerError)
		return
	}

	bank := make(quizbuilder.QuestionBank, 0, len(rows))
	for _, row := range rows {
		question, err := row.ToQuestion()
		if err != nil {
			log.Printf("Failed to decode question %s: %v", row.ID, err)
			continue
		}
		bank = append(bank, *question)
	}
	navigator := quizbuilder.NewQuizNavigator(bank)

	session, _ := s.store.Get(r, "quizbuilder")
	indexKey := "idx:" + quizID
	index, _ := session.Values[indexKey].(int)
	index = navigator.Advance(index, 0)

	var feedback map[string]interface{}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		switch r.FormValue("action") {
		case "next":
			index = navigator.Advance(index, 1)
		case "prev":
			index = navigator.Advance(index, -1)
		case "answer":
			question := navigator.QuestionAt(index)
			submitted := r.FormValue("choice")
			correct, _ := question.CorrectChoice()
			feedback = map[string]interface{}{
				"Submitted": submitted,
				"IsCorrect": submitted == question.Answer,
				"Correct":   correct,
			}
		}
		session.Values[indexKey] = index
		if err := session.Save(r, w); err != nil {
			log.Printf("Failed to save session: %v", err)
		}
	}

	question := navigator.QuestionAt(index)
	s.render(w, "question", map[string]interface{}{
		"Quiz":       quiz,
		"Question":   question,
		"Index":      index,
		"Total":      navigator.Size(),
		"Generating": quiz.Status != "completed",
		"Feedback":   feedback,
	})
}
