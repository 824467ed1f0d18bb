package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"quizbuilder"

	"github.com/joho/godotenv"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	var (
		topic        = flag.String("topic", "", "Quiz topic (empty uses the default topic)")
		numQuestions = flag.Int("questions", 5, "Number of questions to generate (max 10)")
		maxRetries   = flag.Int("retries", quizbuilder.DefaultMaxRetries, "Synthesis attempts per question slot")
		indexName    = flag.String("index", os.Getenv("QUIZ_INDEX"), "Pinecone index to retrieve context from (empty disables retrieval)")
		namespace    = flag.String("namespace", "quizbuilder", "Pinecone namespace")
		outputFile   = flag.String("output", "", "Output file for quiz JSON (default: stdout)")
		playMode     = flag.Bool("play", false, "Play the quiz interactively")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	// Missing .env is fine; the variables may come from the environment.
	_ = godotenv.Load()

	quizbuilder.SetVerbose(*verbose)

	maker, err := quizbuilder.NewQuestionMaker(os.Getenv("OPENAI_API_KEY"))
	if err != nil {
		log.Fatalf("Cannot start generation: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var retriever quizbuilder.ContextRetriever
	if *indexName != "" {
		retriever, err = buildRetriever(ctx, *indexName, *namespace)
		if err != nil {
			log.Fatalf("Failed to set up context retrieval: %v", err)
		}
	}

	generator := quizbuilder.NewQuizGenerator(maker, retriever)

	req, err := quizbuilder.NewGenerationRequest(*topic, *numQuestions)
	if err != nil {
		log.Fatalf("Invalid request: %v", err)
	}
	req.MaxRetries = *maxRetries

	if *playMode {
		playQuiz(ctx, generator, req)
		return
	}

	quiz, err := generator.GenerateQuiz(ctx, req)
	if err != nil {
		log.Fatalf("Failed to generate quiz: %v", err)
	}
	if len(quiz.Questions) < quiz.Requested {
		log.Printf("Warning: generated %d of %d requested questions", len(quiz.Questions), quiz.Requested)
	}

	output, err := json.MarshalIndent(quiz, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal quiz: %v", err)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			log.Fatalf("Failed to write output file: %v", err)
		}
		log.Printf("Quiz saved to: %s", *outputFile)
	} else {
		fmt.Println(string(output))
	}
}

func buildRetriever(ctx context.Context, indexName, namespace string) (quizbuilder.ContextRetriever, error) {
	pineconeAPIKey := os.Getenv("PINECONE_API_KEY")
	if pineconeAPIKey == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY is required when -index is set")
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

	return quizbuilder.NewPineconeRetriever(ctx, pc, indexName, namespace, embedder)
}

func playQuiz(ctx context.Context, generator *quizbuilder.QuizGenerator, req quizbuilder.GenerationRequest) {
	fmt.Printf("Starting quiz on: %s (%d questions)\n", req.Topic, req.NumQuestions)
	fmt.Println("Generating questions... (this may take a moment)")
	fmt.Println()

	questionChan, err := generator.GenerateQuizStream(ctx, req)
	if err != nil {
		log.Fatalf("Failed to start quiz stream: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	score := 0
	answered := 0

	for question := range questionChan {
		answered++
		fmt.Printf("Question %d/%d:\n%s\n\n", answered, req.NumQuestions, question.Prompt)
		for _, choice := range question.Choices {
			fmt.Printf("%s) %s\n", choice.Key, choice.Value)
		}
		fmt.Println()

		answer := readAnswer(scanner, question.Choices)
		if answer == question.Answer {
			fmt.Println("Correct!")
			score++
		} else {
			if correct, ok := question.CorrectChoice(); ok {
				fmt.Printf("Incorrect. The correct answer is %s) %s\n", correct.Key, correct.Value)
			}
		}
		if question.Explanation != "" {
			fmt.Printf("Explanation: %s\n", question.Explanation)
		}
		fmt.Println()
		fmt.Println(strings.Repeat("-", 50))
		fmt.Println()
	}

	if answered == 0 {
		fmt.Println("No questions could be generated for this topic.")
		return
	}

	percentage := float64(score) / float64(answered) * 100
	fmt.Printf("Quiz complete! Score: %d/%d (%.1f%%)\n", score, answered, percentage)
	if answered < req.NumQuestions {
		fmt.Printf("(%d of %d requested questions could be generated)\n", answered, req.NumQuestions)
	}
}

func readAnswer(scanner *bufio.Scanner, choices []quizbuilder.Choice) string {
	keys := make([]string, len(choices))
	for i, c := range choices {
		keys[i] = c.Key
	}
	for {
		fmt.Printf("Your answer (%s): ", strings.Join(keys, "/"))
		if !scanner.Scan() {
			return ""
		}
		answer := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		for _, key := range keys {
			if answer == key {
				return answer
			}
		}
		fmt.Printf("Please enter one of %s\n", strings.Join(keys, ", "))
	}
}
