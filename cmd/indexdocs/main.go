package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quizbuilder"

	"github.com/joho/godotenv"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// indexdocs ingests source documents into the Pinecone index that the
// quiz generator retrieves context from.
func main() {
	var (
		indexName    = flag.String("index", os.Getenv("QUIZ_INDEX"), "Pinecone index name")
		namespace    = flag.String("namespace", "quizbuilder", "Pinecone namespace")
		chunkSize    = flag.Int("chunk-size", 1000, "Chunk size in characters")
		chunkOverlap = flag.Int("chunk-overlap", 100, "Chunk overlap in characters")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	_ = godotenv.Load()
	quizbuilder.SetVerbose(*verbose)

	if *indexName == "" {
		log.Fatal("Index name is required. Use -index or set QUIZ_INDEX.")
	}
	if flag.NArg() == 0 {
		log.Fatal("Usage: indexdocs [flags] <file-or-directory>...")
	}

	pineconeAPIKey := os.Getenv("PINECONE_API_KEY")
	if pineconeAPIKey == "" {
		log.Fatal("PINECONE_API_KEY environment variable is required")
	}
	if os.Getenv("OPENAI_API_KEY") == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: pineconeAPIKey})
	if err != nil {
		log.Fatalf("Failed to create Pinecone client: %v", err)
	}

	llm, err := openai.New()
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	paths, err := collectFiles(flag.Args())
	if err != nil {
		log.Fatalf("Failed to collect input files: %v", err)
	}
	if len(paths) == 0 {
		log.Fatal("No ingestable files found (looking for .txt, .md, .pdf)")
	}
	log.Printf("Ingesting %d files into index %s", len(paths), *indexName)

	creator := quizbuilder.NewCollectionCreator(pc, embedder, *indexName, *namespace)
	creator.SetChunking(*chunkSize, *chunkOverlap)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	docs, err := creator.LoadDocuments(ctx, paths)
	if err != nil {
		log.Fatalf("Failed to load documents: %v", err)
	}

	if err := creator.CreateCollection(ctx, docs); err != nil {
		log.Fatalf("Failed to create collection: %v", err)
	}
}

// collectFiles expands the arguments into a flat list of ingestable
// files, walking directories recursively.
func collectFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".txt", ".md", ".pdf":
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
