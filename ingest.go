package quizbuilder

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"google.golang.org/protobuf/types/known/structpb"
)

// CollectionCreator ingests source documents, splits them into chunks,
// embeds the chunks and upserts them into a Pinecone index so the
// retriever can ground quiz questions on them.
type CollectionCreator struct {
	pc           *pinecone.Client
	embedder     embeddings.Embedder
	indexName    string
	namespace    string
	chunkSize    int
	chunkOverlap int
}

// NewCollectionCreator creates an ingestion pipeline for the given index.
func NewCollectionCreator(pc *pinecone.Client, embedder embeddings.Embedder, indexName, namespace string) *CollectionCreator {
	return &CollectionCreator{
		pc:           pc,
		embedder:     embedder,
		indexName:    indexName,
		namespace:    namespace,
		chunkSize:    1000,
		chunkOverlap: 100,
	}
}

// SetChunking overrides the splitter parameters.
func (cc *CollectionCreator) SetChunking(size, overlap int) {
	if size > 0 {
		cc.chunkSize = size
	}
	if overlap >= 0 {
		cc.chunkOverlap = overlap
	}
}

// LoadDocuments reads the given files into documents. PDF files go
// through the PDF loader, everything else is treated as plain text. Each
// document's metadata records its source path.
func (cc *CollectionCreator) LoadDocuments(ctx context.Context, paths []string) ([]schema.Document, error) {
	var docs []schema.Document
	for _, path := range paths {
		loaded, err := loadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		for i := range loaded {
			if loaded[i].Metadata == nil {
				loaded[i].Metadata = map[string]any{}
			}
			loaded[i].Metadata["source"] = path
		}
		docs = append(docs, loaded...)
	}
	log.Printf("Loaded %d documents from %d files", len(docs), len(paths))
	return docs, nil
}

func loadFile(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return documentloaders.NewPDF(f, info.Size()).Load(ctx)
	}
	return documentloaders.NewText(f).Load(ctx)
}

// CreateCollection splits the documents into chunks, embeds them and
// upserts the vectors. It creates the index first if it does not exist.
// Calling it with no documents is an error.
func (cc *CollectionCreator) CreateCollection(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return ErrNoDocuments
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cc.chunkSize),
		textsplitter.WithChunkOverlap(cc.chunkOverlap),
		textsplitter.WithSeparators([]string{"\n"}),
	)
	chunks, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return fmt.Errorf("failed to split documents: %w", err)
	}
	log.Printf("Split %d documents into %d chunks", len(docs), len(chunks))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.PageContent
	}

	vectors, err := cc.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("embedding produced no vectors")
	}

	if err := cc.ensureIndex(ctx, int32(len(vectors[0]))); err != nil {
		return err
	}

	return cc.upsert(ctx, chunks, vectors)
}

// ensureIndex creates the serverless index if missing and waits for it
// to become ready.
func (cc *CollectionCreator) ensureIndex(ctx context.Context, dimension int32) error {
	indexes, err := cc.pc.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == cc.indexName {
			return nil
		}
	}

	deletionProtection := pinecone.DeletionProtectionDisabled
	metric := pinecone.Cosine
	_, err = cc.pc.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:               cc.indexName,
		Dimension:          &dimension,
		Metric:             &metric,
		Cloud:              pinecone.Aws,
		Region:             "us-east-1",
		DeletionProtection: &deletionProtection,
	})
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", cc.indexName, err)
	}
	log.Printf("Created index %s, waiting for it to become ready", cc.indexName)

	for {
		idx, err := cc.pc.DescribeIndex(ctx, cc.indexName)
		if err != nil {
			return fmt.Errorf("failed to describe index %s: %w", cc.indexName, err)
		}
		if idx.Status.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (cc *CollectionCreator) upsert(ctx context.Context, chunks []schema.Document, vectors [][]float32) error {
	idxDesc, err := cc.pc.DescribeIndex(ctx, cc.indexName)
	if err != nil {
		return fmt.Errorf("failed to describe index %s: %w", cc.indexName, err)
	}
	idxConn, err := cc.pc.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: cc.namespace,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to index %s: %w", cc.indexName, err)
	}

	records := make([]*pinecone.Vector, len(chunks))
	for i, chunk := range chunks {
		source, _ := chunk.Metadata["source"].(string)
		metadata, err := structpb.NewStruct(map[string]any{
			"text":       chunk.PageContent,
			"source":     source,
			"created_at": time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("failed to build metadata for chunk %d: %w", i, err)
		}
		records[i] = &pinecone.Vector{
			Id:       fmt.Sprintf("chunk-%d", i),
			Values:   &vectors[i],
			Metadata: metadata,
		}
	}

	const batchSize = 100
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		count, err := idxConn.UpsertVectors(ctx, records[start:end])
		if err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
		VerboseLog("Upserted %d vectors (batch starting at %d)", count, start)
	}

	log.Printf("Successfully created collection: %d chunks in index %s", len(records), cc.indexName)
	return nil
}
