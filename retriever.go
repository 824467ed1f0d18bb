package quizbuilder

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
)

// ContextRetriever supplies text passages relevant to a topic. The order
// of the returned passages carries no meaning and the slice may be empty.
type ContextRetriever interface {
	Retrieve(ctx context.Context, topic string) ([]string, error)
}

// PineconeRetriever retrieves passages by similarity search over a
// Pinecone index populated by the ingestion pipeline. The topic is
// embedded and the nearest chunks are returned from vector metadata.
type PineconeRetriever struct {
	index    *pinecone.IndexConnection
	embedder embeddings.Embedder
	topK     uint32
}

// NewPineconeRetriever connects to an existing index. A missing index is
// an error here: the collection must be created before generation starts.
func NewPineconeRetriever(ctx context.Context, pc *pinecone.Client, indexName, namespace string, embedder embeddings.Embedder) (*PineconeRetriever, error) {
	idxDesc, err := pc.DescribeIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", indexName, err)
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", indexName, err)
	}

	return &PineconeRetriever{
		index:    idxConn,
		embedder: embedder,
		topK:     4,
	}, nil
}

// SetTopK changes how many passages a query returns.
func (pr *PineconeRetriever) SetTopK(topK uint32) {
	if topK > 0 {
		pr.topK = topK
	}
}

// Retrieve embeds the topic and returns the text of the nearest chunks.
func (pr *PineconeRetriever) Retrieve(ctx context.Context, topic string) ([]string, error) {
	vector, err := pr.embedder.EmbedQuery(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to embed topic: %w", err)
	}

	result, err := pr.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            pr.topK,
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	var passages []string
	for _, match := range result.Matches {
		if match.Vector == nil || match.Vector.Metadata == nil {
			continue
		}
		metadata := match.Vector.Metadata.AsMap()
		if text, ok := metadata["text"].(string); ok && text != "" {
			passages = append(passages, text)
		}
	}
	return passages, nil
}
