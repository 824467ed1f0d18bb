package quizbuilder

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// QuestionMaker synthesizes candidate questions using GPT-4o. The raw
// tool-call arguments are returned as-is; decoding and validation belong
// to ParseQuestion.
type QuestionMaker struct {
	client *openai.Client
}

// NewQuestionMaker creates a question maker with an OpenAI client. A
// missing API key means the generator cannot be reached at all, which is
// terminal for any run that would use it.
func NewQuestionMaker(apiKey string) (*QuestionMaker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", ErrGeneratorUnavailable)
	}
	return &QuestionMaker{
		client: openai.NewClient(apiKey),
	}, nil
}

// Synthesize generates one candidate question for the topic, grounded on
// the retrieved passages when any are supplied.
func (qm *QuestionMaker) Synthesize(ctx context.Context, topic string, passages []string) (string, error) {
	resp, err := qm.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       openai.GPT4o,
			Temperature: 0.8,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: fmt.Sprintf("You are a subject matter expert on the topic: %s. Create one high-quality multiple choice question with exactly 4 choices.", topic),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: qm.buildPrompt(topic, passages),
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "submit_question",
						Description: "Submit one generated quiz question",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"question": map[string]interface{}{
									"type":        "string",
									"description": "The question text",
								},
								"choices": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"key": map[string]interface{}{
												"type":        "string",
												"description": "Choice label, one of A, B, C, D",
											},
											"value": map[string]interface{}{
												"type":        "string",
												"description": "Choice text",
											},
										},
										"required": []string{"key", "value"},
									},
									"description": "Array of 4 answer choices as key/value pairs",
								},
								"answer": map[string]interface{}{
									"type":        "string",
									"description": "The key of the correct choice",
								},
								"explanation": map[string]interface{}{
									"type":        "string",
									"description": "Why the answer is correct",
								},
							},
							"required": []string{"question", "choices", "answer", "explanation"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_question",
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize question: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from GPT-4o")
	}
	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in response")
	}
	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != "submit_question" {
		return "", fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}

	return toolCall.Function.Arguments, nil
}

func (qm *QuestionMaker) buildPrompt(topic string, passages []string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create one multiple choice question about: %s\n\n", topic))

	sb.WriteString("Follow the instructions to create the quiz question:\n")
	sb.WriteString("1. Generate a question based on the topic and the context as key \"question\"\n")
	sb.WriteString("2. Provide 4 multiple choice answers as an ordered list of key/value pairs under \"choices\", keyed A through D\n")
	sb.WriteString("3. Provide the key of the correct answer as \"answer\"\n")
	sb.WriteString("4. Provide an explanation of why the answer is correct as \"explanation\"\n")
	sb.WriteString("Use the submit_question tool to return the question.\n")

	if len(passages) > 0 {
		sb.WriteString("\nContext:\n")
		for _, passage := range passages {
			sb.WriteString(passage)
			sb.WriteString("\n\n")
		}
	}

	return sb.String()
}
