package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client        *openai.Client
	model         string
	classifyModel string
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

func NewOpenAI(apiKey, baseURL, model, classifyModel, referrer, title string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	// Inject optional headers (useful for OpenRouter)
	if referrer != "" || title != "" {
		h := http.Header{}
		if referrer != "" {
			h.Set("HTTP-Referer", referrer)
		}
		if title != "" {
			h.Set("X-Title", title)
		}
		base := http.DefaultTransport
		config.HTTPClient = &http.Client{Transport: headerTransport{rt: base, headers: h}}
	}
	if classifyModel == "" {
		classifyModel = model
	}
	return &OpenAIClient{
		client:        openai.NewClientWithConfig(config),
		model:         model,
		classifyModel: classifyModel,
	}
}

func (c *OpenAIClient) CompleteStreaming(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error) {
	var oaMsgs []openai.ChatCompletionMessage
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: oaMsgs,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	var accumulated string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return accumulated, nil
		}
		if err != nil {
			// Whatever was already forwarded stays with the caller.
			return accumulated, fmt.Errorf("completion stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		accumulated += delta
		if onDelta != nil {
			onDelta(delta)
		}
	}
}

func (c *OpenAIClient) Classify(ctx context.Context, rubricPrompt, text string) (string, error) {
	return c.complete(ctx, c.classifyModel, rubricPrompt, text)
}

func (c *OpenAIClient) ShortFeedback(ctx context.Context, prompt, text string) (string, error) {
	return c.complete(ctx, c.model, prompt, text)
}

func (c *OpenAIClient) complete(ctx context.Context, model, systemPrompt, userText string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
