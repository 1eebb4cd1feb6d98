package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Morwran/yagpt"
)

// YandexClient adapts YaGPT to the oracle contract. The API has no
// server-side streaming, so a completion is surfaced as a single delta.
type YandexClient struct {
	ya       yagpt.YaGPTFace
	iamToken string
}

func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	// Create IAM token from OAuth token
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	// Create YaGPT client for a folder
	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexClient{
		ya:       ya,
		iamToken: resp.IamToken,
	}, nil
}

func (c *YandexClient) CompleteStreaming(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error) {
	var yaMsgs []yagpt.Message
	for _, m := range messages {
		yaMsgs = append(yaMsgs, yagpt.Message{Role: m.Role, Content: m.Content})
	}
	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, yaMsgs)
	if err != nil {
		return "", fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return "", fmt.Errorf("yagpt returned empty response")
	}
	content := resp.Alternatives[0].Message.Content
	if onDelta != nil && content != "" {
		onDelta(content)
	}
	return content, nil
}

func (c *YandexClient) Classify(ctx context.Context, rubricPrompt, text string) (string, error) {
	return c.complete(ctx, rubricPrompt, text)
}

func (c *YandexClient) ShortFeedback(ctx context.Context, prompt, text string) (string, error) {
	return c.complete(ctx, prompt, text)
}

func (c *YandexClient) complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	messages := []yagpt.Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userText},
	}
	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, messages)
	if err != nil {
		return "", fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return "", fmt.Errorf("yagpt returned empty response")
	}
	return strings.TrimSpace(resp.Alternatives[0].Message.Content), nil
}
