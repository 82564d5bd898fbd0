// Package imagegen превращает эскиз в логотип с помощью генеративной модели Gemini.
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/magabrotheeeer/sketch-logo/internal/config"
)

// DefaultPrompt отправляется вместе с эскизом, если в конфигурации промпт не задан.
const DefaultPrompt = "Turn this sketch into a clean, professional logo. Keep the composition of the sketch, use flat colors and return a single image."

// ErrNoImage возвращается, когда в ответе модели нет изображения.
var ErrNoImage = errors.New("model returned no image")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client вызывает модель Gemini.
type Client struct {
	models contentGenerator
	model  string
	prompt string
}

// New создает клиента Gemini API по конфигурации.
func New(ctx context.Context, cfg config.Gemini) (*Client, error) {
	const op = "imagegen.New"
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: empty api key", op)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return newWithModels(client.Models, cfg.Model, cfg.Prompt), nil
}

func newWithModels(models contentGenerator, model, prompt string) *Client {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Client{models: models, model: model, prompt: prompt}
}

// Generate отправляет эскиз модели и возвращает первое изображение ответа
// в виде data URL.
func (c *Client) Generate(ctx context.Context, sketch []byte, mimeType string) (string, error) {
	const op = "imagegen.Generate"
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(c.prompt),
			genai.NewPartFromBytes(sketch, mimeType),
		}, genai.RoleUser),
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	logo, ok := firstImage(resp)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, ErrNoImage)
	}
	return logo, nil
}

func firstImage(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), true
		}
	}
	return "", false
}
