package capability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go-flying-image/internal/logger"
	"go-flying-image/pkg/imageref"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// contentGenerator is the slice of *genai.Models used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTransformer runs the transformation on a Gemini image model.
// Results are returned inline as data URLs.
type GeminiTransformer struct {
	models contentGenerator
}

// NewGeminiTransformer creates a Gemini API backed transformer
func NewGeminiTransformer(ctx context.Context, apiKey string) (*GeminiTransformer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiTransformer{models: client.Models}, nil
}

// Run sends the prompt and input image and returns the first inline image
func (g *GeminiTransformer) Run(ctx context.Context, user Identity, model string, input TransformInput) (*TransformOutput, error) {
	mimeType, data, err := imageref.Decode(input.InputImage)
	if err != nil {
		return nil, &Failure{Kind: FailureOther, Message: "input image must be an inline image", Cause: err}
	}

	parts := []*genai.Part{
		genai.NewPartFromText(input.Prompt),
		genai.NewPartFromBytes(data, mimeType),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: aspectRatio(input.Width, input.Height),
		},
	}

	logger.WithFields(logrus.Fields{
		"model":   model,
		"user_id": user.UserID,
		"bytes":   len(data),
	}).Debug("Sending gemini image request")

	resp, err := g.models.GenerateContent(ctx, model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, geminiFailure(err)
	}

	ref, err := firstInlineImage(resp)
	if err != nil {
		return nil, &Failure{Kind: FailureOther, Message: err.Error()}
	}
	return &TransformOutput{Output: []string{ref}}, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no valid response from gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return imageref.Encode(part.InlineData.MIMEType, part.InlineData.Data), nil
			}
		}
	}
	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return "", fmt.Errorf("image generation stopped (finish reason: %s)", candidate.FinishReason)
	}
	return "", errors.New("no image data in gemini response")
}

func geminiFailure(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &Failure{Kind: FailureRateLimited, Message: apiErr.Message, Cause: err}
		case http.StatusPaymentRequired:
			return &Failure{Kind: FailureInsufficientCredits, Message: apiErr.Message, Cause: err}
		default:
			return &Failure{Kind: FailureOther, Message: apiErr.Message, Cause: err}
		}
	}
	if isTransportError(err) {
		return &Failure{Kind: FailureNetwork, Cause: err}
	}
	return err
}

func aspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	d := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/d, height/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
