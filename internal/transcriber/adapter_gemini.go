package transcriber

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiAdapter implements Transcriber against the Gemini API, uploading
// the WAV file and requesting a JSON-mode response.
type GeminiAdapter struct {
	client *genai.Client
	model  string
	log    *logrus.Entry
}

func NewGeminiAdapter(ctx context.Context, cfg Config, log *logrus.Entry) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiAdapter{client: client, model: cfg.Model, log: log}, nil
}

func (a *GeminiAdapter) Transcribe(ctx context.Context, dcmPath, audioPath string) (*Result, error) {
	a.log.WithFields(logrus.Fields{
		"dcm_path":   dcmPath,
		"audio_path": audioPath,
	}).Info("starting transcription")

	file, err := a.client.Files.UploadFromPath(ctx, audioPath, &genai.UploadFileConfig{
		MIMEType: "audio/wav",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upload audio: %v", ErrService, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(Prompt),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](1),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %v", ErrService, err)
	}

	text := resp.Text()
	a.log.WithFields(logrus.Fields{
		"audio_path": audioPath,
		"duration":   time.Since(start),
		"chars":      len(text),
	}).Info("transcription completed")

	return ParseResult(text)
}
