package transcriber

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIAdapter implements Transcriber for OpenAI-compatible endpoints:
// Whisper transcribes the audio verbatim, then a JSON-mode chat
// completion restructures it into the report shape.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
	log    *logrus.Entry
}

func NewOpenAIAdapter(cfg Config, log *logrus.Entry) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
		log:    log,
	}
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, dcmPath, audioPath string) (*Result, error) {
	a.log.WithFields(logrus.Fields{
		"dcm_path":   dcmPath,
		"audio_path": audioPath,
	}).Info("starting transcription")

	start := time.Now()
	transcript, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: whisper transcription: %v", ErrService, err)
	}

	model := a.model
	if model == "" {
		model = "gpt-4o-mini"
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: Prompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript.Text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %v", ErrService, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices", ErrService)
	}

	text := resp.Choices[0].Message.Content
	a.log.WithFields(logrus.Fields{
		"audio_path": audioPath,
		"duration":   time.Since(start),
		"chars":      len(text),
	}).Info("transcription completed")

	return ParseResult(text)
}
