// Package engine is the boundary to the answer-generation service. The
// service embeds the question, retrieves context and produces the answer;
// this package only calls it.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Engine produces answers for questions, either as one blocking call or as
// an incrementally assembled stream.
type Engine interface {
	// Generate returns the complete answer text.
	Generate(ctx context.Context, question string) (string, error)

	// GenerateStreaming invokes onChunk zero or more times with the answer
	// content assembled so far, terminating on stream exhaustion or error.
	// The stream is a single logical answer and is not restartable.
	GenerateStreaming(ctx context.Context, question string, onChunk func(content string) error) error
}

// HTTPEngine calls the answer service over HTTP.
type HTTPEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPEngine creates an engine client for the given base URL.
func NewHTTPEngine(baseURL string) *HTTPEngine {
	return &HTTPEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// streamEvent is one SSE data payload from the answer service.
type streamEvent struct {
	Content string `json:"content"`
}

// Generate performs a blocking answer call.
func (e *HTTPEngine) Generate(ctx context.Context, question string) (string, error) {
	body, err := json.Marshal(answerRequest{Question: question})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/answer", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("answer service returned %d: %s", resp.StatusCode, string(snippet))
	}

	var ar answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("invalid answer response: %w", err)
	}
	return ar.Answer, nil
}

// GenerateStreaming consumes the SSE stream from the answer service. Each
// event carries the full content assembled so far.
func (e *HTTPEngine) GenerateStreaming(ctx context.Context, question string, onChunk func(string) error) error {
	body, err := json.Marshal(answerRequest{Question: question})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/answer/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("answer service returned %d: %s", resp.StatusCode, string(snippet))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if err := onChunk(ev.Content); err != nil {
			return err
		}
	}
	return scanner.Err()
}
