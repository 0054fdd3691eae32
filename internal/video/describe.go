package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/reelfeed/reelfeed/internal/database"
)

// AIClient talks to an OpenAI-compatible chat completion endpoint to write
// descriptions for videos uploaded without one.
type AIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAIClient(baseURL, apiKey, model string) *AIClient {
	return &AIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const describeSystemPrompt = `You write short descriptions for social videos. Given a video title, produce a 1-2 sentence description that would fit under the video in a feed. Return plain text only, no quotes, no markdown.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

func (c *AIClient) GenerateDescription(ctx context.Context, title string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: describeSystemPrompt},
			{Role: "user", Content: title},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("AI API returned empty choices")
	}

	description := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if description == "" {
		return "", fmt.Errorf("AI API returned empty description")
	}
	return description, nil
}

// processNextDescription claims one pending video and fills in its
// description. Claims are taken with SKIP LOCKED so multiple instances can
// share the queue.
func processNextDescription(ctx context.Context, db database.DBTX, ai *AIClient) {
	var videoID, title string
	err := db.QueryRow(ctx,
		`UPDATE videos SET description_status = 'processing', updated_at = now()
		 WHERE id = (
		     SELECT id FROM videos
		     WHERE description_status = 'pending' AND status != 'deleted'
		     ORDER BY updated_at ASC LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, title`,
	).Scan(&videoID, &title)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			slog.Error("describe-worker: failed to claim job", "error", err)
		}
		return
	}

	description, err := ai.GenerateDescription(ctx, title)
	if err != nil {
		slog.Error("describe-worker: generation failed", "video_id", videoID, "error", err)
		markDescriptionFailed(ctx, db, videoID)
		return
	}

	if _, err := db.Exec(ctx,
		`UPDATE videos SET description = $1, description_status = 'ready', updated_at = now()
		 WHERE id = $2 AND description = ''`,
		description, videoID,
	); err != nil {
		slog.Error("describe-worker: failed to save description", "video_id", videoID, "error", err)
	}
}

func markDescriptionFailed(ctx context.Context, db database.DBTX, videoID string) {
	if _, err := db.Exec(ctx,
		`UPDATE videos SET description_status = 'failed', updated_at = now() WHERE id = $1`,
		videoID,
	); err != nil {
		slog.Error("describe-worker: failed to mark video as failed", "video_id", videoID, "error", err)
	}
}

func StartDescribeWorker(ctx context.Context, db database.DBTX, ai *AIClient, interval time.Duration) {
	if ai == nil {
		return
	}
	go func() {
		slog.Info("describe-worker: started")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("describe-worker: shutting down")
				return
			case <-ticker.C:
				processNextDescription(ctx, db, ai)
			}
		}
	}()
}
