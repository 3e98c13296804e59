// Package backend — тонкий HTTP-клиент сервиса генерации квот.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clearglass/quote-wizard/internal/wizard"
)

// TaskState — состояние асинхронной задачи генерации.
type TaskState string

const (
	StatePending    TaskState = "pending"
	StateProcessing TaskState = "processing"
	StateCompleted  TaskState = "completed"
	StateFailed     TaskState = "failed"
)

// Terminal — после этих состояний поллинг останавливается.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TaskStatus — ответ эндпоинта статуса задачи.
type TaskStatus struct {
	TaskID   string    `json:"task_id"`
	Status   TaskState `json:"status"`
	Progress *int      `json:"progress,omitempty"`
	Message  string    `json:"message,omitempty"`
	QuoteID  string    `json:"quote_id,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type generateResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GenerateQuote запускает генерацию квоты и возвращает task_id.
// Один исходящий вызов, без ретраев: повторная отправка — решение пользователя.
func (c *Client) GenerateQuote(ctx context.Context, req wizard.QuoteGenerationRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/quotes/generate/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit quote: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("quote service returned status %s", resp.Status)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("quote service returned no task_id")
	}
	return out.TaskID, nil
}

// TaskStatus опрашивает статус задачи генерации.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (TaskStatus, error) {
	var st TaskStatus

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/quotes/status/"+taskID+"/", nil)
	if err != nil {
		return st, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return st, fmt.Errorf("poll status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

// QuotePreview забирает готовую квоту как есть — документ отдаётся
// странице предпросмотра без интерпретации.
func (c *Client) QuotePreview(ctx context.Context, quoteID string) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/quotes/"+quoteID+"/preview/", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote endpoint returned %s", resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}
