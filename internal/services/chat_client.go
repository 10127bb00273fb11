package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conversation is the chat service's record of a buyer/seller thread about one listing.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	ProductID uuid.UUID `json:"product_id"`
	Active    bool      `json:"active"`
}

// ConversationDirectory resolves conversations owned by the chat service.
type ConversationDirectory interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
}

// ChatClient communicates with the chat service internal API.
type ChatClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewChatClient(baseURL string, log *zap.Logger) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

func (c *ChatClient) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	url := fmt.Sprintf("%s/internal/conversations/%s", c.baseURL, id)
	var conv Conversation
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, url, nil, &conv)
	if status == http.StatusNotFound {
		return nil, apperr.NotFound("conversation_not_found", "conversation not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "chat_unavailable", "chat service unavailable")
	}
	return &conv, nil
}

// Notify posts a system message to a user. Failures are logged, not returned to
// the caller's transition.
func (c *ChatClient) Notify(ctx context.Context, userID uuid.UUID, text string) error {
	url := fmt.Sprintf("%s/internal/notify", c.baseURL)
	_, err := doJSON(ctx, c.httpClient, http.MethodPost, url, map[string]any{
		"user_id": userID.String(),
		"text":    text,
	}, nil)
	if err != nil {
		c.log.Warn("failed to send chat notification", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return err
}

// doJSON sends body as JSON and decodes a 200 response into out. The status
// code is returned even when err is set.
func doJSON(ctx context.Context, hc *http.Client, method, url string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("service returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}
