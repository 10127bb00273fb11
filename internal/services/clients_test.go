package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChatClient(t *testing.T) {
	conv := Conversation{ID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), ProductID: uuid.New(), Active: true}
	var notified map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/conversations/" + conv.ID.String():
			_ = json.NewEncoder(w).Encode(conv)
		case "/internal/notify":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_ = json.NewDecoder(r.Body).Decode(&notified)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL+"/", zap.NewNop())
	ctx := context.Background()

	got, err := c.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv, *got)

	_, err = c.GetConversation(ctx, uuid.New())
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, c.Notify(ctx, conv.BuyerID, "your order was paid"))
	assert.Equal(t, conv.BuyerID.String(), notified["user_id"])
	assert.Equal(t, "your order was paid", notified["text"])
}

func TestCatalogClient(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/listings/" + id.String():
			_, _ = w.Write([]byte(`{"id":"` + id.String() + `","seller_id":"` + uuid.NewString() + `","price":"249.90","currency":"mxn","active":true}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewCatalogClient(srv.URL, zap.NewNop())
	l, err := c.GetListing(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "MXN", l.Currency)
	assert.True(t, l.Price.Equal(decimal.RequireFromString("249.90")))

	_, err = c.GetListing(context.Background(), uuid.New())
	assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
	assert.Equal(t, "catalog_unavailable", apperr.ReasonOf(err))
}
