package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finwise/api/models"
)

func TestGenerateInsights(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: "You spent a lot on coffee."}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	txns := []models.Transaction{
		{Amount: -4.50, Category: "coffee", Description: "latte", OccurredAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	out, err := client.GenerateInsights(context.Background(), txns)
	require.NoError(t, err)
	assert.Equal(t, "You spent a lot on coffee.", out)
	assert.Equal(t, "Bearer test-key", gotAuth)

	// User ids and account ids must never leave the process.
	require.Len(t, gotReq.Messages, 2)
	assert.Contains(t, gotReq.Messages[1].Content, "coffee")
	assert.NotContains(t, gotReq.Messages[1].Content, "user")
}

func TestGenerateInsightsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	_, err := client.GenerateInsights(context.Background(), nil)
	assert.Error(t, err)
}
