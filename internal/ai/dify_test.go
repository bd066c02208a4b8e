package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDifyConfigValidate(t *testing.T) {
	require.Error(t, DifyConfig{APIKey: "key"}.Validate())
	require.Error(t, DifyConfig{BaseURL: "http://dify.local"}.Validate())
	require.NoError(t, DifyConfig{BaseURL: "http://dify.local", APIKey: "key"}.Validate())

	_, err := NewDifyClient(DifyConfig{})
	require.Error(t, err)
}

func TestDifyComplete(t *testing.T) {
	var got completionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/completion-messages", r.URL.Path)
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(completionResponse{Answer: "forty two"})
	}))
	defer srv.Close()

	client, err := NewDifyClient(DifyConfig{BaseURL: srv.URL + "/", APIKey: "key-123", Timeout: time.Second})
	require.NoError(t, err)

	answer, err := client.Complete(context.Background(), CompletionRequest{
		Inputs: map[string]any{"subject": "math"},
		Query:  "generate",
		User:   "user-1",
	})
	require.NoError(t, err)
	require.Equal(t, "forty two", answer)
	require.Equal(t, "blocking", got.ResponseMode)
	require.Equal(t, "user-1", got.User)
	require.Equal(t, "generate", got.Query)
}

func TestDifyCompleteDefaultsInputs(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(completionResponse{Answer: "ok"})
	}))
	defer srv.Close()

	client, err := NewDifyClient(DifyConfig{BaseURL: srv.URL, APIKey: "key"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{User: "user-1"})
	require.NoError(t, err)
	require.Equal(t, "{}", string(got["inputs"]))
}

func TestDifyCompleteEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse{Answer: "   "})
	}))
	defer srv.Close()

	client, err := NewDifyClient(DifyConfig{BaseURL: srv.URL, APIKey: "key"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{User: "user-1"})
	require.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestDifyCompleteEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewDifyClient(DifyConfig{BaseURL: srv.URL, APIKey: "key"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{User: "user-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
	require.Contains(t, err.Error(), "quota exceeded")
}
