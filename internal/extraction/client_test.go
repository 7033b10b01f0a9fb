package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func messageServer(t *testing.T, status int, text string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
			return
		}
		resp := map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": text}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract_ParsesReply(t *testing.T) {
	var seen map[string]any
	srv := messageServer(t, http.StatusOK, `[{"name":"Lip Oil","category":"makeup"}]`, &seen)

	c := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "claude-test"})
	groups, err := c.Extract(context.Background(), "this lip oil is amazing", []KnownCategory{{Name: "makeup", Description: "face and lips"}})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "makeup", groups[0].Category)
	require.True(t, groups[0].Known)

	require.Equal(t, "claude-test", seen["model"])
	msgs := seen["messages"].([]any)
	first := msgs[0].(map[string]any)
	content := first["content"].([]any)[0].(map[string]any)
	prompt := content["text"].(string)
	require.Contains(t, prompt, "- makeup: face and lips")
	require.True(t, strings.HasSuffix(prompt, "this lip oil is amazing"))
}

func TestExtract_MalformedReplyIsEmpty(t *testing.T) {
	srv := messageServer(t, http.StatusOK, "Sorry, I can't help with that.", nil)

	groups, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL}).Extract(context.Background(), "words", nil)
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestExtract_APIErrorPropagates(t *testing.T) {
	srv := messageServer(t, http.StatusBadRequest, "", nil)

	_, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL}).Extract(context.Background(), "words", nil)
	require.Error(t, err)
}

func TestExtract_EmptyTranscriptSkipsCall(t *testing.T) {
	groups, err := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:1"}).Extract(context.Background(), "   ", nil)
	require.NoError(t, err)
	require.Nil(t, groups)
}

func TestBuildPrompt_NoKnownCategories(t *testing.T) {
	p := buildPrompt("hello", nil)
	require.Contains(t, p, "short lowercase category names")
	require.NotContains(t, p, "existing categories")
}
