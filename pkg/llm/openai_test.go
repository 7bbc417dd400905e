package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-hq/recall/pkg/types"
)

func newClientForTest(t *testing.T, content string) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-test",
			"object": "chat.completion",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	client := NewClient(types.LLMConfig{APIKey: "test-key", BaseURL: server.URL})
	return client, server
}

func TestClassifyParsesPlan(t *testing.T) {
	client, server := newClientForTest(t, "```json\n"+
		`{"sources":["mail","social"],"intent":"lookup","per_source":{"mail":{"query":"from:alice"},"social":{"keywords":["alice","dinner"]}}}`+
		"\n```")
	defer server.Close()

	plan, err := client.Classify(context.Background(), "what did alice say about dinner")
	require.NoError(t, err)

	assert.Equal(t, types.IntentLookup, plan.Intent)
	assert.Equal(t, []types.SourceKind{types.SourceMail, types.SourceSocial}, plan.NeededSources)
	assert.Equal(t, "from:alice", plan.PerSourceQuery[types.SourceMail].Query)
	assert.Equal(t, []string{"alice", "dinner"}, plan.PerSourceQuery[types.SourceSocial].Keywords)
}

func TestClassifySkipsUnknownSources(t *testing.T) {
	client, server := newClientForTest(t,
		`{"sources":["mail","carrier-pigeon"],"intent":"count","per_source":{"mail":{"query":"q"}}}`)
	defer server.Close()

	plan, err := client.Classify(context.Background(), "how many mails")
	require.NoError(t, err)

	assert.Equal(t, []types.SourceKind{types.SourceMail}, plan.NeededSources)
}

func TestClassifyNoValidSourcesErrors(t *testing.T) {
	client, server := newClientForTest(t, `{"sources":["carrier-pigeon"],"intent":"lookup"}`)
	defer server.Close()

	_, err := client.Classify(context.Background(), "query")
	assert.Error(t, err)
}

func TestClassifyDefaultsIntent(t *testing.T) {
	client, server := newClientForTest(t, `{"sources":["mail"],"per_source":{"mail":{"query":"q"}}}`)
	defer server.Close()

	plan, err := client.Classify(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, types.IntentLookup, plan.Intent)
}

func TestSynthesizeReturnsCompletion(t *testing.T) {
	client, server := newClientForTest(t, "alice confirmed friday")
	defer server.Close()

	answer, err := client.Synthesize(context.Background(), "when is dinner", []types.Hit{
		{Source: types.SourceMail, Content: "dinner friday 7pm"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice confirmed friday", answer)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
