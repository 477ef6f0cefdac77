package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeeperFrog/peeperfrog-create/internal/mcp"
)

func serve(t *testing.T, input string) []map[string]any {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := mcp.NewServer(nil, 85, discard)

	var out bytes.Buffer
	err := server.Serve(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)

	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServe_Initialize(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`+"\n")

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "peeperfrog-create", info["name"])
}

func TestServe_ToolsList(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`+"\n")

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	tools := result["tools"].([]any)

	names := make(map[string]bool)
	for _, raw := range tools {
		tool := raw.(map[string]any)
		names[tool["name"].(string)] = true
		assert.NotEmpty(t, tool["description"])
		assert.NotNil(t, tool["inputSchema"])
	}
	for _, want := range []string{
		"generate_image", "estimate_image_cost", "add_to_batch", "view_batch_queue",
		"remove_from_batch", "run_batch", "convert_to_webp", "get_generated_webp_images",
		"upload_to_wordpress", "query_generation_log",
		"post_to_linkedin", "comment_on_linkedin_post",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestServe_UnknownMethod(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":3,"method":"no/such/method"}`+"\n")

	require.Len(t, responses, 1)
	rpcErr := responses[0]["error"].(map[string]any)
	assert.EqualValues(t, -32601, rpcErr["code"])
}

func TestServe_UnknownToolIsToolError(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"no_such_tool","arguments":{}}}`+"\n")

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
}

func TestServe_NotificationsGetNoResponse(t *testing.T) {
	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":5,"method":"ping"}` + "\n"
	responses := serve(t, input)

	require.Len(t, responses, 1)
	assert.EqualValues(t, 5, responses[0]["id"])
}

func TestServe_MalformedLine(t *testing.T) {
	responses := serve(t, "this is not json\n")

	require.Len(t, responses, 1)
	rpcErr := responses[0]["error"].(map[string]any)
	assert.EqualValues(t, -32700, rpcErr["code"])
}
