package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buildOnce   sync.Once
	binaryPath  string
	buildOutput []byte
	buildErr    error
)

// buildBinary compiles the command once per test run
func buildBinary(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "chat-visualizer-test")
		if err != nil {
			buildErr = err
			return
		}
		binaryPath = filepath.Join(dir, "chat-visualizer")
		buildOutput, buildErr = exec.Command("go", "build", "-o", binaryPath, ".").CombinedOutput()
	})
	require.NoError(t, buildErr, "Failed to build chat-visualizer binary: %s", buildOutput)
	return binaryPath
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://file.example.com\nport: 4000\ntimeout: 5s\n"), 0o644))

	t.Setenv("PORT", "5000")
	t.Setenv("API_BASE_URL", "https://env.example.com")

	require.NoError(t, rootCmd.ParseFlags([]string{
		"--config", path,
		"--base-url", "https://flag.example.com",
		"--disable-tool", "justify_content",
	}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com", cfg.BaseURL, "flags win over the environment")
	assert.Equal(t, 5000, cfg.Port, "the environment wins over the file")
	assert.Equal(t, 5*time.Second, cfg.Timeout, "the file wins over defaults")
	assert.Equal(t, "http", cfg.Transport)
	assert.True(t, cfg.IsToolDisabled("justify_content"))
}

func TestIntegration(t *testing.T) {
	binary := buildBinary(t)

	// The storage API is never reached by the calls below.
	cmd := exec.Command(binary, "--transport", "stdio", "--base-url", "http://127.0.0.1:9")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	require.NoError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	send := func(msg map[string]any) {
		t.Helper()
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		_, err = stdin.Write(append(data, '\n'))
		require.NoError(t, err)
	}

	// initialize
	send(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-06-18",
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    "chat-visualizer-test",
				"version": "dev",
			},
		},
	})
	require.True(t, scanner.Scan(), "Expected initialize response; stderr: %s", stderr.String())

	var initResponse struct {
		Result struct {
			ProtocolVersion string `json:"protocolVersion"`
			ServerInfo      struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &initResponse))
	assert.Equal(t, "2025-06-18", initResponse.Result.ProtocolVersion)
	assert.Equal(t, "chat-visualizer", initResponse.Result.ServerInfo.Name)

	// notifications/initialized
	send(map[string]any{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
		"params":  map[string]any{},
	})

	// tools/list
	send(map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
		"params":  map[string]any{},
	})
	require.True(t, scanner.Scan(), "Expected tools/list response")

	var listResponse struct {
		JSONRPC string `json:"jsonrpc"`
		Result  struct {
			Tools []struct {
				Name        string          `json:"name"`
				Description string          `json:"description"`
				InputSchema json.RawMessage `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &listResponse), "Failed to parse JSON response")

	assert.Equal(t, "2.0", listResponse.JSONRPC)
	assert.Equal(t, 2, listResponse.ID)
	require.Len(t, listResponse.Result.Tools, 4)

	var names []string
	for _, tool := range listResponse.Result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Contains(t, string(tool.InputSchema), `"type":"object"`)
	}
	assert.Equal(t, []string{"visualize_chat", "create_public_diagram", "update_public_diagram", "justify_content"}, names)

	// tools/call visualize_chat
	send(map[string]any{
		"jsonrpc": "2.0",
		"id":      3,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "visualize_chat",
			"arguments": map[string]any{"conversation": "User: plan a trip to Lisbon"},
		},
	})
	require.True(t, scanner.Scan(), "Expected tools/call response")

	var callResponse struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &callResponse))
	assert.Equal(t, 3, callResponse.ID)
	assert.False(t, callResponse.Result.IsError)
	require.Len(t, callResponse.Result.Content, 1)
	assert.Contains(t, callResponse.Result.Content[0].Text, "User: plan a trip to Lisbon")

	// tools/call with malformed diagram content never reaches the storage API
	send(map[string]any{
		"jsonrpc": "2.0",
		"id":      4,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "create_public_diagram",
			"arguments": map[string]any{"json_content": "{broken"},
		},
	})
	require.True(t, scanner.Scan(), "Expected tools/call response")

	var errResponse struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &errResponse))
	assert.Equal(t, -32602, errResponse.Error.Code)

	// Closing stdin ends the session and the process
	require.NoError(t, stdin.Close())
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err, "stderr: %s", stderr.String())
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit after stdin closed")
	}
}

func TestToolsCommand(t *testing.T) {
	binary := buildBinary(t)

	out, err := exec.Command(binary, "tools", "--disable-tool", "justify_content").Output()
	require.NoError(t, err)

	var catalogue struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(out, &catalogue))
	require.Len(t, catalogue.Tools, 3)
	for _, tool := range catalogue.Tools {
		assert.NotEqual(t, "justify_content", tool.Name)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	binary := buildBinary(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown transport", []string{"--transport", "websocket"}, "unknown transport"},
		{"bad base URL", []string{"--base-url", "ftp://example.com"}, "scheme must be http or https"},
		{"unknown tool", []string{"--disable-tool", "draw_picture"}, `unknown tool "draw_picture"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(binary, tt.args...)
			var stderr bytes.Buffer
			cmd.Stderr = &stderr

			err := cmd.Run()
			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 1, exitErr.ExitCode())
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}
