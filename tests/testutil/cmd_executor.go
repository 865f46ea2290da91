// Package testutil provides testing utilities for akv.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/systmms/akv/pkg/exec"
)

var _ exec.CommandExecutor = (*MockCommandExecutor)(nil)

// MockCommandExecutor provides a configurable stand-in for the Azure CLI.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args).
	// A pattern matches a call when its words are a prefix of the call's words.
	Responses map[string]MockResponse

	// Sequences hold responses returned one after another for a pattern;
	// the last one repeats. They take precedence over Responses.
	Sequences map[string][]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Execute for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout   []byte
	Stderr   []byte
	Err      error
	ExitCode int // Used to simulate exit codes when Err is nil
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
	Input   []byte
	Context context.Context
}

// Line returns the call as a single space-separated string.
func (c RecordedCall) Line() string {
	return buildKey(c.Command, c.Args)
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		Sequences:     make(map[string][]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return m.ExecuteWithInput(ctx, nil, name, args...)
}

// ExecuteWithInput records input and returns the mocked response.
func (m *MockCommandExecutor) ExecuteWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: name,
		Args:    args,
		Input:   append([]byte(nil), input...),
		Context: ctx,
	})

	key := buildKey(name, args)

	if pattern, ok := m.bestMatch(key, sequenceKeys(m.Sequences)); ok {
		seq := m.Sequences[pattern]
		resp := seq[0]
		if len(seq) > 1 {
			m.Sequences[pattern] = seq[1:]
		}
		return resp.Stdout, resp.Stderr, resp.Err
	}

	if pattern, ok := m.bestMatch(key, responseKeys(m.Responses)); ok {
		resp := m.Responses[pattern]
		return resp.Stdout, resp.Stderr, resp.Err
	}

	if m.DefaultResponse != nil {
		return m.DefaultResponse.Stdout, m.DefaultResponse.Stderr, m.DefaultResponse.Err
	}

	if m.StrictMode {
		return nil, nil, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	return []byte{}, []byte{}, nil
}

// bestMatch picks the longest pattern whose words prefix the key's words,
// so results do not depend on map iteration order.
func (m *MockCommandExecutor) bestMatch(key string, patterns []string) (string, bool) {
	keyWords := strings.Fields(key)
	best, bestLen := "", -1
	for _, pattern := range patterns {
		words := strings.Fields(pattern)
		if len(words) > len(keyWords) || len(words) <= bestLen {
			continue
		}
		match := true
		for i, w := range words {
			if keyWords[i] != w {
				match = false
				break
			}
		}
		if match {
			best, bestLen = pattern, len(words)
		}
	}
	return best, bestLen >= 0
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func responseKeys(m map[string]MockResponse) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func sequenceKeys(m map[string][]MockResponse) []string {
	keys := make([]string, 0, len(m))
	for k, seq := range m {
		if len(seq) > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

// AddResponse registers a mock response for a specific command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddSequence registers responses returned in order for a command pattern.
func (m *MockCommandExecutor) AddSequence(commandPattern string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sequences[commandPattern] = append([]MockResponse(nil), responses...)
}

// AddOutput is a convenience method to add a successful stdout response.
func (m *MockCommandExecutor) AddOutput(commandPattern string, stdout string) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout: []byte(stdout),
		Stderr: []byte{},
	})
}

// AddErrorResponse adds an error response for a command pattern.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, ErrorResponse(errMsg, exitCode))
}

// ErrorResponse builds a failed command response.
func ErrorResponse(errMsg string, exitCode int) MockResponse {
	return MockResponse{
		Stdout:   []byte{},
		Stderr:   []byte(errMsg),
		Err:      fmt.Errorf("exit status %d", exitCode),
		ExitCode: exitCode,
	}
}

// Calls returns a copy of every recorded call.
func (m *MockCommandExecutor) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedCall(nil), m.RecordedCalls...)
}

// CallLines returns every recorded call rendered with RecordedCall.Line.
func (m *MockCommandExecutor) CallLines() []string {
	calls := m.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line()
	}
	return lines
}

// CallCount returns the number of times Execute was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// AzureCLIMockResponses provides pre-configured responses for the Azure CLI.
type AzureCLIMockResponses struct{}

// Names renders names the way `az ... --query [].name -o tsv` prints them.
func (AzureCLIMockResponses) Names(names ...string) MockResponse {
	out := ""
	if len(names) > 0 {
		out = strings.Join(names, "\n") + "\n"
	}
	return MockResponse{Stdout: []byte(out)}
}

// Value renders a secret value as printed by `--query value -o tsv`.
func (AzureCLIMockResponses) Value(value string) MockResponse {
	return MockResponse{Stdout: []byte(value + "\n")}
}

// NotLoggedIn mimics az when no session exists.
func (AzureCLIMockResponses) NotLoggedIn() MockResponse {
	return ErrorResponse("ERROR: Please run 'az login' to setup account.", 1)
}

// VaultNotFound mimics az for a vault that no longer exists.
func (AzureCLIMockResponses) VaultNotFound(vault string) MockResponse {
	return ErrorResponse(fmt.Sprintf("ERROR: (VaultNotFound) The vault '%s' could not be found.", vault), 3)
}

// SecretNotFound mimics az for a missing secret.
func (AzureCLIMockResponses) SecretNotFound(secret string) MockResponse {
	return ErrorResponse(fmt.Sprintf("ERROR: (SecretNotFound) A secret with (name/id) %s was not found in this key vault.", secret), 3)
}

// Timeout mimics a transient network failure.
func (AzureCLIMockResponses) Timeout() MockResponse {
	return ErrorResponse("ERROR: HTTPSConnectionPool: Read timed out. (read timeout=30)", 1)
}

// Throttled mimics Azure throttling.
func (AzureCLIMockResponses) Throttled() MockResponse {
	return ErrorResponse("ERROR: (Throttled) Too many requests. Please retry.", 1)
}
