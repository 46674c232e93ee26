package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
	"github.com/fyrsmithlabs/featureflow/internal/store"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// testRegistry has claude installed and gemini missing.
func testRegistry(t *testing.T) *reviewer.Registry {
	t.Helper()
	lookPath := func(file string) (string, error) {
		if file == "claude" {
			return "/usr/local/bin/claude", nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
	reg, err := reviewer.NewRegistry(config.BuiltinReviewers()[:2], reviewer.WithLookPath(lookPath))
	require.NoError(t, err)
	return reg
}

type testEnv struct {
	server     *Server
	session    *mcp.ClientSession
	logger     *logging.TestLogger
	projectDir string
}

// setupTestEnv wires a real orchestrator over an in-memory store and
// connects a client through in-memory transports.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte("module example.com/demo\n"), 0o644))

	reg := testRegistry(t)
	logger := logging.NewTestLogger()
	engine, err := workflow.New(store.NewMemoryStore(), reg, workflow.WithLogger(logger.Logger))
	require.NoError(t, err)

	s, err := NewServer(&Config{Name: "featureflow-test", Version: "test", Logger: logger.Logger}, engine, reg)
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.mcp.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return &testEnv{server: s, session: cs, logger: logger, projectDir: projectDir}
}

// call invokes a tool and decodes its structured output into out when the
// call succeeded.
func (e *testEnv) call(t *testing.T, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	if !res.IsError && out != nil {
		data, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return res
}

func errorText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError, "expected a tool error")
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	reg := testRegistry(t)
	engine, err := workflow.New(store.NewMemoryStore(), reg)
	require.NoError(t, err)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s, err := NewServer(nil, engine, reg)
		require.NoError(t, err)
		assert.Equal(t, "featureflow", s.config.Name)
		assert.Equal(t, DefaultConfig().ReviewerTimeout, s.config.ReviewerTimeout)
	})

	t.Run("returns error when engine is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, reg)
		assert.ErrorContains(t, err, "engine is required")
	})

	t.Run("returns error when registry is nil", func(t *testing.T) {
		_, err := NewServer(nil, engine, nil)
		assert.ErrorContains(t, err, "reviewer registry is required")
	})
}

func TestListTools(t *testing.T) {
	env := setupTestEnv(t)

	res, err := env.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		toolWorkflowStart, toolWorkflowStep, toolWorkflowStatus, toolWorkflowAbort, toolReviewerList,
	}, names)
}

func TestWorkflowTools_Lifecycle(t *testing.T) {
	env := setupTestEnv(t)

	var started workflowStartOutput
	res := env.call(t, toolWorkflowStart, map[string]any{
		"description":  "Add dark mode toggle",
		"project_path": env.projectDir,
		"reviewers":    []string{"claude"},
	}, &started)
	require.False(t, res.IsError, "start failed: %v", res.Content)
	assert.Equal(t, string(workflow.PhaseInitialized), started.Phase)
	require.Equal(t, "create_file", started.Action["type"])

	path, _ := started.Action["path"].(string)
	content, _ := started.Action["content"].(string)
	require.NotEmpty(t, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	id := started.WorkflowID

	var listed workflowStatusOutput
	env.call(t, toolWorkflowStatus, map[string]any{}, &listed)
	assert.Equal(t, []string{id}, listed.Workflows)
	assert.Nil(t, listed.Workflow)

	var stepped workflowStepOutput
	res = env.call(t, toolWorkflowStep, map[string]any{"workflow_id": id}, &stepped)
	require.False(t, res.IsError, "step failed: %v", res.Content)
	assert.Equal(t, string(workflow.PhaseSpecCreated), stepped.Phase)

	stepped = workflowStepOutput{}
	env.call(t, toolWorkflowStep, map[string]any{"workflow_id": id}, &stepped)
	assert.Equal(t, string(workflow.PhaseReviewsPending), stepped.Phase)
	assert.Equal(t, "shell", stepped.Action["type"])
	assert.False(t, stepped.Complete)

	var status workflowStatusOutput
	env.call(t, toolWorkflowStatus, map[string]any{"workflow_id": id}, &status)
	require.NotNil(t, status.Workflow)
	assert.Equal(t, id, status.Workflow["id"])
	assert.Equal(t, string(workflow.PhaseReviewsPending), status.Workflow["phase"])
	assert.Equal(t, []any{"claude"}, status.Workflow["pending_reviewers"])
	assert.Equal(t, []any{}, status.Workflow["completed_reviewers"])
	for _, key := range []string{"reviews", "test_files", "implementation_files", "spec_path", "commands", "created_at"} {
		assert.Contains(t, status.Workflow, key)
	}

	var aborted workflowStepOutput
	env.call(t, toolWorkflowAbort, map[string]any{"workflow_id": id, "reason": "changed plans"}, &aborted)
	assert.Equal(t, string(workflow.PhaseAborted), aborted.Phase)
	assert.Contains(t, aborted.Instruction, "changed plans")

	status = workflowStatusOutput{}
	res = env.call(t, toolWorkflowStatus, map[string]any{"workflow_id": id}, &status)
	require.False(t, res.IsError, "archived workflow is absent, not an error")
	assert.Nil(t, status.Workflow)
	assert.Empty(t, status.Workflows)
}

func TestWorkflowStart_Errors(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("unavailable reviewer carries install hints", func(t *testing.T) {
		res := env.call(t, toolWorkflowStart, map[string]any{
			"description":  "Add export",
			"project_path": env.projectDir,
			"reviewers":    []string{"gemini"},
		}, nil)
		text := errorText(t, res)
		assert.Contains(t, text, "reviewer unavailable")
		assert.Contains(t, text, "gemini")
	})

	t.Run("unknown reviewer", func(t *testing.T) {
		res := env.call(t, toolWorkflowStart, map[string]any{
			"description":  "Add export",
			"project_path": env.projectDir,
			"reviewers":    []string{"nobody"},
		}, nil)
		assert.Contains(t, errorText(t, res), "unknown reviewer")
	})

	t.Run("blank description", func(t *testing.T) {
		res := env.call(t, toolWorkflowStart, map[string]any{
			"description":  "   ",
			"project_path": env.projectDir,
		}, nil)
		assert.Contains(t, errorText(t, res), "description is required")
	})

	env.logger.AssertLogged(t, zapcore.WarnLevel, "tool failed")
}

func TestWorkflowStep_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	res := env.call(t, toolWorkflowStep, map[string]any{"workflow_id": "missing-00000001"}, nil)
	assert.Contains(t, errorText(t, res), "workflow not found")

	res = env.call(t, toolWorkflowAbort, map[string]any{"workflow_id": "missing-00000001"}, nil)
	assert.Contains(t, errorText(t, res), "workflow not found")
}

func TestReviewerList(t *testing.T) {
	env := setupTestEnv(t)

	var out reviewerListOutput
	res := env.call(t, toolReviewerList, map[string]any{}, &out)
	require.False(t, res.IsError)
	require.Len(t, out.Reviewers, 2)

	byName := map[string]reviewerStatus{}
	for _, r := range out.Reviewers {
		byName[r.Name] = r
	}
	assert.True(t, byName["claude"].Available)
	assert.False(t, byName["gemini"].Available)
	assert.NotEmpty(t, byName["gemini"].Reason)
}

func TestTools_RecordMetrics(t *testing.T) {
	env := setupTestEnv(t)
	m, reader := newTestMetrics(t)
	env.server.metrics = m

	env.call(t, toolWorkflowStatus, map[string]any{}, nil)
	env.call(t, toolWorkflowStep, map[string]any{"workflow_id": "missing-00000001"}, nil)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["featureflow.mcp.tool.invocations_total"])
	assert.Equal(t, int64(1), sums["featureflow.mcp.tool.errors_total"])
	assert.Equal(t, int64(0), sums["featureflow.mcp.tool.active_requests"])
}

func TestActionDocument(t *testing.T) {
	doc, err := actionDocument(nil)
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = actionDocument(&workflow.ShellAction{Command: "go test ./...", Instruction: "Run tests", ExpectSuccess: true})
	require.NoError(t, err)
	assert.Equal(t, "shell", doc["type"])
	assert.Equal(t, "go test ./...", doc["command"])
	assert.Equal(t, true, doc["expect_success"])
}
