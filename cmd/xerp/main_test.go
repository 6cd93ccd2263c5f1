package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBinaryPath string

// TestMain builds the xerp binary once for all tests in this package,
// mirroring the teacher's cmd/lci build-once-then-exec test harness.
func TestMain(m *testing.M) {
	tempBinary := filepath.Join(os.TempDir(), "xerp-test-"+fmt.Sprintf("%d", time.Now().UnixNano()))

	buildCmd := exec.Command("go", "build", "-o", tempBinary, ".")
	var buildOut bytes.Buffer
	buildCmd.Stdout = &buildOut
	buildCmd.Stderr = &buildOut
	if err := buildCmd.Run(); err != nil {
		fmt.Printf("failed to build xerp for testing: %v\nbuild output: %s\n", err, buildOut.String())
		os.Exit(1)
	}
	testBinaryPath = tempBinary

	code := m.Run()
	os.Remove(testBinaryPath)
	os.Exit(code)
}

func setupTestProject(t *testing.T) string {
	tempDir := t.TempDir()

	files := map[string]string{
		"main.go": `package main

import "fmt"

func main() {
	fmt.Println("hello")
	processData()
}

func processData() {
	data := "test data"
	fmt.Println(data)
}
`,
		"utils/helper.go": `package utils

// HelperFunction does important work.
func HelperFunction(input string) string {
	return "processed: " + input
}
`,
		"README.md": "# Test Project\nThis is a test project for CLI testing.\n",
	}
	for path, content := range files {
		full := filepath.Join(tempDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return tempDir
}

func runXerp(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(testBinaryPath, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestIndexQueryMarkWorkflow(t *testing.T) {
	dir := setupTestProject(t)

	out, _, err := runXerp(t, dir, "index", "--root", dir, "--train", "--json")
	require.NoError(t, err)
	var indexPayload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &indexPayload))
	assert.EqualValues(t, 3, indexPayload["files_indexed"])
	assert.Contains(t, indexPayload, "train")

	out, _, err = runXerp(t, dir, "query", "--root", dir, "--json", "processData")
	require.NoError(t, err)
	var queryPayload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &queryPayload))
	results, ok := queryPayload["results"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, results)
	first := results[0].(map[string]any)
	resultID, ok := first["result_id"].(string)
	require.True(t, ok)
	assert.Len(t, resultID, 64)

	out, _, err = runXerp(t, dir, "mark", "--root", dir, "--useful", "--json", resultID)
	require.NoError(t, err)
	var markPayload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &markPayload))
	assert.Equal(t, true, markPayload["recorded"])
	assert.InDelta(t, 1.0, markPayload["score"], 0.0001)
}

func TestMarkNotUsefulLowersSubsequentScore(t *testing.T) {
	dir := setupTestProject(t)

	_, _, err := runXerp(t, dir, "index", "--root", dir)
	require.NoError(t, err)

	out, _, err := runXerp(t, dir, "query", "--root", dir, "--json", "processData")
	require.NoError(t, err)
	var before map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &before))
	beforeResults := before["results"].([]any)
	require.NotEmpty(t, beforeResults)
	first := beforeResults[0].(map[string]any)
	resultID := first["result_id"].(string)
	beforeScore := first["score"].(float64)

	for i := 0; i < 10; i++ {
		_, _, err = runXerp(t, dir, "mark", "--root", dir, "--not-useful", resultID)
		require.NoError(t, err)
	}

	out, _, err = runXerp(t, dir, "query", "--root", dir, "--json", "processData")
	require.NoError(t, err)
	var after map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &after))
	var afterScore float64
	for _, r := range after["results"].([]any) {
		res := r.(map[string]any)
		if res["result_id"] == resultID {
			afterScore = res["score"].(float64)
		}
	}
	assert.Less(t, afterScore, beforeScore)
}

func TestQueryFileAndTypeFilters(t *testing.T) {
	dir := setupTestProject(t)

	_, _, err := runXerp(t, dir, "index", "--root", dir)
	require.NoError(t, err)

	out, _, err := runXerp(t, dir, "query", "--root", dir, "--json", "--type", "markdown", "project")
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	for _, r := range payload["results"].([]any) {
		result := r.(map[string]any)
		assert.Equal(t, "markdown", result["file_type"])
	}

	out, _, err = runXerp(t, dir, "query", "--root", dir, "--json", "--file", `\.go$`, "data")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	for _, r := range payload["results"].([]any) {
		result := r.(map[string]any)
		path, _ := result["file_path"].(string)
		assert.Regexp(t, `\.go$`, path)
	}
}

func TestOutlineCommand(t *testing.T) {
	dir := setupTestProject(t)

	_, _, err := runXerp(t, dir, "index", "--root", dir)
	require.NoError(t, err)

	out, _, err := runXerp(t, dir, "outline", "--root", dir, "--json", "--file", "main.go")
	require.NoError(t, err)
	var payload []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload, 1)
	assert.Equal(t, "main.go", payload[0]["path"])
}

func TestTermsCommand(t *testing.T) {
	dir := setupTestProject(t)

	_, _, err := runXerp(t, dir, "index", "--root", dir, "--train")
	require.NoError(t, err)

	out, _, err := runXerp(t, dir, "terms", "--root", dir, "--json", "processData")
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, true, payload["found"])
	assert.Equal(t, "combined", payload["source"])

	out, _, err = runXerp(t, dir, "terms", "--root", dir, "--json", "--source", "scope", "nosuchtokenatall")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, false, payload["found"])
}

func TestMarkRejectsBadResultID(t *testing.T) {
	dir := setupTestProject(t)

	_, stderr, err := runXerp(t, dir, "mark", "--root", dir, "--useful", "not-a-valid-id")
	require.Error(t, err)
	assert.Contains(t, stderr, "invalid RESULT_ID")
}

func TestMarkRejectsMultipleFlags(t *testing.T) {
	dir := setupTestProject(t)
	id := strings.Repeat("a", 64)

	_, stderr, err := runXerp(t, dir, "mark", "--root", dir, "--useful", "--not-useful", id)
	require.Error(t, err)
	assert.Contains(t, stderr, "exactly one of")
}

func TestQueryRequiresArgument(t *testing.T) {
	dir := setupTestProject(t)

	_, _, err := runXerp(t, dir, "query", "--root", dir)
	require.Error(t, err)
}

func TestExplicitConfigFlag(t *testing.T) {
	dir := setupTestProject(t)
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("query:\n  top_k: 2\n"), 0o644))

	_, _, err := runXerp(t, dir, "index", "--root", dir, "--config", explicit)
	require.NoError(t, err)

	out, _, err := runXerp(t, dir, "query", "--root", dir, "--config", explicit, "--json", "fmt")
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.EqualValues(t, 2, payload["top"])
}
