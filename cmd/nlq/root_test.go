package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
app:
  name: nlq-test
camunda:
  enabled: false
llm:
  provider: none
knowledge:
  backend: memory
logging:
  level: error
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", path}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeJSON(t *testing.T) {
	out, err := run(t, "analyze", "--json", "Quantas entregas do Assai estão atrasadas hoje?")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "count", res["intent"].(map[string]interface{})["type"])
	assert.Equal(t, false, res["clarificationNeeded"])
}

func TestAnalyzeText(t *testing.T) {
	out, err := run(t, "analyze", "Quantas", "entregas", "do", "Assai", "estão", "atrasadas", "hoje?")
	require.NoError(t, err)
	assert.Contains(t, out, "Intenção: count")
	assert.Contains(t, out, "Domínio: deliveries")
	assert.Contains(t, out, "Filtro client: Assai")
}

func TestOrchestrate_ClarificationText(t *testing.T) {
	out, err := run(t, "orchestrate", "cliente")
	require.NoError(t, err)
	assert.Contains(t, out, "Preciso de mais detalhes:")
}

func TestOrchestrate_NoCompleterFallsBack(t *testing.T) {
	out, err := run(t, "orchestrate", "--json", "--trace", "Quantas entregas do Assai estão atrasadas hoje?")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	resp := res["response"].(map[string]interface{})
	assert.Equal(t, true, resp["insufficient"])
	assert.NotEmpty(t, resp["text"])
	assert.NotEmpty(t, res["trace"])
}

func TestRefine_Budget(t *testing.T) {
	out, err := run(t, "refine", "--json", "--max-iterations", "2", "remessas do Assai atrasadas hoje")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.LessOrEqual(t, len(res["trace"].([]interface{})), 2)
}

func TestFeedback(t *testing.T) {
	out, err := run(t, "feedback", "--text", "Assaí", "--interpretation", "trend", "--json")
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "assai", rec["patternText"])
	assert.Equal(t, "reinforce", rec["outcome"])
	assert.NotEmpty(t, rec["id"])

	_, err = run(t, "feedback", "--text", "assai", "--interpretation", "trend", "--outcome", "maybe")
	assert.Error(t, err)

	_, err = run(t, "feedback", "--text", "assai")
	assert.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "analyze", "frete"})
	assert.Error(t, cmd.Execute())
}

func TestRegistry(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"registry", "list"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "nlp-orchestrate-query")
	assert.Contains(t, out.String(), "nlq.feedback.record")

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"registry", "validate"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "registry ok: 3 activities\n", out.String())

	bad := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"activities":[{"id":"Bad","taskType":"x"}]}`), 0o600))
	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"registry", "validate", "--path", bad})
	assert.Error(t, cmd.Execute())
}
