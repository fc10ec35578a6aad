package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const sampleResponses = `{
  "Describe your technical skills": "I built three production services in Go and led a team of two",
  "How do you collaborate?": "I pair with designers weekly and run our retrospectives"
}`

func TestHeuristicCommand_ScoresFromStdin(t *testing.T) {
	out, err := execute(t, sampleResponses, "heuristic", "--type", "fjrl")
	require.NoError(t, err)

	var got struct {
		Scores         domain.ScoreSet `json:"scores"`
		ReadinessLevel string          `json:"readinessLevel"`
		Strengths      []string        `json:"strengths"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	for _, c := range scoring.CategoriesFor(domain.TypeFirstJob) {
		assert.Contains(t, got.Scores.Categories, c)
	}
	assert.Equal(t, scoring.ReadinessLevel(got.Scores.Overall), got.ReadinessLevel)
	assert.NotEmpty(t, got.Strengths)
}

func TestHeuristicCommand_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleResponses), 0o600))

	out, err := execute(t, "", "heuristic", "-i", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"overallScore"`)
}

func TestHeuristicCommand_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		want  error
	}{
		{"not an object", `["a","b"]`, domain.ErrInvalidArgument},
		{"empty object", `{}`, domain.ErrMissingResponses},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, "heuristic")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCombineCommand(t *testing.T) {
	out, err := execute(t, "", "combine", "--form", "70", "--resume", "80")
	require.NoError(t, err)

	var cs domain.CombinedScore
	require.NoError(t, json.Unmarshal([]byte(out), &cs))
	assert.Equal(t, 42, cs.FormContribution)
	assert.Equal(t, 32, cs.ResumeContribution)
	assert.Equal(t, 74, cs.FinalScore)
	assert.Equal(t, scoring.CombinedTier(74), cs.ReadinessLevel)
}

func TestCombineCommand_Validation(t *testing.T) {
	_, err := execute(t, "", "combine", "--form", "70")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume")

	_, err = execute(t, "", "combine", "--form", "70", "--resume", "80", "--weight", "120")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestQuickCommand_FallsBackWithoutModel(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(provider.Close)

	t.Setenv("APP_ENV", "test")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("OPENAI_BASE_URL", provider.URL)
	t.Setenv("AI_RATE_LIMIT_PER_MIN", "0")

	out, err := execute(t, sampleResponses, "quick", "--type", "ijrl")
	require.NoError(t, err)
	assert.Contains(t, out, `"scoringMethod": "heuristic"`)
}

func TestArgsValidation(t *testing.T) {
	for _, args := range [][]string{{"extract"}, {"seed"}, {"run"}, {"run", "a", "b"}} {
		_, err := execute(t, "", args...)
		assert.Error(t, err, args)
	}
}
