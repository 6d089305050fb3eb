package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/uicheck/internal/obs"
	"github.com/kuitang/uicheck/internal/scenario"
)

const bundled = "../../scenarios"

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	restore := obs.SetOutputForTests(io.Discard)
	t.Cleanup(restore)
	t.Setenv("UICHECK_DRIVER", "")
	t.Setenv("UICHECK_ARTIFACT_BUCKET", "")

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "check.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "uicheck", cmd.Use)

	for _, name := range []string{"run", "validate", "list", "install"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestRunBundledScenariosOnFakeDriver(t *testing.T) {
	out, err := execute(t, "run", "--driver", "fake", bundled)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS    Playground / Planet weights")
	assert.Contains(t, out, "21 scenarios: 21 passed, 0 failed, 0 errored, 0 timed out")
}

func TestRunFailureExitsOneWithArtifactsAndMetrics(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "uicheck.prom")
	path := writeScenario(t, `
scenarios:
  - name: Wrong title
    steps:
      - navigate: http://localhost:5173/
      - expect: {to_have_title: React Project, timeout: 200ms}
`)
	out, err := execute(t, "run", "--driver", "fake", "--artifact-dir", filepath.Join(dir, "captures"), "--metrics-file", metricsFile, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL    Wrong title")
	assert.Contains(t, out, `expected: "React Project"`)
	assert.Contains(t, out, `observed: "Vue Project"`)
	assert.Contains(t, out, "artifact: ")

	captures, globErr := filepath.Glob(filepath.Join(dir, "captures", "*", "wrong-title", "step-2.html"))
	require.NoError(t, globErr)
	assert.Len(t, captures, 1)

	metrics, readErr := os.ReadFile(metricsFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(metrics), `uicheck_scenarios_total{status="failed"} 1`)
}

func TestRunJSONWithFilter(t *testing.T) {
	out, err := execute(t, "run", "--driver", "fake", "--format", "json", "--run", "/ Title$", bundled)
	require.NoError(t, err)

	var report struct {
		Totals   scenario.Totals `json:"totals"`
		Outcomes []struct {
			Scenario string `json:"scenario"`
			Status   string `json:"status"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, scenario.Totals{Scenarios: 3, Passed: 3}, report.Totals)
	for _, o := range report.Outcomes {
		assert.Equal(t, "passed", o.Status, o.Scenario)
	}
}

func TestRunCommandErrors(t *testing.T) {
	bad := writeScenario(t, "scenarios:\n  - name: x\n")
	tests := map[string][]string{
		"invalid file":    {"run", "--driver", "fake", bad},
		"missing path":    {"run", "--driver", "fake", filepath.Join(t.TempDir(), "nope.yaml")},
		"unknown driver":  {"run", "--driver", "selenium", bundled},
		"bad format":      {"--format", "xml", "run", "--driver", "fake", bundled},
		"no match":        {"run", "--driver", "fake", "--run", "^Nothing$", bundled},
		"invalid pattern": {"run", "--driver", "fake", "--run", "(", bundled},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err), err.Error())
		})
	}
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", bundled)
	require.NoError(t, err)
	assert.Regexp(t, `^ok: 21 scenarios, \d+ steps\n$`, out)

	bad := writeScenario(t, `
scenarios:
  - name: x
    steps:
      - click: {css: a, xpath: //a}
`)
	out, err = execute(t, "--format", "json", "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var res ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "line 5")
}

func TestList(t *testing.T) {
	out, err := execute(t, "--format", "json", "list", bundled)
	require.NoError(t, err)
	var plans []PlanSummary
	require.NoError(t, json.Unmarshal([]byte(out), &plans))
	require.Len(t, plans, 21)
	assert.Equal(t, "Ludic / Title", plans[0].Name)
	assert.Positive(t, plans[0].Steps)

	out, err = execute(t, "list", "--run", "^Numbers / Interaction", bundled)
	require.NoError(t, err)
	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, "Numbers / Interaction with inputs / 89 is valid, prime and Fibonacci")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(assert.AnError))
	wrapped := WrapExitError(ExitFailure, "outer", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, "outer: "+assert.AnError.Error(), wrapped.Error())
}
