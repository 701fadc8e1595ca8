package session

import (
	"context"
	"errors"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmcap/internal/artifact"
	"swarmcap/internal/config"
	"swarmcap/internal/llm"
	"swarmcap/internal/robot"
	"swarmcap/internal/synth"
)

func fenced(code string) string {
	return "Here you go:\n```go\n" + code + "\n```\n"
}

const controller = `func main() {
	d := distanceFromOrigin()
	if d > 1 {
		setSelfVelocity(getSelfPosition())
	}
}`

const distanceHelper = `import "math"

// distanceFromOrigin is the robot's distance to (0, 0).
func distanceFromOrigin() float64 {
	p := getSelfPosition()
	return math.Sqrt(square(p.X) + square(p.Y))
}`

const squareHelper = `// square returns x*x.
func square(x float64) float64 {
	return x * x
}`

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "scripted"
	cfg.LLM.Model = "test-model"
	return cfg
}

func testHost(t *testing.T) *robot.MockRobot {
	t.Helper()
	w := robot.NewWorld(robot.WorldConfig{Robots: 4, Obstacles: 2, Seed: 3})
	r, ok := w.Robot(0)
	require.True(t, ok)
	return r
}

func newTestSession(t *testing.T, cfg *config.Config, client llm.Client, opts ...Option) *Session {
	t.Helper()
	s, err := New(cfg, "flocking", testHost(t), client, opts...)
	require.NoError(t, err)
	return s
}

func TestSession_RunSynthesizesAndPersists(t *testing.T) {
	dir := t.TempDir()
	ledger, err := artifact.OpenLedger(filepath.Join(dir, "runs.db"), "sqlite")
	require.NoError(t, err)
	defer ledger.Close()

	client := llm.NewScriptedClient(fenced(controller), fenced(distanceHelper), fenced(squareHelper))
	s := newTestSession(t, testConfig(), client,
		WithStore(artifact.NewStore(dir)), WithLedger(ledger))

	art, err := s.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"square", "distanceFromOrigin"}, art.Helpers)
	assert.Contains(t, art.Content, "package main")
	assert.Contains(t, art.Content, `"math"`)
	assert.Contains(t, art.Content, "func main() {")
	assert.Contains(t, art.Content, "// square returns x*x.")
	assert.Less(t, strings.Index(art.Content, "func main"), strings.Index(art.Content, "func square"))

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, art.Content, string(data))
	assert.Equal(t, filepath.Join(dir, "flocking"), filepath.Dir(filepath.Dir(art.Path)))

	fn, ok := s.State().Namespace().Callable("distanceFromOrigin")
	require.True(t, ok)
	dist, ok := fn.Interface().(func() float64)
	require.True(t, ok)
	assert.InDelta(t, testHost(t).GetSelfPosition().Norm(), dist(), 1e-9)

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, 1.0, reqs[0].Temperature)
	assert.Equal(t, "test-model", reqs[0].Model)
	assert.Contains(t, reqs[0].Prompt, "getSelfPosition")
	assert.Equal(t, 0.0, reqs[1].Temperature)
	assert.Contains(t, reqs[1].Prompt, "distanceFromOrigin")

	runs, err := ledger.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, art.RunID, runs[0].ID)
	assert.Equal(t, artifact.StatusSuccess, runs[0].Status)
	assert.Equal(t, 2, runs[0].Helpers)
	assert.Equal(t, art.Path, runs[0].ArtifactPath)
}

func TestSession_HistoryCarriesAcrossRuns(t *testing.T) {
	second := "func main() {\n\t_ = distanceFromOrigin()\n}"
	client := llm.NewScriptedClient(fenced(controller), fenced(distanceHelper), fenced(squareHelper), fenced(second))
	s := newTestSession(t, testConfig(), client)

	_, err := s.Run(context.Background(), "", "# first context")
	require.NoError(t, err)
	art, err := s.Run(context.Background(), "keep going", "")
	require.NoError(t, err)

	reqs := client.Requests()
	require.Len(t, reqs, 4, "helpers from the first run are reused")
	assert.Contains(t, reqs[3].Prompt, "# first context\n"+controller)
	assert.Contains(t, reqs[3].Prompt, "keep going")
	assert.Equal(t, []string{"square", "distanceFromOrigin"}, art.Helpers)
	assert.Contains(t, s.State().History(), second)
}

func TestSession_EntryDeclaredHelperIsNotDuplicated(t *testing.T) {
	second := `func main() {
	_ = distanceFromOrigin()
}

func square(x float64) float64 {
	return x * x * 1
}`
	client := llm.NewScriptedClient(fenced(controller), fenced(distanceHelper), fenced(squareHelper), fenced(second))
	s := newTestSession(t, testConfig(), client)

	_, err := s.Run(context.Background(), "", "")
	require.NoError(t, err)
	art, err := s.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"distanceFromOrigin"}, art.Helpers)
	assert.Equal(t, 1, strings.Count(art.Content, "func square("))
	assert.Contains(t, art.Content, "x * x * 1")
	_, err = parser.ParseFile(token.NewFileSet(), "main.go", art.Content, 0)
	require.NoError(t, err)
}

func TestSession_ArtifactOmitsUnreachedHelpers(t *testing.T) {
	second := "func main() {\n\tsetSelfVelocity(getSelfPosition())\n}"
	client := llm.NewScriptedClient(fenced(controller), fenced(distanceHelper), fenced(squareHelper), fenced(second))
	s := newTestSession(t, testConfig(), client)

	_, err := s.Run(context.Background(), "", "")
	require.NoError(t, err)
	art, err := s.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Empty(t, art.Helpers)
	assert.NotContains(t, art.Content, "func square(")
	assert.NotContains(t, art.Content, `"math"`)
	assert.True(t, s.State().Namespace().Contains("distanceFromOrigin"), "namespace keeps earlier helpers")
}

func TestSession_MaintainSessionOff(t *testing.T) {
	cfg := testConfig()
	cfg.Synthesis.MaintainSession = false
	cfg.Synthesis.IncludeContext = false
	second := "func main() {\n\t_ = distanceFromOrigin()\n}"
	client := llm.NewScriptedClient(fenced(controller), fenced(distanceHelper), fenced(squareHelper), fenced(second))
	s := newTestSession(t, cfg, client)

	_, err := s.Run(context.Background(), "", "# ctx")
	require.NoError(t, err)
	_, err = s.Run(context.Background(), "", "")
	require.NoError(t, err)

	reqs := client.Requests()
	assert.NotContains(t, reqs[3].Prompt, controller)
	assert.NotContains(t, s.State().History(), "# ctx")
	assert.Contains(t, s.State().History(), controller)
}

func TestSession_RequiresMain(t *testing.T) {
	dir := t.TempDir()
	ledger, err := artifact.OpenLedger(filepath.Join(dir, "runs.db"), "")
	require.NoError(t, err)
	defer ledger.Close()

	client := llm.NewScriptedClient(fenced("func helper() {}"))
	s := newTestSession(t, testConfig(), client, WithLedger(ledger))

	_, err = s.Run(context.Background(), "", "")
	require.ErrorIs(t, err, synth.ErrMalformedResponse)
	var me *synth.MalformedResponseError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "main", me.Name)

	counts, err := ledger.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{artifact.StatusError: 1}, counts)
}

func TestSession_NoCodeBlock(t *testing.T) {
	s := newTestSession(t, testConfig(), llm.NewScriptedClient("I cannot help with that."))

	_, err := s.Run(context.Background(), "", "")
	var me *synth.MalformedResponseError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "main", me.Name)
}

func TestSession_FailedRunLeavesStateUntouched(t *testing.T) {
	client := llm.NewScriptedClient(fenced(controller), "no code here")
	s := newTestSession(t, testConfig(), client)
	before := s.State().Namespace()

	_, err := s.Run(context.Background(), "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, synth.ErrMalformedResponse)
	assert.Same(t, before, s.State().Namespace())
	assert.Empty(t, s.State().History())
}

func TestSession_ClientErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", boom
	})
	s := newTestSession(t, testConfig(), client)

	_, err := s.Run(context.Background(), "", "")
	assert.ErrorIs(t, err, boom)
}

func TestSession_UnknownTask(t *testing.T) {
	_, err := New(testConfig(), "juggling", testHost(t), llm.NewScriptedClient())
	assert.ErrorIs(t, err, robot.ErrUnknownTask)
}

func TestState_Reset(t *testing.T) {
	client := llm.NewScriptedClient(fenced(controller), fenced(distanceHelper), fenced(squareHelper))
	s := newTestSession(t, testConfig(), client)
	_, err := s.Run(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, s.State().Namespace().Synthesized(), 2)

	s.State().Reset()
	assert.Empty(t, s.State().History())
	assert.Empty(t, s.State().Namespace().Synthesized())
	assert.True(t, synth.Exists("getSelfPosition", s.State().Namespace()))
}
