package prompt

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmcap/internal/robot"
)

func TestEmbeddedAtomsLoad(t *testing.T) {
	all, err := loadAtoms()
	require.NoError(t, err)
	for _, id := range []string{"environment", "main", "function"} {
		assert.Contains(t, all, id)
	}
	assert.Contains(t, Environment(), "max_speed: 0.2m/s")
}

func TestMainPrompt(t *testing.T) {
	b, err := NewBuilder("flocking", []string{"math"})
	require.NoError(t, err)

	task, err := robot.LookupTask("flocking")
	require.NoError(t, err)

	p, err := b.MainPrompt(task.Instruction, "", "")
	require.NoError(t, err)

	assert.Contains(t, p, "instruction: "+task.Instruction)
	assert.Contains(t, p, "func getSelfVelocity() Vector")
	assert.Contains(t, p, "Environment is composed of a 2D plane")
	assert.NotContains(t, p, "Code executed so far")
	assert.True(t, strings.HasSuffix(p, "code:\n"))
}

func TestMainPrompt_HistoryAndContext(t *testing.T) {
	b, err := NewBuilder("aggregation", nil)
	require.NoError(t, err)

	p, err := b.MainPrompt("gather", "func main() { old() }", "// prefer short moves")
	require.NoError(t, err)

	hist := strings.Index(p, "func main() { old() }")
	ctx := strings.Index(p, "// prefer short moves")
	require.Positive(t, hist)
	assert.Greater(t, ctx, hist)
}

func TestFunctionPrompt(t *testing.T) {
	b, err := NewBuilder("shaping", []string{"math", "sort"})
	require.NoError(t, err)

	p, err := b.FunctionPrompt("assignPoint", "target := assignPoint(id, points)",
		[]string{"func nearest(p Vector) Vector // nearest returns the closest point."})
	require.NoError(t, err)

	assert.Contains(t, p, "function name: assignPoint")
	assert.Contains(t, p, "function signature: target := assignPoint(id, points)")
	assert.Contains(t, p, "func nearest(p Vector) Vector // nearest returns the closest point.")
	assert.Contains(t, p, "standard library packages: math, sort.")
	assert.Contains(t, p, "func getTargetFormationPoints() []Vector")
}

func TestFunctionPrompt_NoHelpersSection(t *testing.T) {
	b, err := NewBuilder("bridging", nil)
	require.NoError(t, err)
	p, err := b.FunctionPrompt("f", "f()", nil)
	require.NoError(t, err)
	assert.NotContains(t, p, "already exist")
}

func TestNewBuilder_UnknownTask(t *testing.T) {
	_, err := NewBuilder("juggling", nil)
	assert.ErrorIs(t, err, robot.ErrUnknownTask)
}

func TestParseAtoms_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing id", fstest.MapFS{"t/a.yaml": {Data: []byte("content: hi\n")}}},
		{"bad yaml", fstest.MapFS{"t/a.yaml": {Data: []byte("id: [\n")}}},
		{"bad template", fstest.MapFS{"t/a.yaml": {Data: []byte("id: a\ncontent: \"{{.X\"\n")}}},
		{"duplicate", fstest.MapFS{
			"t/a.yaml": {Data: []byte("id: a\ncontent: x\n")},
			"t/b.yaml": {Data: []byte("id: a\ncontent: y\n")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAtoms(tt.fsys, "t")
			assert.Error(t, err)
		})
	}
}

func TestRender_UnknownAtom(t *testing.T) {
	_, err := Render("nope", nil)
	assert.Error(t, err)
}
