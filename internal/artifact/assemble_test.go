package artifact

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmcap/internal/synth"
)

func helper(t *testing.T, name, block string) *synth.SynthesizedFunction {
	t.Helper()
	def, err := synth.ParseDefinition(name, block, func(string) bool { return true })
	require.NoError(t, err)
	return &synth.SynthesizedFunction{Name: name, Definition: *def}
}

func TestAssemble_MergesImportsAndKeepsOrder(t *testing.T) {
	entry := "import (\n\t\"fmt\"\n\t\"math\"\n)\n\n// main drives the robot.\nfunc main() {\n\tfmt.Println(math.Pi, step())\n}"
	step := helper(t, "step", "import \"math\"\n\n// step is one unit.\nfunc step() float64 { return math.Sqrt(1) }")
	jitter := helper(t, "jitter", "import r \"math/rand\"\n\nfunc jitter() float64 { return r.Float64() }")

	out, err := Assemble(entry, []*synth.SynthesizedFunction{step, jitter})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "package main\n"))
	assert.Equal(t, 1, strings.Count(out, `"math"`), "duplicate imports are merged")
	assert.Contains(t, out, `r "math/rand"`)
	assert.Contains(t, out, "// main drives the robot.\nfunc main()")
	assert.Contains(t, out, "// step is one unit.\nfunc step() float64")

	mainAt := strings.Index(out, "func main")
	stepAt := strings.Index(out, "func step")
	jitterAt := strings.Index(out, "func jitter")
	assert.Less(t, mainAt, stepAt)
	assert.Less(t, stepAt, jitterAt)

	_, err = parser.ParseFile(token.NewFileSet(), "main.go", out, 0)
	assert.NoError(t, err, "assembled program must parse:\n%s", out)
}

func TestAssemble_FullFileEntry(t *testing.T) {
	out, err := Assemble("package main\n\nfunc main() {}\n", nil)
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {}\n", out)
}

func TestAssemble_ParseError(t *testing.T) {
	_, err := Assemble("func main( {", nil)
	assert.ErrorIs(t, err, synth.ErrParse)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, StatusSuccess},
		{context.DeadlineExceeded, StatusTimeout},
		{fmt.Errorf("run: %w", context.DeadlineExceeded), StatusTimeout},
		{context.Canceled, StatusError},
		{errors.New("boom"), StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
}
