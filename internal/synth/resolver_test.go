package synth

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmcap/internal/llm"
)

const mainWithHelper = `func main() {
	a := helper(getSelfPosition())
	_ = a
}`

func TestResolve_SingleMissingHelper(t *testing.T) {
	fs := &fakeSynthesizer{decls: map[string]string{
		"helper": "func helper(p Vector) float64 { return p.X + float64(getSelfID()) }",
	}}
	binder := &recordingBinder{}
	r := NewResolver(fs, binder, 0)

	res, err := r.Resolve(context.Background(), mainWithHelper, NewNamespace(testAPI()))
	require.NoError(t, err)

	assert.Equal(t, []string{"helper"}, fs.calls)
	assert.Equal(t, []string{"helper"}, res.Names())
	assert.False(t, res.Functions[0].Rebound)
	assert.Equal(t, 1, res.Functions[0].Depth)
	assert.Equal(t, 1, binder.calls)
}

func TestResolve_ChildTriggersRebind(t *testing.T) {
	helperSrc := "func helper(p Vector) float64 { return subHelper() * p.X }"
	fs := &fakeSynthesizer{decls: map[string]string{
		"helper":    helperSrc,
		"subHelper": "func subHelper() float64 { return 2 }",
	}}
	binder := &recordingBinder{}
	r := NewResolver(fs, binder, 0)

	res, err := r.Resolve(context.Background(), mainWithHelper, NewNamespace(testAPI()))
	require.NoError(t, err)

	assert.Equal(t, []string{"helper", "subHelper"}, fs.calls)
	// bottom-up: children precede their parent
	assert.Equal(t, []string{"subHelper", "helper"}, res.Names())

	helper := res.Functions[1]
	assert.True(t, helper.Rebound)
	assert.Equal(t, []string{"subHelper"}, helper.Children)
	assert.Equal(t, helperSrc, res.Sources()["helper"])
	assert.Equal(t, 2, res.Functions[0].Depth)

	// one bind over the whole tree, after every child exists
	assert.Equal(t, [][]string{{"subHelper", "helper"}}, binder.names)
}

func TestResolve_EncounterOrderIsDeterministic(t *testing.T) {
	code := "func main() {\n\tc()\n\ta()\n\tb(a())\n}"
	decls := map[string]string{
		"a": "func a() int { return 1 }",
		"b": "func b(x int) {}",
		"c": "func c() {}",
	}

	var first []string
	for i := 0; i < 10; i++ {
		fs := &fakeSynthesizer{decls: decls}
		_, err := NewResolver(fs, &recordingBinder{}, 0).Resolve(context.Background(), code, NewNamespace(nil))
		require.NoError(t, err)
		if first == nil {
			first = fs.calls
			continue
		}
		if diff := cmp.Diff(first, fs.calls); diff != "" {
			t.Fatalf("synthesis order changed (-first +run):\n%s", diff)
		}
	}
	assert.Equal(t, []string{"c", "a", "b"}, first)
}

func TestResolve_SiblingsVisibleToLaterSiblings(t *testing.T) {
	code := "func main() {\n\tfirst()\n\tsecond()\n}"
	fs := &fakeSynthesizer{decls: map[string]string{
		"first":  "func first() {}",
		"second": "func second() { first() }",
	}}

	res, err := NewResolver(fs, &recordingBinder{}, 0).Resolve(context.Background(), code, NewNamespace(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, fs.calls)
	assert.Equal(t, []int{0, 1}, fs.seenNS)
	assert.False(t, res.Functions[1].Rebound)
}

func TestResolve_MutualRecursionTerminates(t *testing.T) {
	code := "func main() { ping(3) }"
	fs := &fakeSynthesizer{decls: map[string]string{
		"ping": "func ping(n int) { if n > 0 { pong(n - 1) } }",
		"pong": "func pong(n int) { if n > 0 { ping(n - 1); pong(0) } }",
	}}

	res, err := NewResolver(fs, &recordingBinder{}, 0).Resolve(context.Background(), code, NewNamespace(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"ping", "pong"}, fs.calls)
	assert.Equal(t, []string{"pong", "ping"}, res.Names())
}

func TestResolve_NothingMissing(t *testing.T) {
	binder := &recordingBinder{}
	fs := &fakeSynthesizer{}
	res, err := NewResolver(fs, binder, 0).Resolve(context.Background(),
		"func main() {\n\tp := getSelfPosition()\n\t_ = len([]int{})\n\t_ = p\n}", NewNamespace(testAPI()))
	require.NoError(t, err)

	assert.Empty(t, res.Functions)
	assert.Empty(t, fs.calls)
	assert.Zero(t, binder.calls)
}

func TestResolve_SkipsEarlierSynthesizedNames(t *testing.T) {
	ns := NewNamespace(nil)
	require.NoError(t, ns.Define(&SynthesizedFunction{Name: "helper"}))

	fs := &fakeSynthesizer{}
	res, err := NewResolver(fs, &recordingBinder{}, 0).Resolve(context.Background(), "helper()", ns)
	require.NoError(t, err)
	assert.Empty(t, res.Functions)
}

func TestResolve_MergeCompleteness(t *testing.T) {
	code := `func main() {
	x := alpha(getSelfPosition())
	beta(x)
	gamma()
}`
	fs := &fakeSynthesizer{decls: map[string]string{
		"alpha": "func alpha(p Vector) int { return delta() }",
		"beta":  "func beta(x int) {}",
		"gamma": "func gamma() { beta(1) }",
		"delta": "func delta() int { return 0 }",
	}}
	ns := NewNamespace(testAPI())

	res, err := NewResolver(fs, &recordingBinder{}, 0).Resolve(context.Background(), code, ns)
	require.NoError(t, err)

	merged, err := ns.With(res.Functions...)
	require.NoError(t, err)

	analysis, err := Analyze(code)
	require.NoError(t, err)
	for _, name := range analysis.Names() {
		assert.True(t, Exists(name, merged), name)
	}
	// ns itself is untouched
	assert.Empty(t, ns.Synthesized())
}

func TestResolve_ChildFailurePropagates(t *testing.T) {
	boom := &MalformedResponseError{Name: "subHelper", Reason: "no fenced code block in reply"}
	fs := &fakeSynthesizer{
		decls: map[string]string{"helper": "func helper(p Vector) float64 { return subHelper() }"},
		errs:  map[string]error{"subHelper": boom},
	}
	binder := &recordingBinder{}

	res, err := NewResolver(fs, binder, 0).Resolve(context.Background(), mainWithHelper, NewNamespace(testAPI()))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Same(t, boom, err)
	assert.Zero(t, binder.calls)
}

func TestResolve_ParseErrorIsFatal(t *testing.T) {
	_, err := NewResolver(&fakeSynthesizer{}, &recordingBinder{}, 0).Resolve(context.Background(), "func main( {", NewNamespace(nil))
	assert.ErrorIs(t, err, ErrParse)
}

func TestResolve_BindFailurePropagates(t *testing.T) {
	fs := &fakeSynthesizer{decls: map[string]string{"helper": "func helper(p Vector) float64 { return 1 }"}}
	binder := &recordingBinder{bindFunc: func(*Namespace, []*SynthesizedFunction) error {
		return &UnresolvableNameError{Name: "helper", Reason: "gone"}
	}}

	res, err := NewResolver(fs, binder, 0).Resolve(context.Background(), mainWithHelper, NewNamespace(testAPI()))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnresolvableName)
}

func TestResolve_MaxDepth(t *testing.T) {
	fs := &fakeSynthesizer{decls: map[string]string{
		"a": "func a() { b() }",
		"b": "func b() { c() }",
		"c": "func c() {}",
	}}

	_, err := NewResolver(fs, &recordingBinder{}, 2).Resolve(context.Background(), "a()", NewNamespace(nil))
	assert.ErrorIs(t, err, ErrDepthExceeded)

	fs.calls = nil
	res, err := NewResolver(fs, &recordingBinder{}, 3).Resolve(context.Background(), "a()", NewNamespace(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, res.Names())
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := &fakeSynthesizer{decls: map[string]string{"helper": "func helper(p Vector) float64 { return 1 }"}}
	_, err := NewResolver(fs, &recordingBinder{}, 0).Resolve(ctx, mainWithHelper, NewNamespace(testAPI()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.calls)
}

func TestResolve_EndToEndWithSandbox(t *testing.T) {
	client := llm.NewScriptedClient(
		fenced("// helper scales the x coordinate.\nfunc helper(p Vector) float64 {\n\treturn subHelper() * p.X\n}"),
		fenced("import \"math\"\n\nfunc subHelper() float64 {\n\treturn math.Abs(-3)\n}"),
	)
	api := testAPI()
	s := NewSynthesizer(client, stubPrompts{})
	sb := NewSandbox(api, WithOutput(&bytes.Buffer{}))

	res, err := NewResolver(s, sb, 0).Resolve(context.Background(), mainWithHelper, NewNamespace(api))
	require.NoError(t, err)

	callables := res.Callables()
	require.Len(t, callables, 2)
	helper, ok := callables["helper"].Interface().(func(testVector) float64)
	require.True(t, ok)
	assert.Equal(t, 6.0, helper(testVector{X: 2}))

	assert.Contains(t, res.Sources()["helper"], "return subHelper() * p.X")
	assert.True(t, res.Functions[1].Rebound)
}
