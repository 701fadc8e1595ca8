package prompt

import (
	"strings"

	"swarmcap/internal/robot"
)

// Builder renders the prompts for one task.
type Builder struct {
	Task     string
	APIs     string
	Packages []string
}

// NewBuilder prepares a builder whose API listing covers task. packages is
// the import allow-list shown to the model.
func NewBuilder(task string, packages []string) (*Builder, error) {
	apis, err := robot.APIPrompt(task, "")
	if err != nil {
		return nil, err
	}
	return &Builder{Task: task, APIs: apis, Packages: packages}, nil
}

type mainData struct {
	Environment string
	APIs        string
	Instruction string
	History     string
	Context     string
}

// MainPrompt renders the top-level controller prompt. history and
// extraContext are appended when non-empty.
func (b *Builder) MainPrompt(instruction, history, extraContext string) (string, error) {
	return Render("main", mainData{
		Environment: Environment(),
		APIs:        b.APIs,
		Instruction: instruction,
		History:     strings.TrimSpace(history),
		Context:     strings.TrimSpace(extraContext),
	})
}

type functionData struct {
	Environment string
	APIs        string
	Helpers     []string
	Name        string
	Signature   string
	Packages    string
}

// FunctionPrompt renders the prompt for one missing function.
func (b *Builder) FunctionPrompt(name, signature string, helpers []string) (string, error) {
	return Render("function", functionData{
		Environment: Environment(),
		APIs:        b.APIs,
		Helpers:     helpers,
		Name:        name,
		Signature:   signature,
		Packages:    strings.Join(b.Packages, ", "),
	})
}
