package robot

import (
	"fmt"
	"strings"
)

// Scopes an API can belong to. Local APIs act on or sense one robot; global
// APIs read the whole environment.
const (
	ScopeLocal  = "local"
	ScopeGlobal = "global"
)

// API describes one capability as shown to the model.
type API struct {
	Name        string
	Signature   string // Go func type, e.g. "func() Vector"
	Description string
	Scopes      []string
	bind        func(h Host) any
}

// Declaration renders the API as a bodiless Go declaration with its doc comment.
func (a API) Declaration() string {
	var b strings.Builder
	for _, line := range strings.Split(a.Description, "\n") {
		b.WriteString("// " + line + "\n")
	}
	b.WriteString(strings.Replace(a.Signature, "func", "func "+a.Name, 1))
	return b.String()
}

// InScope reports whether the API belongs to scope. An empty scope matches all.
func (a API) InScope(scope string) bool {
	if scope == "" {
		return true
	}
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

var catalog = []API{
	{
		Name:        "getSelfID",
		Signature:   "func() int",
		Description: "getSelfID returns the unique ID of the robot itself.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetSelfID },
	},
	{
		Name:        "getAllRobotsID",
		Signature:   "func() []int",
		Description: "getAllRobotsID returns the IDs of every robot in the environment, including this one.",
		Scopes:      []string{ScopeGlobal},
		bind:        func(h Host) any { return h.GetAllRobotsID },
	},
	{
		Name:        "getSelfPosition",
		Signature:   "func() Vector",
		Description: "getSelfPosition returns the real-time position of the robot itself.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetSelfPosition },
	},
	{
		Name:        "setSelfVelocity",
		Signature:   "func(velocity Vector)",
		Description: "setSelfVelocity sets the velocity of the robot itself immediately.\nSpeeds above the maximum speed are clamped.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.SetSelfVelocity },
	},
	{
		Name:        "getSelfVelocity",
		Signature:   "func() Vector",
		Description: "getSelfVelocity returns the real-time velocity of the robot itself.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetSelfVelocity },
	},
	{
		Name:        "getSelfRadius",
		Signature:   "func() float64",
		Description: "getSelfRadius returns the radius of the robot itself.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetSelfRadius },
	},
	{
		Name:        "stopSelf",
		Signature:   "func()",
		Description: "stopSelf stops the robot itself.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.StopSelf },
	},
	{
		Name:        "getEnvironmentRange",
		Signature:   "func() Range",
		Description: "getEnvironmentRange returns the x and y extent of the environment.\nRobots should stay within XMin, XMax, YMin and YMax.",
		Scopes:      []string{ScopeLocal, ScopeGlobal},
		bind:        func(h Host) any { return h.GetEnvironmentRange },
	},
	{
		Name:        "getSurroundingEnvironmentInfo",
		Signature:   "func() []Object",
		Description: "getSurroundingEnvironmentInfo returns the robots and obstacles within perception range.\nEach Object has Type (\"robot\" or \"obstacle\"), Position, Velocity (zero for obstacles) and Radius.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetSurroundingEnvironmentInfo },
	},
	{
		Name:        "getPreyPosition",
		Signature:   "func() Vector",
		Description: "getPreyPosition returns the real-time position of the prey, which keeps moving.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetPreyPosition },
	},
	{
		Name:        "getLeadPosition",
		Signature:   "func() Vector",
		Description: "getLeadPosition returns the real-time position of the lead, which keeps moving.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetLeadPosition },
	},
	{
		Name:        "getTargetPosition",
		Signature:   "func() Vector",
		Description: "getTargetPosition returns the position the robot should reach.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetTargetPosition },
	},
	{
		Name:        "getTargetFormationPoints",
		Signature:   "func() []Vector",
		Description: "getTargetFormationPoints returns the target points of the formation, one per robot.",
		Scopes:      []string{ScopeGlobal},
		bind:        func(h Host) any { return h.GetTargetFormationPoints },
	},
	{
		Name:        "getSurroundingUnexploredArea",
		Signature:   "func() []Area",
		Description: "getSurroundingUnexploredArea returns the unexplored areas within perception range.\nEach Area has an ID and the Position of its center.",
		Scopes:      []string{ScopeLocal},
		bind:        func(h Host) any { return h.GetSurroundingUnexploredArea },
	},
	{
		Name:        "getQuadrantTargetPosition",
		Signature:   "func() map[int]Vector",
		Description: "getQuadrantTargetPosition returns the target position of each quadrant, keyed by quadrant index 1 to 4.",
		Scopes:      []string{ScopeGlobal, ScopeLocal},
		bind:        func(h Host) any { return h.GetQuadrantTargetPosition },
	},
	{
		Name:        "getAllRobotsInitialPosition",
		Signature:   "func() map[int]Vector",
		Description: "getAllRobotsInitialPosition returns the initial position of every robot, keyed by robot ID.",
		Scopes:      []string{ScopeGlobal},
		bind:        func(h Host) any { return h.GetAllRobotsInitialPosition },
	},
	{
		Name:        "getPreyInitialPosition",
		Signature:   "func() Vector",
		Description: "getPreyInitialPosition returns where the prey started.\nThe prey moves, so controllers must track getPreyPosition in real time.",
		Scopes:      []string{ScopeGlobal},
		bind:        func(h Host) any { return h.GetPreyInitialPosition },
	},
	{
		Name:        "getInitialUnexploredAreas",
		Signature:   "func() []Vector",
		Description: "getInitialUnexploredAreas returns the center of every area unexplored at the start.",
		Scopes:      []string{ScopeGlobal},
		bind:        func(h Host) any { return h.GetInitialUnexploredAreas },
	},
}

// baseAPIs are available to every task.
var baseAPIs = []string{
	"getAllRobotsID",
	"getSelfID",
	"getSelfPosition",
	"setSelfVelocity",
	"getSelfRadius",
	"getSurroundingEnvironmentInfo",
	"getAllRobotsInitialPosition",
}

// taskAPIs are the extra APIs each task adds to the base set.
var taskAPIs = map[string][]string{
	"bridging":    {"stopSelf"},
	"aggregation": {"stopSelf"},
	"covering":    {"getEnvironmentRange", "stopSelf"},
	"crossing":    {"stopSelf"},
	"encircling":  {"getPreyPosition", "getPreyInitialPosition"},
	"exploration": {"getInitialUnexploredAreas", "getEnvironmentRange", "stopSelf"},
	"flocking":    {"getEnvironmentRange", "getSelfVelocity"},
	"clustering":  {"getQuadrantTargetPosition"},
	"shaping":     {"getTargetFormationPoints", "stopSelf"},
	"pursuing":    {"getLeadPosition"},
}

// Catalog returns every known API in catalog order.
func Catalog() []API {
	return append([]API(nil), catalog...)
}

func lookupAPI(name string) (API, bool) {
	for _, a := range catalog {
		if a.Name == name {
			return a, true
		}
	}
	return API{}, false
}

// APIs returns the APIs available for task, filtered by scope. An empty task
// returns the whole catalog.
func APIs(task, scope string) ([]API, error) {
	if task == "" {
		var out []API
		for _, a := range catalog {
			if a.InScope(scope) {
				out = append(out, a)
			}
		}
		return out, nil
	}

	extra, ok := taskAPIs[task]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownTask, task, strings.Join(TaskNames(), ", "))
	}

	var out []API
	for _, name := range append(append([]string(nil), baseAPIs...), extra...) {
		a, ok := lookupAPI(name)
		if !ok {
			return nil, fmt.Errorf("task %s references unknown API %s", task, name)
		}
		if a.InScope(scope) {
			out = append(out, a)
		}
	}
	return out, nil
}

// APIPrompt renders the APIs for task and scope as Go declarations.
func APIPrompt(task, scope string) (string, error) {
	apis, err := APIs(task, scope)
	if err != nil {
		return "", err
	}
	decls := make([]string, len(apis))
	for i, a := range apis {
		decls[i] = a.Declaration()
	}
	return strings.Join(decls, "\n\n"), nil
}

// APINames returns the API names for task and scope.
func APINames(task, scope string) ([]string, error) {
	apis, err := APIs(task, scope)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(apis))
	for i, a := range apis {
		names[i] = a.Name
	}
	return names, nil
}
