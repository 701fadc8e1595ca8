package robot

import (
	"swarmcap/internal/synth"
)

// Host is the robot side of every capability. MockRobot implements it for
// local runs; a simulator bridge would implement it for real ones.
type Host interface {
	GetSelfID() int
	GetAllRobotsID() []int
	GetSelfPosition() Vector
	SetSelfVelocity(velocity Vector)
	GetSelfVelocity() Vector
	GetSelfRadius() float64
	StopSelf()
	GetEnvironmentRange() Range
	GetSurroundingEnvironmentInfo() []Object
	GetPreyPosition() Vector
	GetLeadPosition() Vector
	GetTargetPosition() Vector
	GetTargetFormationPoints() []Vector
	GetSurroundingUnexploredArea() []Area
	GetQuadrantTargetPosition() map[int]Vector
	GetAllRobotsInitialPosition() map[int]Vector
	GetPreyInitialPosition() Vector
	GetInitialUnexploredAreas() []Vector
}

// HostTypes are the value types capabilities exchange, exported to generated code.
func HostTypes() map[string]any {
	return map[string]any{
		"Vector": (*Vector)(nil),
		"Object": (*Object)(nil),
		"Range":  (*Range)(nil),
		"Area":   (*Area)(nil),
	}
}

// HostAPI binds the APIs of task to host. Only that task's APIs become
// capabilities, so generated code cannot reach the others. An empty task
// binds the whole catalog.
func HostAPI(host Host, task string) (*synth.HostAPI, error) {
	apis, err := APIs(task, "")
	if err != nil {
		return nil, err
	}
	caps := make([]synth.Capability, len(apis))
	for i, a := range apis {
		caps[i] = synth.Capability{
			Name:      a.Name,
			Signature: a.Signature,
			Doc:       a.Description,
			Func:      a.bind(host),
		}
	}
	return &synth.HostAPI{
		ImportPath:   synth.DefaultHostImportPath,
		Types:        HostTypes(),
		Capabilities: caps,
	}, nil
}
