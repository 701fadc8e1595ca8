package robot

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"swarmcap/internal/logging"
)

// Physical constants of the simulated robots.
const (
	MaxSpeed           = 0.2  // m/s
	RobotRadius        = 0.1  // m
	ObstacleRadius     = 0.15 // m
	PerceptionRange    = 1.0  // m
	PositionResolution = 0.05 // m
	exploreRadius      = 0.25 // an area counts as explored once a robot gets this close
)

// WorldConfig sizes a mock world.
type WorldConfig struct {
	Robots    int
	Obstacles int
	Seed      int64
	Extent    float64 // half-width of the square environment
}

// World is a seeded 2D environment of circular robots and static obstacles.
// It is safe for concurrent use.
type World struct {
	mu sync.Mutex

	bounds    Range
	robots    []*MockRobot
	obstacles []Object
	initial   map[int]Vector

	prey, preyInitial Vector
	lead, leadVel     Vector
	formation         []Vector
	areas             []Area
	explored          map[int]bool
	quadrants         map[int]Vector

	rng  *rand.Rand
	time float64
}

// NewWorld places robots, obstacles, prey and lead at random without overlap.
func NewWorld(cfg WorldConfig) *World {
	if cfg.Extent <= 0 {
		cfg.Extent = 2.5
	}
	if cfg.Robots < 0 {
		cfg.Robots = 0
	}
	e := cfg.Extent
	w := &World{
		bounds:   Range{XMin: -e, XMax: e, YMin: -e, YMax: e},
		initial:  make(map[int]Vector),
		explored: make(map[int]bool),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		quadrants: map[int]Vector{
			1: {e / 2, e / 2},
			2: {-e / 2, e / 2},
			3: {-e / 2, -e / 2},
			4: {e / 2, -e / 2},
		},
	}

	var taken []Object
	for i := 0; i < cfg.Obstacles; i++ {
		p := w.freeSpot(taken, ObstacleRadius)
		o := Object{Type: "obstacle", Position: p, Radius: ObstacleRadius}
		w.obstacles = append(w.obstacles, o)
		taken = append(taken, o)
	}
	for i := 0; i < cfg.Robots; i++ {
		p := w.freeSpot(taken, RobotRadius)
		r := &MockRobot{world: w, id: i, pos: p, radius: RobotRadius}
		w.robots = append(w.robots, r)
		w.initial[i] = p
		taken = append(taken, Object{Type: "robot", Position: p, Radius: RobotRadius})
	}

	w.prey = w.freeSpot(taken, RobotRadius)
	w.preyInitial = w.prey
	w.lead = w.freeSpot(taken, RobotRadius)
	w.leadVel = Polar(MaxSpeed/2, w.rng.Float64()*2*math.Pi)

	for i := 0; i < cfg.Robots; i++ {
		w.formation = append(w.formation, Polar(e/3, 2*math.Pi*float64(i)/float64(cfg.Robots)))
	}

	const cells = 4
	step := 2 * e / cells
	for i := 0; i < cells*cells; i++ {
		col, row := i%cells, i/cells
		w.areas = append(w.areas, Area{
			ID:       i,
			Position: Vector{-e + step*(float64(col)+0.5), -e + step*(float64(row)+0.5)},
		})
	}

	logging.SimulationDebug("world: %d robots, %d obstacles, extent %.2f, seed %d", cfg.Robots, cfg.Obstacles, e, cfg.Seed)
	return w
}

func (w *World) freeSpot(taken []Object, radius float64) Vector {
	var p Vector
	for attempt := 0; attempt < 200; attempt++ {
		p = Vector{
			X: w.bounds.XMin + radius + w.rng.Float64()*(w.bounds.XMax-w.bounds.XMin-2*radius),
			Y: w.bounds.YMin + radius + w.rng.Float64()*(w.bounds.YMax-w.bounds.YMin-2*radius),
		}
		free := true
		for _, o := range taken {
			if p.Dist(o.Position) < radius+o.Radius+PositionResolution {
				free = false
				break
			}
		}
		if free {
			return p
		}
	}
	return p
}

// Robots returns every robot in ID order.
func (w *World) Robots() []*MockRobot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*MockRobot(nil), w.robots...)
}

// Robot returns the robot with the given ID.
func (w *World) Robot(id int) (*MockRobot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id < 0 || id >= len(w.robots) {
		return nil, false
	}
	return w.robots[id], true
}

// Time returns the simulated seconds elapsed.
func (w *World) Time() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.time
}

// Step advances the world by dt seconds: robots integrate their velocity and
// stay inside the bounds, the prey circles its start point and the lead
// bounces off the walls.
func (w *World) Step(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.time += dt
	for _, r := range w.robots {
		r.pos = w.bounds.Clamp(r.pos.Add(r.vel.Scale(dt)), r.radius)
		for _, a := range w.areas {
			if r.pos.Dist(a.Position) <= exploreRadius {
				w.explored[a.ID] = true
			}
		}
	}

	w.prey = w.bounds.Clamp(w.preyInitial.Add(Polar(0.5, w.time*MaxSpeed)), RobotRadius)

	next := w.lead.Add(w.leadVel.Scale(dt))
	if next.X < w.bounds.XMin+RobotRadius || next.X > w.bounds.XMax-RobotRadius {
		w.leadVel.X = -w.leadVel.X
	}
	if next.Y < w.bounds.YMin+RobotRadius || next.Y > w.bounds.YMax-RobotRadius {
		w.leadVel.Y = -w.leadVel.Y
	}
	w.lead = w.bounds.Clamp(next, RobotRadius)
}

// MockRobot is one robot in a World. It implements Host.
type MockRobot struct {
	world  *World
	id     int
	pos    Vector
	vel    Vector
	radius float64
}

var _ Host = (*MockRobot)(nil)

func (r *MockRobot) GetSelfID() int { return r.id }

func (r *MockRobot) GetAllRobotsID() []int {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	ids := make([]int, len(r.world.robots))
	for i, o := range r.world.robots {
		ids[i] = o.id
	}
	return ids
}

func (r *MockRobot) GetSelfPosition() Vector {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	return r.pos
}

// SetSelfVelocity sets the velocity, clamped to MaxSpeed.
func (r *MockRobot) SetSelfVelocity(velocity Vector) {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	r.vel = velocity.Limit(MaxSpeed)
}

func (r *MockRobot) GetSelfVelocity() Vector {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	return r.vel
}

func (r *MockRobot) GetSelfRadius() float64 { return r.radius }

func (r *MockRobot) StopSelf() {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	r.vel = Vector{}
}

func (r *MockRobot) GetEnvironmentRange() Range { return r.world.bounds }

// GetSurroundingEnvironmentInfo lists other robots and obstacles whose
// surface is within PerceptionRange, nearest first.
func (r *MockRobot) GetSurroundingEnvironmentInfo() []Object {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()

	var out []Object
	for _, o := range r.world.robots {
		if o == r || r.pos.Dist(o.pos)-o.radius > PerceptionRange {
			continue
		}
		out = append(out, Object{Type: "robot", Position: o.pos, Velocity: o.vel, Radius: o.radius})
	}
	for _, o := range r.world.obstacles {
		if r.pos.Dist(o.Position)-o.Radius <= PerceptionRange {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.pos.Dist(out[i].Position) < r.pos.Dist(out[j].Position)
	})
	return out
}

func (r *MockRobot) GetPreyPosition() Vector {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	return r.world.prey
}

func (r *MockRobot) GetLeadPosition() Vector {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	return r.world.lead
}

// GetTargetPosition returns the initial position of the robot that started
// farthest from this one.
func (r *MockRobot) GetTargetPosition() Vector {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()

	self := r.world.initial[r.id]
	target, best := self, -1.0
	for id := 0; id < len(r.world.robots); id++ {
		p := r.world.initial[id]
		if d := self.Dist(p); id != r.id && d > best {
			target, best = p, d
		}
	}
	return target
}

func (r *MockRobot) GetTargetFormationPoints() []Vector {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	return append([]Vector(nil), r.world.formation...)
}

func (r *MockRobot) GetSurroundingUnexploredArea() []Area {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()

	var out []Area
	for _, a := range r.world.areas {
		if !r.world.explored[a.ID] && r.pos.Dist(a.Position) <= PerceptionRange {
			out = append(out, a)
		}
	}
	return out
}

func (r *MockRobot) GetQuadrantTargetPosition() map[int]Vector {
	out := make(map[int]Vector, len(r.world.quadrants))
	for k, v := range r.world.quadrants {
		out[k] = v
	}
	return out
}

func (r *MockRobot) GetAllRobotsInitialPosition() map[int]Vector {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	out := make(map[int]Vector, len(r.world.initial))
	for k, v := range r.world.initial {
		out[k] = v
	}
	return out
}

func (r *MockRobot) GetPreyInitialPosition() Vector { return r.world.preyInitial }

func (r *MockRobot) GetInitialUnexploredAreas() []Vector {
	out := make([]Vector, len(r.world.areas))
	for i, a := range r.world.areas {
		out[i] = a.Position
	}
	return out
}

// Quadrant returns the quadrant index (1 to 4) of p.
func Quadrant(p Vector) int {
	switch {
	case p.X >= 0 && p.Y >= 0:
		return 1
	case p.X < 0 && p.Y >= 0:
		return 2
	case p.X < 0:
		return 3
	default:
		return 4
	}
}
