// Package motive is the animation runtime: an engine that owns a set of
// processors (spline, overshoot, matrix/SQT composer, rig), each advancing
// all of its values in priority order every frame.
package motive

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/motive-go/motive/motiveerr"
)

// Processor is the capability set every concrete processor implements; the
// engine dispatches through it instead of a C++-style base class, matching
// Go's preference for small interfaces over inheritance.
type Processor interface {
	Advance(dt Time)
	Type() MotivatorType
	Priority() int
	resetAll()
}

// ProcessorFactory constructs a processor instance bound to eng. Factories
// are registered once per MotivatorType, process-wide, before constructing
// any Engine that will use that type.
type ProcessorFactory func(eng *Engine) Processor

var (
	registryMu sync.RWMutex
	registry   = map[MotivatorType]ProcessorFactory{}
)

// RegisterProcessorFactory populates the process-wide factory registry. It
// is the only process-global state the runtime keeps; it is written during
// one-time startup registration (see init() in this package for the built-in
// processor types) and read-mostly thereafter.
func RegisterProcessorFactory(t MotivatorType, factory ProcessorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = factory
}

func lookupFactory(t MotivatorType) (ProcessorFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[t]
	return f, ok
}

func init() {
	RegisterProcessorFactory(TypeSpline, newSplineProcessor)
	RegisterProcessorFactory(TypeOvershoot, newOvershootProcessor)
	RegisterProcessorFactory(TypeMatrix, newMatrixProcessorFactory(false))
	RegisterProcessorFactory(TypeSQT, newMatrixProcessorFactory(true))
	RegisterProcessorFactory(TypeRig, newRigProcessor)
}

// Engine owns every processor instance for one animation world. All calls on
// an Engine (Advance, handle creation/destruction/move, value reads/writes)
// must happen from a single goroutine; Advance performs no internal
// suspension and returns once every processor has completed the frame.
// Multiple Engines may run concurrently on different goroutines as long as
// no handle crosses between them.
type Engine struct {
	processors map[MotivatorType]Processor
	order      []Processor
}

// NewEngine constructs an empty engine. Processors are created lazily, on
// first use, via the registered factories.
func NewEngine() *Engine {
	return &Engine{processors: make(map[MotivatorType]Processor)}
}

// ProcessorFor returns the engine's processor for tag, creating it via the
// registered factory on first use. Idempotent.
func (e *Engine) ProcessorFor(tag MotivatorType) (Processor, error) {
	if p, ok := e.processors[tag]; ok {
		return p, nil
	}
	factory, ok := lookupFactory(tag)
	if !ok {
		return nil, fmt.Errorf("ProcessorFor(%s): %w", tag, motiveerr.ErrUnknownType)
	}
	p := factory(e)
	e.processors[tag] = p
	e.order = append(e.order, p)
	sort.SliceStable(e.order, func(i, j int) bool { return e.order[i].Priority() < e.order[j].Priority() })
	return p, nil
}

// Advance dispatches Advance(delta) to every processor in ascending priority
// order: spline(0), overshoot(1), matrix/SQT(2), rig(3).
func (e *Engine) Advance(delta Time) {
	for _, p := range e.order {
		p.Advance(delta)
	}
}

// Reset destroys all processors. Every handle bound to this engine becomes
// detached (Valid() reports false) because the underlying processors' data
// is cleared, not merely dropped from the registry.
func (e *Engine) Reset() {
	for _, p := range e.order {
		p.resetAll()
	}
	e.processors = make(map[MotivatorType]Processor)
	e.order = nil
}

func (e *Engine) splineProcessor() (*splineProcessor, error) {
	p, err := e.ProcessorFor(TypeSpline)
	if err != nil {
		return nil, err
	}
	return p.(*splineProcessor), nil
}

func (e *Engine) matrixProcessor(sqt bool) (*matrixProcessor, error) {
	tag := TypeMatrix
	if sqt {
		tag = TypeSQT
	}
	p, err := e.ProcessorFor(tag)
	if err != nil {
		return nil, err
	}
	return p.(*matrixProcessor), nil
}

func (e *Engine) rigProcessor() (*rigProcessor, error) {
	p, err := e.ProcessorFor(TypeRig)
	if err != nil {
		return nil, err
	}
	return p.(*rigProcessor), nil
}

func (e *Engine) overshootProcessor() (*overshootProcessor, error) {
	p, err := e.ProcessorFor(TypeOvershoot)
	if err != nil {
		return nil, err
	}
	return p.(*overshootProcessor), nil
}
