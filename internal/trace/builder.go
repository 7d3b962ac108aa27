package trace

// Builder accumulates partial trace data arriving in arbitrary order from
// instrumentation callbacks, then freezes it into an immutable Trace.
//
// Every setter overwrites its slot; AddCircuit appends. Build performs no
// validation (validation is a separate, opt-in step) and succeeds even
// when the builder is completely empty.
type Builder struct {
	environment   *Environment
	circuits      []Circuit
	transpilation *Transpilation
	hardware      *Hardware
	execution     *Execution
	result        *Result
	metadata      Metadata
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetEnvironment records the software environment snapshot.
func (b *Builder) SetEnvironment(env Environment) *Builder {
	b.environment = &env
	return b
}

// AddCircuit appends a captured circuit.
func (b *Builder) AddCircuit(circuit Circuit) *Builder {
	b.circuits = append(b.circuits, circuit)
	return b
}

// SetTranspilation records the transpilation record.
func (b *Builder) SetTranspilation(transpilation Transpilation) *Builder {
	b.transpilation = &transpilation
	return b
}

// SetHardware records the backend and calibration snapshot.
func (b *Builder) SetHardware(hardware Hardware) *Builder {
	b.hardware = &hardware
	return b
}

// SetExecution records the run parameters.
func (b *Builder) SetExecution(execution Execution) *Builder {
	b.execution = &execution
	return b
}

// SetResult records the execution outcome.
func (b *Builder) SetResult(result Result) *Builder {
	b.result = &result
	return b
}

// SetMetadata replaces the user metadata slot.
func (b *Builder) SetMetadata(name, description string, tags []string) *Builder {
	meta := Metadata{Tags: tags}
	if name != "" {
		meta.Name = &name
	}
	if description != "" {
		meta.Description = &description
	}
	b.metadata = meta
	return b
}

// HasCircuits reports whether any circuit has been captured.
func (b *Builder) HasCircuits() bool {
	return len(b.circuits) > 0
}

// HasResult reports whether a result has been captured.
func (b *Builder) HasResult() bool {
	return b.result != nil
}

// Build freezes the accumulated state into an immutable Trace. The
// builder can keep accumulating afterwards; each call produces a new
// Trace with a fresh ID.
func (b *Builder) Build() Trace {
	t := New()
	t.Environment = b.environment
	t.Circuits = append([]Circuit(nil), b.circuits...)
	t.Transpilation = b.transpilation
	t.Hardware = b.hardware
	t.Execution = b.execution
	t.Result = b.result
	t.Metadata = b.metadata
	return t
}
