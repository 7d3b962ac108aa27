package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderEmptyBuild(t *testing.T) {
	tr := NewBuilder().Build()

	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, FormatVersion, tr.Version)
	assert.Nil(t, tr.Environment)
	assert.Empty(t, tr.Circuits)
	assert.Nil(t, tr.Result)
	assert.Equal(t, "Empty trace", tr.Summary())
}

func TestBuilderChaining(t *testing.T) {
	circuit := Circuit{NumQubits: 2, Depth: 3, Gates: GateCounts{Total: 4}, Hash: "abc"}
	hw := Hardware{Provider: "local", Backend: "aer_simulator", IsSimulator: true}

	b := NewBuilder().
		SetEnvironment(Environment{Runtime: "3.11.4"}).
		AddCircuit(circuit).
		SetHardware(hw).
		SetExecution(Execution{Shots: 1024})

	assert.True(t, b.HasCircuits())
	assert.False(t, b.HasResult())

	counts, err := NewCounts(map[string]int{"00": 1024}, 1024)
	require.NoError(t, err)
	result, err := NewResult(counts)
	require.NoError(t, err)
	b.SetResult(result)
	assert.True(t, b.HasResult())

	tr := b.Build()
	require.NotNil(t, tr.Environment)
	assert.Equal(t, "3.11.4", tr.Environment.Runtime)
	require.Len(t, tr.Circuits, 1)
	require.NotNil(t, tr.Hardware)
	assert.True(t, tr.Hardware.IsSimulator)
	require.NotNil(t, tr.Result)
}

func TestBuilderSettersOverwrite(t *testing.T) {
	b := NewBuilder().
		SetExecution(Execution{Shots: 100}).
		SetExecution(Execution{Shots: 2048})

	tr := b.Build()
	require.NotNil(t, tr.Execution)
	assert.Equal(t, 2048, tr.Execution.Shots)
}

func TestBuilderMetadataEmptyStringsAbsent(t *testing.T) {
	tr := NewBuilder().SetMetadata("", "", nil).Build()
	assert.Nil(t, tr.Metadata.Name)
	assert.Nil(t, tr.Metadata.Description)

	named := NewBuilder().SetMetadata("exp", "desc", []string{"a"}).Build()
	require.NotNil(t, named.Metadata.Name)
	assert.Equal(t, "exp", *named.Metadata.Name)
	require.NotNil(t, named.Metadata.Description)
	assert.Equal(t, "desc", *named.Metadata.Description)
	assert.Equal(t, []string{"a"}, named.Metadata.Tags)
}

func TestBuilderProducesFreshTraces(t *testing.T) {
	b := NewBuilder().AddCircuit(Circuit{NumQubits: 1, Depth: 1, Hash: "x"})

	first := b.Build()
	second := b.Build()
	assert.NotEqual(t, first.ID, second.ID)

	// Each build owns its circuit slice.
	b.AddCircuit(Circuit{NumQubits: 2, Depth: 1, Hash: "y"})
	third := b.Build()
	assert.Len(t, first.Circuits, 1)
	assert.Len(t, third.Circuits, 2)

	// Identical content hashes identically despite distinct IDs.
	assert.Equal(t, first.ContentHash(), second.ContentHash())
	assert.NotEqual(t, first.ContentHash(), third.ContentHash())
}
