package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droverhq/drover-cli/api/schemas"
)

func failingClick(id string) Signature {
	return Signature{Kind: schemas.ActionClickElement, Target: "element:" + id, Success: false}
}

func TestFiresOnWindowOfIdenticalFailures(t *testing.T) {
	g := New(3)

	require.NoError(t, g.Record(failingClick("4")))
	require.NoError(t, g.Record(failingClick("4")))

	err := g.Record(failingClick("4"))
	require.Error(t, err)

	var agentErr *schemas.AgentError
	require.True(t, errors.As(err, &agentErr))
	assert.Equal(t, schemas.FailureLoopDetected, agentErr.Kind)
	assert.Contains(t, agentErr.Message, "3 times")
}

func TestSuccessNeverCounts(t *testing.T) {
	g := New(3)
	same := Signature{Kind: schemas.ActionClickElement, Target: "element:4", Success: true}

	// Identical successful actions are legitimate (e.g. paging "Next").
	for i := 0; i < 10; i++ {
		assert.NoError(t, g.Record(same))
	}
}

func TestSuccessBreaksFailureRun(t *testing.T) {
	g := New(3)

	require.NoError(t, g.Record(failingClick("4")))
	require.NoError(t, g.Record(failingClick("4")))
	require.NoError(t, g.Record(Signature{Kind: schemas.ActionClickElement, Target: "element:4", Success: true}))
	// Two more failures: window is {fail, fail, success}... never full of failures yet.
	require.NoError(t, g.Record(failingClick("4")))
	require.NoError(t, g.Record(failingClick("4")))
	// Third consecutive failure fills the window again.
	assert.Error(t, g.Record(failingClick("4")))
}

func TestDistinctTargetsNeverCount(t *testing.T) {
	g := New(3)

	require.NoError(t, g.Record(failingClick("1")))
	require.NoError(t, g.Record(failingClick("2")))
	require.NoError(t, g.Record(failingClick("3")))
	require.NoError(t, g.Record(failingClick("1")))
	require.NoError(t, g.Record(failingClick("2")))
	require.NoError(t, g.Record(failingClick("3")))
}

func TestDistinctKindsNeverCount(t *testing.T) {
	g := New(3)

	require.NoError(t, g.Record(Signature{Kind: schemas.ActionClickElement, Target: "element:1"}))
	require.NoError(t, g.Record(Signature{Kind: schemas.ActionTypeText, Target: "element:1"}))
	require.NoError(t, g.Record(Signature{Kind: schemas.ActionClickElement, Target: "element:1"}))
}

func TestResetClearsWindow(t *testing.T) {
	g := New(3)

	require.NoError(t, g.Record(failingClick("4")))
	require.NoError(t, g.Record(failingClick("4")))
	g.Reset()
	require.NoError(t, g.Record(failingClick("4")))
	require.NoError(t, g.Record(failingClick("4")))
	assert.Error(t, g.Record(failingClick("4")))
}

func TestDetectionResetsWindow(t *testing.T) {
	g := New(2)

	require.NoError(t, g.Record(failingClick("9")))
	require.Error(t, g.Record(failingClick("9")))
	// The guard starts fresh after firing.
	require.NoError(t, g.Record(failingClick("9")))
	assert.Error(t, g.Record(failingClick("9")))
}

func TestWindowClamp(t *testing.T) {
	g := New(0)
	require.NoError(t, g.Record(failingClick("1")))
	assert.Error(t, g.Record(failingClick("1")), "clamped window of 2 fires on the second identical failure")
}

func TestNewSignature(t *testing.T) {
	d := schemas.ActionDecision{Kind: schemas.ActionClickElement, Args: map[string]interface{}{"element_id": float64(7)}}
	sig := NewSignature(d, false)
	assert.Equal(t, Signature{Kind: schemas.ActionClickElement, Target: "element:7", Success: false}, sig)
}
