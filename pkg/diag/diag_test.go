package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type construct string

func (c construct) String() string { return string(c) }

func TestErrorMessage(t *testing.T) {
	err := Errorf(InvalidSliceAnnotation, construct("hdr.vlan.vid"), "low %d > high %d", 4, 2)
	assert.Equal(t, "invalid slice annotation: hdr.vlan.vid: low 4 > high 2", err.Error())

	bare := Errorf(StructuralError, nil, "missing ingress")
	assert.Equal(t, "structural error: missing ingress", bare.Error())
}

func TestReporterAccumulates(t *testing.T) {
	var r Reporter
	require.False(t, r.HasErrors())
	require.NoError(t, r.Err())

	r.Report(nil)
	r.Report(Errorf(UnsupportedConstruct, construct("a || b"), "operator"))
	r.Report(Errorf(ResourceExhausted, nil, "register file full"))

	require.True(t, r.HasErrors())
	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.Errors(), 2)
	assert.True(t, Is(r.Err(), UnsupportedConstruct))
	assert.True(t, Is(r.Err(), ResourceExhausted))
	assert.False(t, Is(r.Err(), MalformedTableShape))
}

func TestIsWrapped(t *testing.T) {
	inner := Errorf(MalformedTableShape, construct("t"), "no actions")
	err := fmt.Errorf("table t: %w", inner)
	assert.True(t, Is(err, MalformedTableShape))
	assert.False(t, Is(errors.New("plain"), MalformedTableShape))
	assert.False(t, Is(nil, MalformedTableShape))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "resource exhausted", ResourceExhausted.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
