package dump

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsstack/pkg/stack"
	"jsstack/pkg/value"
)

type function struct{}

func (function) NumParameters() int { return 2 }
func (function) NumLocals() int     { return 1 }
func (function) String() string     { return "f" }

func liveSnapshot(t *testing.T) stack.Snapshot {
	t.Helper()
	s, err := stack.New(256, 0, stack.WithLogger(log.New(io.Discard)), stack.WithValidator(stack.NopValidator{}))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Push(nil, []value.Value{value.Int32(1)}, value.Empty, value.Ref(0))
	require.NoError(t, err)
	f, err := s.Push(function{}, []value.Value{value.Float(0.5)}, value.Ref(16), value.Ref(0))
	require.NoError(t, err)
	f.SetLocal(0, value.True)

	return s.Snapshot()
}

func TestFileRoundTrip(t *testing.T) {
	d := &Dump{Reason: "uncaught exception", Trace: []string{"f"}, Snapshot: liveSnapshot(t)}
	path := filepath.Join(t.TempDir(), "stack.cbor")

	require.NoError(t, WriteFile(path, d))
	got, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, d.Reason, got.Reason)
	assert.Equal(t, d.Trace, got.Trace)
	assert.Equal(t, d.Snapshot.Limits, got.Snapshot.Limits)
	require.Len(t, got.Snapshot.Frames, 2)

	top := got.Snapshot.Frames[0]
	assert.Equal(t, "f", top.Descriptor)
	assert.Equal(t, []value.Value{value.Float(0.5), value.Undefined}, top.Arguments)
	assert.Equal(t, []value.Value{value.True}, top.Locals)
	assert.Equal(t, "<native>", got.Snapshot.Frames[1].Descriptor)
}

func TestMarshalIsDeterministic(t *testing.T) {
	d := &Dump{Reason: "x", Snapshot: liveSnapshot(t)}

	a, err := Marshal(d)
	require.NoError(t, err)
	b, err := Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0x00})
	assert.Error(t, err)
}
