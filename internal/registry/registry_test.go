package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, args, kwargs []byte) ([]byte, error) {
	return args, nil
}

func TestRegister_Resolve(t *testing.T) {
	r := New()
	r.Register("echo", echoHandler, 3, time.Second)

	rec, err := r.Resolve("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", rec.Name)
	assert.Equal(t, 3, rec.DefaultRetries)
	assert.Equal(t, time.Second, rec.DefaultRetryDelay)
}

func TestResolve_Unknown(t *testing.T) {
	r := New()
	_, err := r.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestRegister_Duplicate_Panics(t *testing.T) {
	r := New()
	r.Register("echo", echoHandler, 0, 0)

	assert.Panics(t, func() {
		r.Register("echo", echoHandler, 0, 0)
	})
}

func TestRegisterPeriodic(t *testing.T) {
	r := New()
	r.RegisterPeriodic("cleanup", "*/5 * * * *", echoHandler)

	periodic := r.Periodic()
	require.Len(t, periodic, 1)
	assert.Equal(t, "cleanup", periodic[0].Name)
	assert.Equal(t, "*/5 * * * *", periodic[0].Periodic.CronExpr)
}
