package powerloss

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/protocol"
)

type countingRaiser struct {
	n atomic.Int64
}

func (c *countingRaiser) Raise() { c.n.Add(1) }

func TestNewEmulator_Off(t *testing.T) {
	e, err := NewEmulator(protocol.PowerLossConfig{Mode: "off"}, &countingRaiser{}, 1)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, e.Run(context.Background()))
}

func TestNewEmulator_Rejects(t *testing.T) {
	cases := []protocol.PowerLossConfig{
		{Mode: "brownout"},
		{Mode: "periodic", Interval: "soon"},
		{Mode: "periodic", Interval: "-5ms"},
		{Mode: "random", MaxRate: -1},
	}
	for _, cfg := range cases {
		_, err := NewEmulator(cfg, &countingRaiser{}, 1)
		assert.True(t, errors.HasCode(err, errors.ErrCodeEmulatorConfig), "%+v: %v", cfg, err)
	}
}

func TestEmulator_PeriodicFiresImmediatelyThenPaces(t *testing.T) {
	r := &countingRaiser{}
	e, err := NewEmulator(protocol.PowerLossConfig{Mode: "periodic", Interval: "20ms"}, r, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.n.Load() >= 1 }, 10*time.Millisecond, time.Millisecond)
	<-done
	n := r.n.Load()
	assert.GreaterOrEqual(t, n, int64(4))
	assert.LessOrEqual(t, n, int64(7))
}

func TestEmulator_RandomCappedByMaxRate(t *testing.T) {
	r := &countingRaiser{}
	cfg := protocol.PowerLossConfig{Mode: "random", Interval: "100us", MaxRate: 50}
	e, err := NewEmulator(cfg, r, 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	n := r.n.Load()
	assert.GreaterOrEqual(t, n, int64(2))
	assert.LessOrEqual(t, n, int64(8), "50/s cap over 100ms")
}

func TestWatchSignals(t *testing.T) {
	r := &countingRaiser{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	WatchSignals(ctx, r)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	assert.Eventually(t, func() bool { return r.n.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSocketTrigger_LinePerEdge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger.sock")
	r := &countingRaiser{}
	st := NewSocketTrigger(path, r)
	require.NoError(t, st.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		st.Serve(ctx)
		close(served)
	}()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		fmt.Fprintln(conn, "cut")
	}
	conn.Close()

	assert.Eventually(t, func() bool { return r.n.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	_, err = net.Dial("unix", path)
	assert.Error(t, err, "socket removed on shutdown")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "listener close unlinks the socket")
}

func TestSocketTrigger_BindFailure(t *testing.T) {
	st := NewSocketTrigger(filepath.Join(t.TempDir(), "missing", "dir", "t.sock"), &countingRaiser{})
	err := st.Listen()
	assert.True(t, errors.HasCode(err, errors.ErrCodeTriggerBind))
}
