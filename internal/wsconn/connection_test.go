package wsconn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/rpc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return New(server, zerolog.Nop()), client
}

func TestAddTaskRunsAndCompletes(t *testing.T) {
	conn, _ := newTestConnection(t)

	done := make(chan struct{})
	conn.AddTask(context.Background(), func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestCancelAllTasksCancelsContext(t *testing.T) {
	conn, _ := newTestConnection(t)

	canceled := make(chan struct{})
	conn.AddTask(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		close(canceled)
	})

	conn.CancelAllTasks()

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("task context was not canceled")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn, _ := newTestConnection(t)
	conn.Disconnect()
	assert.NotPanics(t, func() { conn.Disconnect() })
}

func TestLatestCommandRoundTrip(t *testing.T) {
	conn, _ := newTestConnection(t)
	assert.Nil(t, conn.LatestCommand())

	cmd := &rpc.Command{Action: "assets"}
	conn.SetLatestCommand(cmd)
	require.NotNil(t, conn.LatestCommand())
	assert.Equal(t, cmd.Action, conn.LatestCommand().Action)
}
