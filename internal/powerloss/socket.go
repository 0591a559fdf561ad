package powerloss

import (
	"bufio"
	"context"
	"net"
	"os"
	"sync"

	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/logger"
)

// SocketTrigger accepts connections on a unix socket; every line received is
// one power-loss edge. An external rig that cuts power writes a line per cut.
type SocketTrigger struct {
	socketPath string
	target     Raiser
	listener   net.Listener
	wg         sync.WaitGroup
}

func NewSocketTrigger(path string, target Raiser) *SocketTrigger {
	return &SocketTrigger{socketPath: path, target: target}
}

// Listen creates the socket, replacing a stale one.
func (st *SocketTrigger) Listen() error {
	if _, err := os.Stat(st.socketPath); err == nil {
		os.Remove(st.socketPath)
	}
	l, err := net.Listen("unix", st.socketPath)
	if err != nil {
		return errors.New(errors.ErrCodeTriggerBind, "SocketTrigger.Listen", "cannot bind "+st.socketPath, err)
	}
	os.Chmod(st.socketPath, 0700)
	st.listener = l
	return nil
}

// Serve accepts connections until ctx is done and returns once every
// connection is closed. Closing the listener unlinks the socket file.
func (st *SocketTrigger) Serve(ctx context.Context) {
	logger.Log.Info("Power-loss trigger listening", "socket", st.socketPath)

	go func() {
		<-ctx.Done()
		st.listener.Close()
	}()

	for {
		conn, err := st.listener.Accept()
		if err != nil {
			break
		}
		st.wg.Add(1)
		go st.handle(ctx, conn)
	}
	st.wg.Wait()
}

func (st *SocketTrigger) handle(ctx context.Context, conn net.Conn) {
	defer st.wg.Done()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, consts.DefaultTriggerLineLimit), consts.DefaultTriggerLineLimit)
	for sc.Scan() {
		st.target.Raise()
	}
}

// Personal.AI order the ending
