package checker

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/nav-nms/nav/pkg/models"
)

// Port checks that a TCP port accepts connections. If the service sends a
// greeting line within the timeout it is recorded as the version; a silent
// port is still UP.
type Port struct {
	// dial is swappable in tests.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewPort() *Port {
	var d net.Dialer
	return &Port{dial: d.DialContext}
}

func (c *Port) Type() string { return "port" }

func (c *Port) Check(ctx context.Context, netbox *models.Netbox, service *models.Service) Result {
	port := service.Property("port", "")
	if port == "" {
		return down(fmt.Errorf("port checker: service %d has no port property", service.ID))
	}
	addr := net.JoinHostPort(netbox.IP, port)

	ctx, cancel := context.WithTimeout(ctx, timeoutOf(service))
	defer cancel()

	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return down(fmt.Errorf("connect %s: %w", addr, err))
	}
	defer conn.Close()

	greeting := readGreeting(ctx, conn)
	return Result{Up: true, Info: "port open", Version: greeting}
}

// readGreeting reads one banner line if the peer sends one before ctx
// expires. No banner is not an error.
func readGreeting(ctx context.Context, conn net.Conn) string {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}
