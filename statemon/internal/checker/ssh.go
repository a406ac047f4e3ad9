package checker

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/nav-nms/nav/pkg/models"
)

// SSH checks that an SSH daemon answers with a protocol banner. The banner
// ("SSH-2.0-OpenSSH_9.6") doubles as the version string.
type SSH struct {
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewSSH() *SSH {
	var d net.Dialer
	return &SSH{dial: d.DialContext}
}

func (c *SSH) Type() string { return "ssh" }

func (c *SSH) Check(ctx context.Context, netbox *models.Netbox, service *models.Service) Result {
	addr := net.JoinHostPort(netbox.IP, service.Property("port", "22"))

	ctx, cancel := context.WithTimeout(ctx, timeoutOf(service))
	defer cancel()

	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return down(fmt.Errorf("connect %s: %w", addr, err))
	}
	defer conn.Close()

	banner := readGreeting(ctx, conn)
	if !strings.HasPrefix(banner, "SSH-") {
		return down(fmt.Errorf("%s: not an SSH banner: %q", addr, banner))
	}
	return Result{Up: true, Info: "ssh banner received", Version: banner}
}
