package checker

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/nav-nms/nav/pkg/models"
)

// HTTP checks that a web server answers a GET with a non-error status. The
// Server response header is reported as the version.
type HTTP struct {
	client *resty.Client
}

func NewHTTP() *HTTP {
	client := resty.New()
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &HTTP{client: client}
}

func (c *HTTP) Type() string { return "http" }

func (c *HTTP) Check(ctx context.Context, netbox *models.Netbox, service *models.Service) Result {
	url := service.Property("url", fmt.Sprintf("http://%s/", netbox.IP))

	ctx, cancel := context.WithTimeout(ctx, timeoutOf(service))
	defer cancel()

	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return down(fmt.Errorf("get %s: %w", url, err))
	}
	if resp.StatusCode() >= 400 {
		return down(fmt.Errorf("get %s: status %d", url, resp.StatusCode()))
	}
	return Result{
		Up:      true,
		Info:    fmt.Sprintf("status %d", resp.StatusCode()),
		Version: resp.Header().Get("Server"),
	}
}
