// Package geo resolves a scanner's IP address to a coarse location.
package geo

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var ErrLookupFailed = errors.New("geo lookup failed")

type Location struct {
	Country string
	City    string
}

// Locator returns nil, nil when the address cannot be located.
type Locator interface {
	Locate(ctx context.Context, ip string) (*Location, error)
}

// lookupResponse follows the ip-api.com JSON shape.
type lookupResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
}

type httpLocator struct {
	client *resty.Client
	logger *zap.Logger
}

// NewLocator returns an HTTP-backed locator, or a no-op one when baseURL is empty.
func NewLocator(baseURL string, timeout time.Duration, logger *zap.Logger) Locator {
	if baseURL == "" {
		return noopLocator{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &httpLocator{
		client: client,
		logger: logger,
	}
}

func (l *httpLocator) Locate(ctx context.Context, ip string) (*Location, error) {
	if !routable(ip) {
		return nil, nil
	}

	var body lookupResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetPathParam("ip", ip).
		SetQueryParam("fields", "status,message,country,city").
		SetResult(&body).
		Get("/json/{ip}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode())
	}
	if body.Status != "success" {
		l.logger.Debug("Geo lookup returned no result",
			zap.String("ip", ip),
			zap.String("message", body.Message),
		)
		return nil, nil
	}

	return &Location{Country: body.Country, City: body.City}, nil
}

// routable reports whether the address is worth sending to the lookup service.
func routable(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast())
}

type noopLocator struct{}

func (noopLocator) Locate(context.Context, string) (*Location, error) {
	return nil, nil
}
