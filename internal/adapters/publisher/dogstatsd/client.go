// Package dogstatsd builds the DogStatsD client samples are submitted through.
package dogstatsd

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/vshulcz/pgstatsd/internal/ports"
)

var _ ports.StatsdClient = (*statsd.Client)(nil)

// New returns a buffered UDP client for host:port. Namespace gets a trailing
// dot when missing; tags are attached to every sample.
func New(host string, port int, namespace string, tags []string) (*statsd.Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("statsd host is empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("statsd port %d out of range", port)
	}

	opts := []statsd.Option{statsd.WithTags(tags)}
	if ns := strings.TrimSpace(namespace); ns != "" {
		if !strings.HasSuffix(ns, ".") {
			ns += "."
		}
		opts = append(opts, statsd.WithNamespace(ns))
	}

	c, err := statsd.New(net.JoinHostPort(host, strconv.Itoa(port)), opts...)
	if err != nil {
		return nil, fmt.Errorf("statsd client: %w", err)
	}
	return c, nil
}
