package proxy

import (
	"errors"
	"fmt"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/entrelaunch/platform/pkg/logger"
)

// Route maps a request path prefix to an upstream target.
type Route struct {
	Prefix string `mapstructure:"prefix"`
	Target string `mapstructure:"target"`
}

// ErrNoRoutes signals that the proxy was enabled without any route entries.
var ErrNoRoutes = errors.New("proxy: at least one route is required")

// Proxy forwards matching request prefixes to configured upstreams. Routes
// are validated at construction so a bad config fails startup instead of the
// first proxied request.
type Proxy struct {
	routes []compiledRoute
}

type compiledRoute struct {
	prefix  string
	target  *url.URL
	handler *httputil.ReverseProxy
}

// New validates the route table and compiles the reverse proxies.
func New(routes []Route) (*Proxy, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}

	seen := make(map[string]struct{}, len(routes))
	compiled := make([]compiledRoute, 0, len(routes))
	for _, route := range routes {
		prefix := strings.TrimSpace(route.Prefix)
		if prefix == "" || !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("proxy: invalid route prefix %q", route.Prefix)
		}
		prefix = strings.TrimRight(prefix, "/")
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("proxy: duplicate route prefix %q", prefix)
		}
		seen[prefix] = struct{}{}

		target, err := url.Parse(strings.TrimSpace(route.Target))
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("proxy: invalid route target %q", route.Target)
		}

		compiled = append(compiled, compiledRoute{
			prefix:  prefix,
			target:  target,
			handler: httputil.NewSingleHostReverseProxy(target),
		})
	}

	// Longest prefix wins when routes nest.
	sort.Slice(compiled, func(i, j int) bool {
		return len(compiled[i].prefix) > len(compiled[j].prefix)
	})

	return &Proxy{routes: compiled}, nil
}

// Mount registers a catch-all handler on the router for each route prefix.
func (p *Proxy) Mount(router *gin.Engine) {
	for _, route := range p.routes {
		route := route
		group := router.Group(route.prefix)
		group.Any("/*path", func(c *gin.Context) {
			route.handler.ServeHTTP(c.Writer, c.Request)
		})
		logger.WithModule("proxy").Info("route mounted",
			zap.String("prefix", route.prefix),
			zap.String("target", route.target.String()),
		)
	}
}

// Routes reports the compiled prefixes, longest first.
func (p *Proxy) Routes() []string {
	prefixes := make([]string, 0, len(p.routes))
	for _, route := range p.routes {
		prefixes = append(prefixes, route.prefix)
	}
	return prefixes
}
