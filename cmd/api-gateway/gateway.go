package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// serviceLocator is implemented by discovery.ConsulClient.
type serviceLocator interface {
	GetServiceURL(serviceName string) (string, error)
}

type Gateway struct {
	consul    serviceLocator // nil when Consul is unavailable
	fallbacks map[string]string
	mutex     sync.RWMutex
	proxies   map[string]*httputil.ReverseProxy
	services  map[string]string
	client    *http.Client
}

// NewGateway routes to each service in fallbacks, preferring the address
// Consul reports for it.
func NewGateway(consul serviceLocator, fallbacks map[string]string) *Gateway {
	g := &Gateway{
		consul:    consul,
		fallbacks: fallbacks,
		proxies:   make(map[string]*httputil.ReverseProxy),
		services:  make(map[string]string),
		client:    &http.Client{Timeout: 2 * time.Second},
	}

	g.discoverServices()
	return g
}

func (g *Gateway) discoverServices() {
	for svc, fallback := range g.fallbacks {
		serviceURL := fallback
		if g.consul != nil {
			found, err := g.consul.GetServiceURL(svc)
			if err != nil {
				log.Printf("⚠️ Service %s not found: %v", svc, err)
			} else {
				serviceURL = found
			}
		}

		g.mutex.RLock()
		current := g.services[svc]
		g.mutex.RUnlock()
		if current != serviceURL {
			g.updateProxy(svc, serviceURL)
		}
	}
}

func (g *Gateway) updateProxy(serviceName, serviceURL string) {
	target, err := url.Parse(serviceURL)
	if err != nil {
		log.Printf("❌ Invalid URL for %s: %v", serviceName, err)
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("❌ Proxy error for %s: %v", serviceName, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error": "service unavailable"}`)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.proxies[serviceName] = proxy
	g.services[serviceName] = serviceURL
	log.Printf("✅ Updated route: %s → %s", serviceName, serviceURL)
}

// Watch rediscovers services every interval until ctx is done.
func (g *Gateway) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.discoverServices()
		}
	}
}

func (g *Gateway) getProxy(serviceName string) *httputil.ReverseProxy {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.proxies[serviceName]
}

// Proxy forwards the request to serviceName unchanged
func (g *Gateway) Proxy(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxy := g.getProxy(serviceName)
		if proxy == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": serviceName + " unavailable"})
			return
		}
		log.Printf("🔀 Routing %s %s → %s", c.Request.Method, c.Request.URL.Path, serviceName)
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func (g *Gateway) HealthCheck(c *gin.Context) {
	g.mutex.RLock()
	services := make(map[string]string, len(g.services))
	for name, u := range g.services {
		services[name] = u
	}
	g.mutex.RUnlock()

	statuses := make(map[string]string)
	allHealthy := true

	for name, u := range services {
		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, u+"/health", nil)
		if err != nil {
			statuses[name] = "unhealthy"
			allHealthy = false
			continue
		}
		resp, err := g.client.Do(req)
		if err != nil || resp.StatusCode != http.StatusOK {
			statuses[name] = "unhealthy"
			allHealthy = false
		} else {
			statuses[name] = "healthy"
		}
		if resp != nil {
			resp.Body.Close()
		}
	}

	status := "healthy"
	if !allHealthy {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"service":  "api-gateway",
		"services": statuses,
	})
}

func (g *Gateway) ListServices(c *gin.Context) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	c.JSON(http.StatusOK, gin.H{"services": g.services})
}
