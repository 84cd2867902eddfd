package classify

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/screenveil/screenveil/internal/trace"
)

// Prober tracks the serving status of configured remote classifier
// targets via the standard gRPC health service. The pipeline keeps using
// the embedded detector while a target is down; status is surfaced on
// the monitor API.
type Prober struct {
	targets  []string
	interval time.Duration

	mu     sync.RWMutex
	conns  map[string]*grpc.ClientConn
	status map[string]bool
}

// NewProber creates a prober for the given targets. An empty target list
// yields a prober that reports no remote capability.
func NewProber(targets []string) *Prober {
	return &Prober{
		targets:  targets,
		interval: DefaultProbeInterval,
		conns:    make(map[string]*grpc.ClientConn),
		status:   make(map[string]bool),
	}
}

// Run probes all targets on a fixed interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	if len(p.targets) == 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check probes every target once and returns the updated status map.
func (p *Prober) Check(ctx context.Context) map[string]bool {
	for _, addr := range p.targets {
		healthy := p.probe(ctx, addr)

		p.mu.Lock()
		was, known := p.status[addr]
		p.status[addr] = healthy
		p.mu.Unlock()

		if !known || was != healthy {
			slog.Info("classifier target status", "target", addr, "healthy", healthy)
		}
	}
	return p.Status()
}

// Status returns a copy of the last known per-target health.
func (p *Prober) Status() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.status)
}

// Available reports whether any remote target is currently serving.
func (p *Prober) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ok := range p.status {
		if ok {
			return true
		}
	}
	return false
}

// Close releases all target connections.
func (p *Prober) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, conn := range p.conns {
		_ = conn.Close()
		delete(p.conns, addr)
	}
}

func (p *Prober) probe(ctx context.Context, addr string) bool {
	conn, err := p.conn(addr)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return false
	}
	return resp.Status == grpc_health_v1.HealthCheckResponse_SERVING
}

func (p *Prober) conn(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, err
	}
	p.conns[addr] = conn
	return conn, nil
}
