// Package profiling runs the optional pprof listener and the Pyroscope
// continuous profiling agent.
package profiling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"time"

	"github.com/grafana/pyroscope-go"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

const (
	defaultPprofAddress = "localhost:6060"
	defaultEnvironment  = "development"
	stopTimeout         = 5 * time.Second
)

// Config enables the profilers. Both are off by default.
type Config struct {
	PprofEnabled bool   `env:"ENABLE_PROFILING"      yaml:"pprof_enabled"`
	PprofAddress string `env:"PPROF_ADDRESS"         yaml:"pprof_address"`
	// PyroscopeURL enables continuous profiling when set.
	PyroscopeURL string `env:"PYROSCOPE_SERVER_URL"  yaml:"pyroscope_url"`
	Environment  string `env:"PYROSCOPE_ENVIRONMENT" yaml:"environment"`
}

// Profiler owns whichever profilers Start enabled.
type Profiler struct {
	server   *http.Server
	addr     net.Addr
	pyro     *pyroscope.Profiler
	log      logger.Logger
	disabled bool
}

// Start launches the configured profilers. With nothing enabled it returns
// a Profiler whose Stop is a no-op.
func Start(cfg Config, service, version string, log logger.Logger) (*Profiler, error) {
	p := &Profiler{log: log.With(logger.Component("profiling"))}

	if cfg.PprofEnabled {
		if err := p.startPprof(cfg.PprofAddress); err != nil {
			return nil, err
		}
	}

	if cfg.PyroscopeURL != "" {
		if err := p.startPyroscope(cfg, service, version); err != nil {
			_ = p.Stop()
			return nil, err
		}
	}

	p.disabled = p.server == nil && p.pyro == nil
	return p, nil
}

// startPprof binds before returning so a busy port fails startup. The
// handlers live on their own mux, not http.DefaultServeMux.
func (p *Profiler) startPprof(addr string) error {
	if addr == "" {
		addr = defaultPprofAddress
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("pprof listen %s: %w", addr, err)
	}

	p.addr = ln.Addr()
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serveErr := p.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			p.log.Error("pprof server error", logger.Error(serveErr))
		}
	}()

	p.log.Info("pprof server started", logger.String("address", p.addr.String()))
	return nil
}

func (p *Profiler) startPyroscope(cfg Config, service, version string) error {
	env := cfg.Environment
	if env == "" {
		env = defaultEnvironment
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: service,
		ServerAddress:   cfg.PyroscopeURL,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"environment": env,
			"version":     version,
			"hostname":    hostname,
			"go_version":  runtime.Version(),
		},
	})
	if err != nil {
		return fmt.Errorf("start pyroscope: %w", err)
	}

	p.pyro = profiler
	p.log.Info("Pyroscope continuous profiling started",
		logger.String("server", cfg.PyroscopeURL),
		logger.String("environment", env),
	)
	return nil
}

// Addr is the bound pprof address, or nil when pprof is off.
func (p *Profiler) Addr() net.Addr {
	return p.addr
}

// Enabled reports whether any profiler is running.
func (p *Profiler) Enabled() bool {
	return p != nil && !p.disabled
}

// Stop shuts the profilers down.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}

	var errs []error
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := p.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop pprof: %w", err))
		}
	}
	if p.pyro != nil {
		if err := p.pyro.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop pyroscope: %w", err))
		}
	}
	return errors.Join(errs...)
}
