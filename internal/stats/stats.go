// Package stats serves runtime statistics (heap, goroutines, GC pauses) over HTTP
// while the emulator runs. Charts are at /debug/statsview and pprof at /debug/pprof/.
package stats

import (
	"errors"
	"net/http"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/retroenv/retrogolib/log"
)

const (
	DefaultAddress = "localhost:12600"
	path           = "/debug/statsview"
)

// URL returns the chart page served for addr.
func URL(addr string) string {
	if addr == "" {
		addr = DefaultAddress
	}
	return "http://" + addr + path
}

// Launch starts the server in a new goroutine. It returns a stop function.
func Launch(addr string, logger *log.Logger) (stop func()) {
	if addr == "" {
		addr = DefaultAddress
	}
	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()
	go func() {
		if err := mgr.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("stats server stopped", log.Err(err))
		}
	}()
	logger.Info("stats server available", log.String("url", URL(addr)))
	return mgr.Stop
}
