package httpapi

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"simantu.org/internal/obs"
)

const probeTimeout = 2 * time.Second

type serviceStatus struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	ResponseTimeMS *int64 `json:"response_time_ms,omitempty"`
}

type memoryStatus struct {
	Status      string `json:"status"`
	AllocMB     uint64 `json:"alloc_mb"`
	HeapInuseMB uint64 `json:"heap_inuse_mb"`
	SysMB       uint64 `json:"sys_mb"`
	NumGC       uint32 `json:"num_gc"`
}

type healthReport struct {
	Status      string         `json:"status"`
	Timestamp   string         `json:"timestamp"`
	Uptime      float64        `json:"uptime"`
	Environment string         `json:"environment"`
	Version     string         `json:"version"`
	GoVersion   string         `json:"go_version,omitempty"`
	Platform    string         `json:"platform,omitempty"`
	Arch        string         `json:"arch,omitempty"`
	PID         int            `json:"pid,omitempty"`
	Goroutines  int            `json:"goroutines,omitempty"`
	Services    map[string]any `json:"services"`
}

func (a *API) probeDatabase(ctx context.Context) (serviceStatus, time.Duration) {
	if a.ready == nil {
		return serviceStatus{Status: "OK", Message: "no database configured"}, 0
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	start := time.Now()
	err := a.ready.Check(ctx)
	elapsed := time.Since(start)
	obs.SetReady(err == nil)
	if err != nil {
		return serviceStatus{Status: "ERROR", Message: "database connection failed", Error: err.Error()}, elapsed
	}
	return serviceStatus{Status: "OK", Message: "database connection successful"}, elapsed
}

func memoryUsage() memoryStatus {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	const mb = 1 << 20
	return memoryStatus{
		Status:      "OK",
		AllocMB:     ms.Alloc / mb,
		HeapInuseMB: ms.HeapInuse / mb,
		SysMB:       ms.Sys / mb,
		NumGC:       ms.NumGC,
	}
}

func (a *API) baseReport() healthReport {
	return healthReport{
		Status:      "OK",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Uptime:      time.Since(a.started).Seconds(),
		Environment: a.env,
		Version:     a.version,
		Services:    map[string]any{},
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	report := a.baseReport()
	db, _ := a.probeDatabase(r.Context())
	report.Services["database"] = db
	report.Services["memory"] = memoryUsage()
	a.writeReport(w, report, db)
}

func (a *API) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	report := a.baseReport()
	report.GoVersion = runtime.Version()
	report.Platform = runtime.GOOS
	report.Arch = runtime.GOARCH
	report.PID = os.Getpid()
	report.Goroutines = runtime.NumGoroutine()

	db, elapsed := a.probeDatabase(r.Context())
	ms := elapsed.Milliseconds()
	db.ResponseTimeMS = &ms
	report.Services["database"] = db
	report.Services["memory"] = memoryUsage()
	a.writeReport(w, report, db)
}

func (a *API) writeReport(w http.ResponseWriter, report healthReport, db serviceStatus) {
	code := http.StatusOK
	if db.Status != "OK" {
		report.Status = "ERROR"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	db, _ := a.probeDatabase(r.Context())
	ts := time.Now().UTC().Format(time.RFC3339)
	if db.Status != "OK" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "NOT_READY",
			"timestamp": ts,
			"error":     db.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "READY",
		"timestamp": ts,
	})
}

func (a *API) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ALIVE",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(a.started).Seconds(),
	})
}
