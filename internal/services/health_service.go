package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"regliq/pkg/contracts"
)

// Pinger is implemented by storage backends that can check connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HubStatus is the view of the websocket hub needed for readiness
type HubStatus interface {
	Running() bool
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	storageDriver string
	storage       Pinger
	hub           HubStatus
	dataDir       string
	startTime     time.Time
	logger        *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// Health status values
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// NewHealthService creates a health service. storage may be nil for the memory driver
// and hub may be nil when websockets are disabled.
func NewHealthService(storageDriver string, storage Pinger, hub HubStatus, dataDir string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.String("storage_driver", storageDriver),
		slog.String("data_dir", dataDir))

	return &HealthService{
		storageDriver: storageDriver,
		storage:       storage,
		hub:           hub,
		dataDir:       dataDir,
		startTime:     time.Now(),
		logger:        logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"storage":   hs.checkStorageHealth(ctx),
			"websocket": hs.checkWebSocketHealth(),
			"data":      hs.checkDataHealth(),
		},
	}

	for name, service := range status.Services {
		if service.Status != StatusReady {
			status.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "service not ready",
				slog.String("service", name),
				slog.String("message", service.Message))
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]any{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func (hs *HealthService) checkStorageHealth(ctx context.Context) ServiceHealth {
	if hs.storage == nil {
		return ServiceHealth{
			Status:  StatusReady,
			Message: fmt.Sprintf("%s storage is healthy", hs.storageDriver),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := hs.storage.Ping(ctx); err != nil {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("%s storage unreachable: %v", hs.storageDriver, err),
		}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%s storage is healthy", hs.storageDriver),
	}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: StatusReady, Message: "websocket disabled"}
	}
	if !hs.hub.Running() {
		return ServiceHealth{Status: StatusNotReady, Message: "websocket hub is not running"}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("websocket hub serving %d clients", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.dataDir == "" {
		return ServiceHealth{Status: StatusReady, Message: "no data directory configured"}
	}

	info, err := os.Stat(hs.dataDir)
	if err != nil {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("data directory not accessible: %v", err),
		}
	}
	if !info.IsDir() {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("%s is not a directory", hs.dataDir),
		}
	}
	return ServiceHealth{Status: StatusReady, Message: "data directory is healthy"}
}
