package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/usenocturne/btmanager/bluez"
	"github.com/usenocturne/btmanager/utils"
	"github.com/usenocturne/btmanager/ws"
)

func infoHandler(versionFile string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if r.Method != "GET" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		content, err := os.ReadFile(versionFile)
		if err != nil {
			http.Error(w, "Error reading version file", http.StatusInternalServerError)
			return
		}

		response := utils.InfoResponse{
			Version: strings.TrimSpace(string(content)),
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Error encoding response", http.StatusInternalServerError)
			return
		}
	}
}

func newMux(cfg *utils.Config, router *ws.Router, hub *ws.WebSocketHub, logger logrus.FieldLogger) *http.ServeMux {
	server := ws.NewServer(router, hub, logger.WithField("component", "ws"))
	server.CommandTimeout = cfg.Plugin.CommandTimeout

	mux := http.NewServeMux()
	mux.HandleFunc("/info", infoHandler(cfg.VersionFile))
	mux.Handle("/ws", server)
	return mux
}

func main() {
	logger := logrus.StandardLogger()
	configPath := utils.ConfigPath()

	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	var (
		logMu     sync.Mutex
		logCloser io.Closer
	)
	applyLogging := func(cfg *utils.Config) {
		closer, err := utils.SetupLogging(logger, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to set up logging")
			return
		}
		logMu.Lock()
		defer logMu.Unlock()
		if logCloser != nil {
			logCloser.Close()
		}
		logCloser = closer
	}
	applyLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewWebSocketHub(logger.WithField("component", "hub"))

	btManager := bluez.NewBluetoothManager(hub, logger.WithField("component", "bluez"))
	if cfg.Plugin.Disabled {
		logger.Warn("Bluetooth plugin disabled by config")
	} else if err := btManager.Init(); err != nil {
		logger.WithError(err).Error("Failed to initialize bluetooth")
	}

	router := ws.NewRouter()
	bluez.RegisterCommands(router, btManager)

	if err := utils.WatchConfig(ctx, configPath, logger, applyLogging); err != nil {
		logger.WithError(err).Warn("Config changes will not be picked up")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newMux(cfg, router, hub, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Server starting on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("Server failed")
	}

	logMu.Lock()
	if logCloser != nil {
		logCloser.Close()
	}
	logMu.Unlock()
}
