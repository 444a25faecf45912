package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/smartbin/internal/logging"
	"github.com/LeonardoBeccarini/smartbin/internal/services/classifier"
	"github.com/LeonardoBeccarini/smartbin/internal/services/identity"
	"github.com/LeonardoBeccarini/smartbin/internal/services/journal"
	"github.com/LeonardoBeccarini/smartbin/internal/services/smartbin"
	"github.com/LeonardoBeccarini/smartbin/internal/services/storage"
	"github.com/LeonardoBeccarini/smartbin/pkg/telemetry"
)

func main() {
	cfg, err := loadConfig()
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Identity ===
	id, created, err := identity.LoadOrCreate(cfg.IDFile)
	if err != nil {
		log.Error("bin identity unavailable", "file", cfg.IDFile, "err", err)
		os.Exit(1)
	}
	log = log.With("bin_id", id.String())
	log.Info("identity", "created", created, "file", cfg.IDFile)

	// === Devices ===
	dev, err := buildDevices(cfg, log)
	if err != nil {
		log.Error("hardware setup failed", "err", err)
		os.Exit(1)
	}
	registry, err := smartbin.NewRegistry(dev.compartments, cfg.Fallback, cfg.MinConfidence)
	if err != nil {
		log.Error("compartments", "err", err)
		os.Exit(1)
	}

	// === AWS ===
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error("aws config", "err", err)
		os.Exit(1)
	}
	store := storage.NewS3Store(s3.NewFromConfig(awsCfg))
	cls := classifier.New(rekognition.NewFromConfig(awsCfg), classifier.Config{
		ProjectARN:        cfg.ProjectARN,
		ModelARN:          cfg.ModelARN,
		VersionName:       cfg.VersionName,
		MinInferenceUnits: cfg.MinInferenceUnits,
		MinConfidence:     cfg.MinConfidence,
		Mode:              cfg.EnsureMode,
		CallTimeout:       cfg.ClassifyTimeout,
	}, log)

	// === Journal (opzionale) ===
	var (
		rec   journal.Recorder = journal.Noop{}
		ager  smartbin.JournalStatus
		flush = func() {}
	)
	if cfg.InfluxURL != "" {
		influx := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
			influxdb2.DefaultOptions().SetBatchSize(20).SetFlushInterval(1000))
		w := journal.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), log)
		rec, ager = w, w
		flush = func() {
			w.Flush()
			influx.Close()
		}
		log.Info("journal enabled", "url", cfg.InfluxURL, "bucket", cfg.InfluxBucket)
	}
	defer flush()

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := smartbin.NewMetrics(reg)

	// === MQTT ===
	ch, err := telemetry.New(telemetry.Config{
		Host:     cfg.IoTEndpoint,
		Port:     cfg.IoTPort,
		ClientID: id.String(),
		RootCA:   cfg.RootCA,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
	}, log)
	if err != nil {
		log.Error("telemetry channel", "err", err)
		os.Exit(1)
	}
	defer ch.Close()
	smartbin.RegisterChannelMetrics(reg, ch)

	loop, err := smartbin.New(smartbin.Config{
		BinID:          id.String(),
		Bucket:         cfg.Bucket,
		WorkDir:        cfg.WorkDir,
		BinHeight:      cfg.BinHeightCm,
		Debounce:       cfg.Debounce,
		DepositWindow:  cfg.DepositWindow,
		CommandStagger: cfg.CommandStagger,
	}, smartbin.Deps{
		Registry:   registry,
		Camera:     dev.camera,
		Store:      store,
		Classifier: cls,
		Publisher:  ch,
		Journal:    rec,
		Metrics:    metrics,
		Logger:     log,
	})
	if err != nil {
		log.Error("controller", "err", err)
		os.Exit(1)
	}

	if err := ch.Subscribe(loop.Topics().Action, 1, loop.HandleAction); err != nil {
		log.Error("subscribe", "topic", loop.Topics().Action, "err", err)
		os.Exit(1)
	}
	// senza broker si parte comunque: i messaggi restano in coda
	if err := ch.Connect(ctx); err != nil {
		log.Warn("broker not reachable yet, continuing offline", "err", err)
	}
	if created {
		if err := loop.Register(ctx); err != nil {
			log.Error("registration", "err", err)
		}
	}

	// === HTTP ===
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/healthz", smartbin.NewHealthHandler(ch, ager, loop.State))
	mux.Handle("/readyz", smartbin.NewReadyHandler(ch))
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http listening", "port", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
		}
	}()

	// === gRPC health ===
	var gs *grpc.Server
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
		if err != nil {
			log.Error("grpc listen", "port", cfg.GRPCPort, "err", err)
			os.Exit(1)
		}
		gs = grpc.NewServer()
		hsrv := health.NewServer()
		healthpb.RegisterHealthServer(gs, hsrv)
		go smartbin.WatchHealth(ctx, hsrv, ch, 5*time.Second)
		go func() {
			log.Info("grpc health listening", "port", cfg.GRPCPort)
			if err := gs.Serve(lis); err != nil {
				log.Error("grpc serve", "err", err)
			}
		}()
	}

	// === Control loop ===
	if err := loop.Run(ctx, dev.presses(ctx)); err != nil {
		log.Error("control loop", "err", err)
	}

	log.Info("shutting down")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	if gs != nil {
		gs.GracefulStop()
	}
}
