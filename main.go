package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"utility-billing/internal/audit"
	"utility-billing/internal/auth"
	billingapp "utility-billing/internal/billing/application"
	billing "utility-billing/internal/billing/domain"
	"utility-billing/internal/billing/infrastructure/csvfile"
	billingmemory "utility-billing/internal/billing/infrastructure/memory"
	billingrepo "utility-billing/internal/billing/infrastructure/postgres"
	billinginterfaces "utility-billing/internal/billing/interfaces"
	billinghttp "utility-billing/internal/billing/interfaces/http"
	billingnotify "utility-billing/internal/billing/notify"
	masterdatarepo "utility-billing/internal/masterdata/infrastructure/postgres"
	"utility-billing/internal/observability/logging"
	"utility-billing/internal/observability/metrics"
	"utility-billing/internal/recordstore"
)

// invoiceStore is what main needs from either invoice backend.
type invoiceStore interface {
	billing.InvoiceRepository
	MaxID(ctx context.Context) (int64, error)
}

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("billing failed", zap.Error(err))
	}
}

func run(cfg config, logger *zap.Logger) error {
	if cfg.HTTPAddr != "" && cfg.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required with HTTP_ADDR")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := billingapp.LoadPolicy()
	if err != nil {
		return err
	}

	var (
		db        *sql.DB
		invoices  invoiceStore
		anomalies billing.AnomalyLog
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if err := masterdatarepo.Migrate(ctx, db); err != nil {
			return err
		}
		if err := billingrepo.Migrate(ctx, db); err != nil {
			return err
		}
		invoices = billingrepo.NewInvoiceRepository(db)
		anomalies = billingrepo.NewAnomalyRepository(db)
		logger.Info("using postgres storage")
	} else {
		invoices = billingmemory.NewInvoiceRepository()
		fileLog, err := csvfile.NewAnomalyLog(cfg.AnomalyLogPath)
		if err != nil {
			return err
		}
		anomalies = fileLog
	}
	metrics.Init(db, logger)

	floor, err := invoices.MaxID(ctx)
	if err != nil {
		return err
	}

	var storeOpts []recordstore.Option
	if cfg.NodeID != "" {
		node, err := strconv.ParseInt(cfg.NodeID, 10, 64)
		if err != nil {
			return err
		}
		ids, err := recordstore.NewSnowflakeIDs(node)
		if err != nil {
			return err
		}
		storeOpts = append(storeOpts, recordstore.WithIDGenerator(ids))
	}

	var notifier billingapp.AnomalyNotifier
	if cfg.AnomalyWebhookURL != "" {
		channel, err := billingnotify.NewWebhookChannel(cfg.AnomalyWebhookURL)
		if err != nil {
			return err
		}
		tpl, err := billingnotify.NewTemplate(cfg.AnomalyNotifyTemplate)
		if err != nil {
			return err
		}
		webhook, err := billingnotify.NewNotifier(channel, tpl,
			billingnotify.WithLogger(logger),
			billingnotify.WithDedupeWindow(cfg.AnomalyNotifyDedupeWindow),
			billingnotify.WithRequestTimeout(cfg.AnomalyNotifyTimeout),
		)
		if err != nil {
			return err
		}
		notifier = billingnotify.NewMultiNotifier(webhook)
	}

	candidates, err := billingapp.ParseCandidates(cfg.Candidates)
	if err != nil {
		return err
	}
	runner, err := billingapp.NewRunner(billingapp.RunnerConfig{
		Sink:           invoices,
		Anomalies:      anomalies,
		Policy:         policy,
		Notifier:       notifier,
		Logger:         logger,
		InvoiceIDFloor: floor,
		StoreOptions:   storeOpts,
	})
	if err != nil {
		return err
	}
	report, err := runner.Run(ctx, billingapp.RunRequest{InputPath: cfg.InputPath, Candidates: candidates})
	if err != nil {
		return err
	}
	for _, res := range report.Results {
		logger.Info(res.Result.Message,
			zap.Int64("meter_id", res.MeterID),
			zap.Int64("customer_id", res.CustomerID),
			zap.String("outcome", string(res.Result.Outcome)),
			zap.Float64("average_kwh", res.Result.Average),
		)
	}

	if cfg.InvoiceExportPath != "" {
		if err := csvfile.ExportInvoicesFile(cfg.InvoiceExportPath, report.Invoices); err != nil {
			return err
		}
	}
	if cfg.InvoiceXLSXPath != "" {
		data, err := billinginterfaces.BuildInvoicesXLSX(report.Invoices)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.InvoiceXLSXPath, data, 0o644); err != nil {
			return err
		}
	}
	if db != nil {
		customers := masterdatarepo.NewCustomerRepository(db)
		if err := customers.Sync(ctx, report.Session.Store.Customers(), report.Session.Store.Meters()); err != nil {
			return err
		}
	}
	logger.Info("billing run finished",
		zap.Int("customers", report.Customers),
		zap.Int("meters", report.Meters),
		zap.Int("readings", report.Readings),
		zap.Int("invoices", len(report.Invoices)),
		zap.Int("inconsistent", report.Inconsistent),
	)

	if cfg.HTTPAddr == "" {
		return nil
	}
	var handlerOpts []billinghttp.Option
	if db != nil {
		auditRepo := audit.NewRepository(db)
		if err := auditRepo.Migrate(ctx); err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, billinghttp.WithAuditLogger(auditRepo))
	}
	return serve(ctx, cfg, logger, report.Session, invoices, policy.Currency, handlerOpts...)
}

func serve(ctx context.Context, cfg config, logger *zap.Logger, session *billingapp.Session, invoices billing.InvoiceRepository, currency string, opts ...billinghttp.Option) error {
	handler, err := billinghttp.NewHandler(session.Service, invoices, session.Store, currency, logger, opts...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type config struct {
	InputPath                 string
	Candidates                string
	AnomalyLogPath            string
	InvoiceExportPath         string
	InvoiceXLSXPath           string
	NodeID                    string
	DatabaseURL               string
	HTTPAddr                  string
	JWTSecret                 string
	AnomalyWebhookURL         string
	AnomalyNotifyTemplate     string
	AnomalyNotifyDedupeWindow time.Duration
	AnomalyNotifyTimeout      time.Duration
}

func loadConfig() config {
	return config{
		InputPath:                 getenvDefault("BILLING_INPUT", "dados_leituras.csv"),
		Candidates:                getenvDefault("BILLING_CANDIDATES", ""),
		AnomalyLogPath:            getenvDefault("BILLING_ANOMALY_LOG", "leituras_inconsistentes.csv"),
		InvoiceExportPath:         getenvDefault("BILLING_INVOICE_EXPORT", "faturas.csv"),
		InvoiceXLSXPath:           getenvDefault("BILLING_INVOICE_XLSX", ""),
		NodeID:                    getenvDefault("BILLING_NODE_ID", ""),
		DatabaseURL:               getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                  getenvDefault("HTTP_ADDR", ""),
		JWTSecret:                 getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AnomalyWebhookURL:         getenvDefault("ANOMALY_WEBHOOK_URL", ""),
		AnomalyNotifyTemplate:     getenvDefault("ANOMALY_NOTIFY_TEMPLATE", ""),
		AnomalyNotifyDedupeWindow: getenvDuration("ANOMALY_NOTIFY_DEDUP_WINDOW", 0),
		AnomalyNotifyTimeout:      getenvDuration("ANOMALY_NOTIFY_TIMEOUT", 5*time.Second),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
