package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/salvageops/salvage-cash-ledger/internal/config"
	"github.com/salvageops/salvage-cash-ledger/internal/events/kafka"
	"github.com/salvageops/salvage-cash-ledger/internal/gateway"
	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/ledger"
	"github.com/salvageops/salvage-cash-ledger/internal/logger"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
	"github.com/salvageops/salvage-cash-ledger/internal/offline"
	"github.com/salvageops/salvage-cash-ledger/internal/scheduler"
	"github.com/salvageops/salvage-cash-ledger/internal/storage/memory"
	"github.com/salvageops/salvage-cash-ledger/internal/storage/postgres"
	"github.com/salvageops/salvage-cash-ledger/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. DATABASE_URL selects Postgres; otherwise everything runs in
	// memory, which is enough for a single workstation.
	var (
		db          *sql.DB
		ledgerStore interfaces.LedgerStore
		reportStore interfaces.ReportStore
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		defer db.Close()
		if err := postgres.EnsureSchema(db); err != nil {
			log.Fatal().Err(err).Msg("ensure schema")
		}
		ledgerStore = postgres.NewLedgerStore(db)
		reportStore = postgres.NewReportStore(db)
	} else {
		ledgerStore = memory.NewLedgerStore()
		reportStore = memory.NewReportStore()
	}

	// Vehicle records are owned by the surrounding application; this store
	// stands in for them and is seeded over HTTP.
	vehicleStore := memory.NewVehicleStore()

	var queueStore interfaces.QueueStore
	if cfg.QueuePath != "" {
		queueDB, err := sqlite.Open(cfg.QueuePath)
		if err != nil {
			log.Fatal().Err(err).Msg("open offline queue")
		}
		defer queueDB.Close()
		queueStore = sqlite.NewQueueStore(queueDB)
	} else {
		queueStore = memory.NewQueueStore()
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	var reportingGateway interfaces.ReportingGateway
	if cfg.GatewayURL != "" {
		reportingGateway = gateway.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)
	} else {
		reportingGateway = gateway.NewManualGateway()
		log.Info().Msg("no reporting gateway configured, using manual submission")
	}

	ledgerService := ledger.NewLedger(ledgerStore, publisher, log)
	schedulerService := scheduler.NewScheduler(reportStore, vehicleStore, reportingGateway, publisher, log)

	queue := offline.NewQueue(queueStore, ledgerService, log)
	probe := func(ctx context.Context) bool { return true }
	if db != nil {
		probe = func(ctx context.Context) bool { return db.PingContext(ctx) == nil }
	}
	monitor := offline.NewMonitor(probe, queue, cfg.ProbeInterval, log)
	recorder := offline.NewRecorder(monitor, queue, ledgerService)

	go scheduler.NewPoller(schedulerService, cfg.PollInterval, log).Run(ctx)
	go monitor.Run(ctx)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newMux(ledgerService, schedulerService, queue, monitor, recorder, vehicleStore, log),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newMux(
	ledgerService *ledger.Ledger,
	schedulerService *scheduler.Scheduler,
	queue *offline.Queue,
	monitor *offline.Monitor,
	recorder *offline.Recorder,
	vehicleStore *memory.VehicleStore,
	log zerolog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/cash/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var movement models.CashMovement
		if err := json.NewDecoder(r.Body).Decode(&movement); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		outcome, err := recorder.Record(r.Context(), movement)
		if err != nil {
			writeError(w, err)
			return
		}
		if outcome.Queued {
			// Recorded locally, replayed once connectivity returns.
			writeJSON(w, http.StatusAccepted, outcome.Entry)
			return
		}
		writeJSON(w, http.StatusCreated, outcome.Transaction)
	})

	mux.HandleFunc("/cash/balance", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			operatorID := r.URL.Query().Get("operator_id")
			if operatorID == "" {
				http.Error(w, "operator_id is a mandatory field", http.StatusBadRequest)
				return
			}
			balance, err := ledgerService.Balance(r.Context(), operatorID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"operator_id": operatorID,
				"balance":     balance,
			})

		case http.MethodPost:
			var req ledger.SetBalanceRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			txn, err := ledgerService.SetBalance(r.Context(), req)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, txn)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/cash/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		operatorID := r.URL.Query().Get("operator_id")
		if operatorID == "" {
			http.Error(w, "operator_id is a mandatory field", http.StatusBadRequest)
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "limit must be an integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}
		history, err := ledgerService.History(r.Context(), operatorID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	})

	mux.HandleFunc("/cash/reconcile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		operatorID := r.URL.Query().Get("operator_id")
		if operatorID == "" {
			http.Error(w, "operator_id is a mandatory field", http.StatusBadRequest)
			return
		}
		result, err := ledgerService.Reconcile(r.Context(), operatorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("/reports/purchase", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			TransactionID    string `json:"transaction_id"`
			VIN              string `json:"vin"`
			ObtainDate       string `json:"obtain_date"`
			CounterpartyName string `json:"counterparty_name"`
			Odometer         int    `json:"odometer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		report, err := schedulerService.SchedulePurchaseReport(r.Context(), req.TransactionID, req.VIN, req.ObtainDate, req.CounterpartyName, req.Odometer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, report)
	})

	mux.HandleFunc("/reports/sale", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			TransactionID string `json:"transaction_id"`
			VIN           string `json:"vin"`
			ObtainDate    string `json:"obtain_date"`
			SellerName    string `json:"seller_name"`
			BuyerName     string `json:"buyer_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		report, err := schedulerService.ReportSaleImmediately(r.Context(), req.TransactionID, req.VIN, req.ObtainDate, req.SellerName, req.BuyerName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, report)
	})

	mux.HandleFunc("/reports/retry", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reportID := r.URL.Query().Get("report_id")
		if reportID == "" {
			http.Error(w, "report_id is a mandatory field", http.StatusBadRequest)
			return
		}
		report, err := schedulerService.RetryReport(r.Context(), reportID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	mux.HandleFunc("/reports/process", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		result, err := schedulerService.ProcessDueReports(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("/reports/failed", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reports, err := schedulerService.FailedReports(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	})

	mux.HandleFunc("/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reportID := r.URL.Query().Get("id")
		if reportID == "" {
			http.Error(w, "id is a mandatory field", http.StatusBadRequest)
			return
		}
		report, err := schedulerService.Report(r.Context(), reportID)
		if err != nil {
			writeError(w, err)
			return
		}
		if report == nil {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	mux.HandleFunc("/vehicles", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var txn models.VehicleTransaction
		if err := json.NewDecoder(r.Body).Decode(&txn); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if txn.ID == "" {
			http.Error(w, "id is a mandatory field", http.StatusBadRequest)
			return
		}
		vehicleStore.Put(txn)
		writeJSON(w, http.StatusCreated, txn)
	})

	mux.HandleFunc("/queue/depth", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		depth, err := queue.Depth(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"depth":  depth,
			"online": monitor.Online(),
		})
	})

	mux.HandleFunc("/queue/flush", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		result, err := queue.Flush(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("manual flush stopped early")
			writeJSON(w, http.StatusConflict, result)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidType),
		errors.Is(err, ledger.ErrMissingOperator),
		errors.Is(err, scheduler.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, scheduler.ErrDuplicateVIN),
		errors.Is(err, scheduler.ErrAlreadySent),
		errors.Is(err, scheduler.ErrNotFailed):
		status = http.StatusConflict
	case errors.Is(err, scheduler.ErrReportNotFound):
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}
