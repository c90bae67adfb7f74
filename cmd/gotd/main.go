// Command gotd runs the graph-of-thought reasoning service: it accepts
// queries over HTTP, decomposes and schedules them across the node-type
// processors, and returns the synthesized answer once the graph drains.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/swarmguard/gotcore/internal/cas"
	"github.com/swarmguard/gotcore/internal/config"
	"github.com/swarmguard/gotcore/internal/control"
	"github.com/swarmguard/gotcore/internal/coordinator"
	"github.com/swarmguard/gotcore/internal/engine"
	"github.com/swarmguard/gotcore/internal/processor"
	"github.com/swarmguard/gotcore/internal/schedule"
	"github.com/swarmguard/gotcore/internal/telemetry"
)

func main() {
	cfg := config.FromEnv()
	telemetry.InitLogging(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTrace := telemetry.InitTracer(ctx, cfg.ServiceName)
	shutdownMetrics, _ := telemetry.InitMetrics(ctx, cfg.ServiceName)

	casCli, err := buildCAS(cfg)
	if err != nil {
		slog.Error("cas init failed", "error", err)
		os.Exit(1)
	}

	oracleURL := os.Getenv("GOT_ORACLE_URL")
	if oracleURL == "" {
		oracleURL = "http://localhost:9000/v1/complete"
	}
	oracle := processor.NewHTTPOracle(oracleURL, os.Getenv("GOT_ORACLE_TOKEN"), 5, 10)

	cancelMgr := control.New()
	go cancelMgr.StartCleanupLoop(ctx, 10*time.Minute, time.Hour)

	srv := &server{
		cfg:       cfg,
		cancelMgr: cancelMgr,
		newEngine: func() *engine.Engine { return engine.New(casCli, oracle) },
	}

	coord, natsConn := buildCoordinator(cfg, srv)
	if coord != nil {
		if err := coord.Start(ctx); err != nil {
			slog.Warn("coordinator start failed", "error", err)
		}
	}

	sched, err := schedule.New(cfg.SchedulerBoltPath, srv.runScheduled)
	if err != nil {
		slog.Warn("schedule runner init failed", "error", err)
	} else if err := sched.Start(ctx); err != nil {
		slog.Warn("schedule runner start failed", "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/query", srv.handleQuery)
	mux.HandleFunc("/v1/queries/", srv.handleQueryStatus)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()
	slog.Info("gotd started", "addr", cfg.HTTPAddr)

	<-ctx.Done()
	slog.Info("shutdown initiated")
	cancelMgr.CancelAll("process shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if sched != nil {
		_ = sched.Stop(shutdownCtx)
	}
	if natsConn != nil {
		natsConn.Close()
	}
	telemetry.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	slog.Info("shutdown complete")
}

func buildCAS(cfg config.Config) (cas.Client, error) {
	var base cas.Client
	var err error
	switch cfg.CASBackend {
	case "http":
		base = cas.NewHTTPClient(cfg.CASBaseURL, cas.WithBearerToken(cfg.CASToken))
	default:
		base, err = cas.NewBoltClient(cfg.CASBoltPath)
		if err != nil {
			return nil, err
		}
	}
	return cas.NewCachingCAS(base, 256), nil
}

func buildCoordinator(cfg config.Config, srv *server) (*coordinator.Coordinator, *nats.Conn) {
	if os.Getenv("GOT_COORDINATOR_ENABLED") != "true" {
		return nil, nil
	}
	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		slog.Warn("nats connect failed, coordinator disabled", "error", err)
		return nil, nil
	}
	peerID := uuid.NewString()
	bus := coordinator.NewNatsPubSub(conn, peerID)
	coord := coordinator.New(bus, srv.executeRemoteQuery, srv.onRemoteComplete)
	return coord, conn
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// server holds the mutable state the HTTP handlers and the cron/coordinator
// hooks all share.
type server struct {
	cfg       config.Config
	cancelMgr *control.CancellationManager
	newEngine func() *engine.Engine

	mu      sync.Mutex
	results map[string]engine.Result
}

type queryRequest struct {
	Query     string `json:"query"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
}

type queryResponse struct {
	QueryID     string   `json:"query_id"`
	Answer      string   `json:"answer"`
	Confidence  float64  `json:"confidence"`
	GraphCID    string   `json:"graph_cid"`
	NodeCount   int      `json:"node_count"`
	ElapsedMS   int64    `json:"elapsed_ms"`
	Conclusions []string `json:"conclusions"`
	FailedNodes []string `json:"failed_nodes,omitempty"`
	DeadlineHit bool     `json:"deadline_hit"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	queryID := uuid.NewString()
	ctx := s.cancelMgr.Register(r.Context(), queryID)

	eng := s.newEngine()
	result, err := eng.ProcessQuery(ctx, req.Query, engineOptionsFrom(req))
	if err != nil {
		s.cancelMgr.Complete(queryID, control.QueryFailed)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cancelMgr.Complete(queryID, control.QueryCompleted)
	s.storeResult(queryID, result)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(queryResponse{
		QueryID:     queryID,
		Answer:      result.Answer,
		Confidence:  result.Confidence,
		GraphCID:    string(result.GraphCID),
		NodeCount:   result.NodeCount,
		ElapsedMS:   result.ElapsedMS,
		Conclusions: result.Conclusions,
		FailedNodes: result.FailedNodes,
		DeadlineHit: result.DeadlineHit,
	})
}

func engineOptionsFrom(req queryRequest) engine.Options {
	return engine.Options{TimeoutMS: req.TimeoutMS}
}

func (s *server) storeResult(queryID string, result engine.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = make(map[string]engine.Result)
	}
	s.results[queryID] = result
}

// handleQueryStatus serves GET /v1/queries/{id} for status/result lookup and
// DELETE /v1/queries/{id} to cancel a running query.
func (s *server) handleQueryStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/v1/queries/"):]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodDelete:
		if err := s.cancelMgr.Cancel(r.Context(), id, "client requested cancellation"); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	case http.MethodGet:
		status, ok := s.cancelMgr.Status(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.mu.Lock()
		result, hasResult := s.results[id]
		s.mu.Unlock()
		resp := map[string]any{"query_id": id, "status": status}
		if hasResult {
			resp["answer"] = result.Answer
			resp["confidence"] = result.Confidence
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// runScheduled is the schedule.Runner hook: cron fires a stored query
// template straight through ProcessQuery.
func (s *server) runScheduled(ctx context.Context, query string, timeoutMS int64) error {
	eng := s.newEngine()
	_, err := eng.ProcessQuery(ctx, query, engine.Options{TimeoutMS: timeoutMS})
	return err
}

// executeRemoteQuery is the coordinator.Executor hook: taskID doubles as the
// query text for distributed-election scenarios (spec.md §4.6).
func (s *server) executeRemoteQuery(ctx context.Context, taskID string) (cas.CID, error) {
	eng := s.newEngine()
	result, err := eng.ProcessQuery(ctx, taskID, engine.Options{})
	if err != nil {
		return "", err
	}
	return result.GraphCID, nil
}

func (s *server) onRemoteComplete(taskID string, resultCID cas.CID) {
	slog.Info("remote task completed", "task_id", taskID, "result_cid", resultCID)
}
