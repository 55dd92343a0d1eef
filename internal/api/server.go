package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/openbuilders/sepa-collector/internal/batcher"
	"github.com/openbuilders/sepa-collector/internal/health"
	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/mandate"
	"github.com/openbuilders/sepa-collector/internal/reversal"
	"github.com/openbuilders/sepa-collector/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// APIHandler is a custom handler type that returns data or an error
type APIHandler func(w http.ResponseWriter, r *http.Request) (interface{}, error)

type Generator interface {
	ContributionInstructions(ctx context.Context, year int, today time.Time) (*types.ContributionBuckets, error)
	TabInstructions(ctx context.Context, end time.Time) (*types.TabBuckets, error)
}

type Batcher interface {
	Commit(ctx context.Context, req batcher.CommitRequest, now time.Time) (*batcher.CommitResult, error)
	SetStatus(ctx context.Context, batchID int64, status types.BatchStatus) error
}

type Reversals interface {
	Process(ctx context.Context, req reversal.ReversalRequest, actorID int64) (*types.Reversal, error)
}

type Mandates interface {
	NextSequenceType(ctx context.Context, mandateID int64) (types.SequenceType, error)
	ApplyAmendment(ctx context.Context, mandateID int64, req mandate.AmendmentRequest) (*types.Amendment, error)
	Terminate(ctx context.Context, ids []int64, today time.Time) error
	Anonymize(ctx context.Context, ids []int64) error
}

type Eligibility interface {
	ToTerminate(ctx context.Context, now time.Time) ([]int64, error)
	ToAnonymize(ctx context.Context, now time.Time) ([]int64, error)
}

type Assignments interface {
	GetAssignmentDetail(ctx context.Context, id int64) (*types.AssignmentDetail, error)
	GetInstructionDetail(ctx context.Context, id int64) (*types.InstructionDetail, error)
}

// RunLock serializes collection and maintenance runs.
type RunLock interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

type HealthReporter interface {
	GetHealthStatus() health.HealthStatus
}

type Services struct {
	Generator   Generator
	Batcher     Batcher
	Reversals   Reversals
	Mandates    Mandates
	Eligibility Eligibility
	Assignments Assignments
	RunLock     RunLock
	Health      HealthReporter
}

type Server struct {
	config   *Config
	services Services
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
}

type Config struct {
	ListenAddr   string
	ListenPort   int
	MetricsPort  int
	ProbesPort   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	ID           string

	Location *time.Location
	Epoch    time.Time
	Prefixes types.Prefixes
}

func NewServer(config *Config, services Services) *Server {
	return &Server{
		config:   config,
		services: services,
		validate: newValidator(),
		now:      time.Now,
		log:      slog.With("pod", config.ID, "component", "web-server"),
	}
}

// Routes returns the operator API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /proposals", WithJSONResponse(s.ProposalsHandler))
	mux.HandleFunc("POST /assignments", WithJSONResponse(s.CommitAssignmentHandler))
	mux.HandleFunc("GET /assignments/{id}", WithJSONResponse(s.AssignmentHandler))
	mux.HandleFunc("GET /assignments/{id}/export", s.ExportAssignmentHandler)
	mux.HandleFunc("POST /batches/{id}/status", WithJSONResponse(s.BatchStatusHandler))
	mux.HandleFunc("GET /instructions/{id}", WithJSONResponse(s.InstructionHandler))
	mux.HandleFunc("POST /instructions/{id}/reversal", WithJSONResponse(s.ReversalHandler))
	mux.HandleFunc("POST /mandates/{id}/amendments", WithJSONResponse(s.AmendmentHandler))
	mux.HandleFunc("GET /mandates/{id}/sequence", WithJSONResponse(s.SequenceHandler))
	mux.HandleFunc("GET /mandates/eligible", WithJSONResponse(s.EligibleHandler))
	mux.HandleFunc("POST /mandates/terminate", WithJSONResponse(s.TerminateHandler))
	mux.HandleFunc("POST /mandates/anonymize", WithJSONResponse(s.AnonymizeHandler))

	return http.TimeoutHandler(mux, s.config.WriteTimeout, "Timeout")
}

func (s *Server) probes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", WithMethod(
		WithJSONResponse(s.HealthHandler),
		http.MethodGet,
	))

	mux.Handle("/ready", WithMethod(
		WithJSONResponse(s.ReadinessHandler),
		http.MethodGet,
	))

	return mux
}

func (s *Server) metrics() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) httpServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Start serves the API, the health probes and the metrics until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	servers := []struct {
		name string
		addr string
		srv  *http.Server
	}{
		{"api", fmt.Sprintf("%s:%d", s.config.ListenAddr, s.config.ListenPort), s.httpServer(s.Routes())},
		{"probes", fmt.Sprintf(":%d", s.config.ProbesPort), s.httpServer(s.probes())},
		{"metrics", fmt.Sprintf(":%d", s.config.MetricsPort), s.httpServer(s.metrics())},
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, server := range servers {
		g.Go(func() error {
			// Use ListenConfig to create a listener with context support
			var lc net.ListenConfig
			listener, err := lc.Listen(gctx, "tcp", server.addr)
			if err != nil {
				return fmt.Errorf("%s listener: %w", server.name, err)
			}

			s.log.Info("Starting server", "server", server.name, "addr", server.addr)

			if err := server.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", server.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		s.log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		for _, server := range servers {
			if err := server.srv.Shutdown(shutdownCtx); err != nil {
				s.log.Error("Server forced to shutdown", "server", server.name, "error", err)
			}
		}

		s.log.Info("Server exiting")
		return nil
	})

	return g.Wait()
}

// today is the current day at midnight in the installation time zone.
func (s *Server) today() time.Time {
	return helpers.Midnight(s.now(), s.config.Location)
}

func (s *Server) parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, s.config.Location)
}
