package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/votechain/internal/config"
	ledgerdomain "github.com/smallbiznis/votechain/internal/ledger/domain"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	voteSvc       voteintentdomain.Service
	settlementSvc settlementdomain.Service
	tenantSvc     tenantdomain.Service
	ledgerClient  ledgerdomain.Client
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	VoteSvc       voteintentdomain.Service
	SettlementSvc settlementdomain.Service
	TenantSvc     tenantdomain.Service
	LedgerClient  ledgerdomain.Client
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		voteSvc:       p.VoteSvc,
		settlementSvc: p.SettlementSvc,
		tenantSvc:     p.TenantSvc,
		ledgerClient:  p.LedgerClient,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(BusinessContext())

	votes := v1.Group("/votes")
	{
		votes.POST("", s.SubmitVote)
		votes.GET("", s.ListVotes)
		votes.GET("/stats", s.VoteStats)
		votes.POST("/validate", s.ValidateVotes)
		votes.GET("/:vote_id", s.GetVote)
		votes.DELETE("/:vote_id", s.DeleteVote)
	}

	batches := v1.Group("/batches")
	{
		batches.POST("", s.ProcessBatch)
		batches.GET("", s.ListBatches)
		batches.GET("/status", s.BatchStatus)
		batches.GET("/estimate", s.EstimateSavings)
		batches.POST("/auto", s.AutoProcess)
	}

	v1.GET("/policy", s.GetPolicy)
	v1.PATCH("/policy", s.UpdatePolicy)

	v1.POST("/contract/deploy", s.DeployContract)
	v1.POST("/rounds", s.CreateRound)
	v1.GET("/events/rounds", s.RoundEvents)
	v1.GET("/events/votes", s.VoteEvents)
}
