// Package api exposes the pipeline over HTTP and runs it on a cron schedule.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"shortsbot/pipeline"
	"shortsbot/queue"
	"shortsbot/types"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

// Runner is the pipeline surface the server drives
type Runner interface {
	Run(ctx context.Context, mode pipeline.Mode, topic *types.Topic) (*types.RunResult, error)
	RunBatch(ctx context.Context, mode pipeline.Mode, items []queue.BatchItem) ([]*types.RunResult, error)
}

// Server is the HTTP API plus the scheduled trigger
type Server struct {
	runner     Runner
	tracker    *Tracker
	httpServer *http.Server
	cron       *cron.Cron
	mu         sync.Mutex
	// wg tracks background runs so Shutdown can wait for them
	wg sync.WaitGroup
	// runCtx outlives individual requests; cancelled on shutdown
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewServer creates the server listening on port
func NewServer(runner Runner, port string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:    runner,
		tracker:   NewTracker(),
		cron:      cron.New(),
		runCtx:    ctx,
		cancelRun: cancel,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Tracker exposes the run state
func (s *Server) Tracker() *Tracker { return s.tracker }

// Router constructs the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := r.Group("/api")
	g.GET("/health", handleHealth)
	g.GET("/status", s.handleStatus)
	g.POST("/run", s.handleRun)
	g.POST("/batch", s.handleBatch)
	return r
}

// RunRequest is the body of POST /api/run; every field is optional
type RunRequest struct {
	Mode     string `json:"mode"`
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

// BatchRequest is the body of POST /api/batch
type BatchRequest struct {
	Mode  string            `json:"mode"`
	Items []queue.BatchItem `json:"items" binding:"required,min=1"`
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Status())
}

// handleRun starts one run in the background
func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var topic *types.Topic
	if req.Topic != "" {
		lang, err := types.ParseLanguage(req.Language)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if topic, err = types.NewTopic(req.Topic, lang, "api"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if !s.tracker.TryStart("api") {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run already in progress (state=%s)", s.tracker.State())})
		return
	}
	s.background(func(ctx context.Context) {
		s.tracker.Finish(s.runner.Run(ctx, mode, topic))
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "mode": mode})
}

// handleBatch starts a batch in the background
func (s *Server) handleBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := queue.NewStaticSource(req.Items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.tracker.TryStart("batch") {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run already in progress (state=%s)", s.tracker.State())})
		return
	}
	s.background(func(ctx context.Context) {
		s.tracker.FinishBatch(s.runner.RunBatch(ctx, mode, req.Items))
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "items": len(req.Items)})
}

func (s *Server) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.runCtx)
	}()
}

// StartCron schedules queue runs; a tick that finds a run in progress is skipped
func (s *Server) StartCron(schedule string, mode pipeline.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cron.AddFunc(schedule, func() { s.cronTick(mode) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()
	log.Printf("Cron job started with schedule: %s", schedule)
	return nil
}

func (s *Server) cronTick(mode pipeline.Mode) {
	if !s.tracker.TryStart("cron") {
		log.Printf("Cron skipped: run in progress (state=%s)", s.tracker.State())
		return
	}
	log.Println("Cron triggered: starting scheduled run")
	s.wg.Add(1)
	defer s.wg.Done()
	s.tracker.Finish(s.runner.Run(s.runCtx, mode, nil))
}

// ListenAndServe blocks serving HTTP until Shutdown
func (s *Server) ListenAndServe() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the scheduler and HTTP server, then waits for in-flight runs until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	<-s.cron.Stop().Done()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancelRun()
		log.Println("⚠️  Cancelled in-flight run")
	}
	return err
}
