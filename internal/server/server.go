package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ZhaoYaoJing/internal/compare"
	"ZhaoYaoJing/internal/config"
	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/scanner"
	"ZhaoYaoJing/internal/store"
	"ZhaoYaoJing/internal/utils"
)

var domainPattern = regexp.MustCompile(`^(?i)(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// Server 扫描服务的HTTP入口，任务异步执行，结果落库
type Server struct {
	cfg          *config.Config
	orchestrator *scanner.Orchestrator
	store        store.ScanStore
	jobs         *JobRegistry
	limiter      Limiter
	engine       *gin.Engine
	logger       *utils.Logger
}

func New(cfg *config.Config, orchestrator *scanner.Orchestrator, scanStore store.ScanStore) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        scanStore,
		jobs:         NewJobRegistry(cfg.JobTTL),
		limiter:      NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		engine:       gin.New(),
		logger:       utils.NewLogger("server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	scan := s.engine.Group("/scan")
	{
		scan.POST("/start", s.rateLimit, s.handleStart)
		scan.GET("/status/:id", s.handleStatus)
		scan.GET("/result/:id", s.handleResult)
		scan.POST("/stop/:id", s.handleStop)
		scan.GET("/compare/:id", s.handleCompare)
	}
}

// Run 阻塞运行HTTP服务
func (s *Server) Run() error {
	s.logger.Info("扫描服务监听: %s", s.cfg.ServerAddr)
	return s.engine.Run(s.cfg.ServerAddr)
}

// Handler 暴露底层handler，测试时配合httptest使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close 释放后台资源
func (s *Server) Close() {
	s.limiter.Close()
	s.jobs.Close()
}

// rateLimit 按客户端IP限流
func (s *Server) rateLimit(c *gin.Context) {
	key := c.ClientIP()
	if !s.limiter.Allow(key) {
		s.logger.Warn("客户端触发限流: %s", key)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded, try again later",
		})
		return
	}
	c.Next()
}

type startRequest struct {
	Domain  string `json:"domain" binding:"required"`
	Profile string `json:"profile"`
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain is required"})
		return
	}

	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if !validTarget(domain) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain: " + req.Domain})
		return
	}

	profile := model.ScanProfile(req.Profile)
	if profile == "" {
		profile = model.ProfileQuick
	}
	if profile != model.ProfileQuick && profile != model.ProfileDeep {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile must be quick or deep"})
		return
	}

	job := &ScanJob{
		ID:        uuid.NewString(),
		Domain:    domain,
		Profile:   profile,
		Status:    JobQueued,
		StartedAt: time.Now(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.jobs.Add(job, cancel)

	go s.runJob(ctx, job.ID, domain, profile)

	c.JSON(http.StatusAccepted, gin.H{
		"scan_id": job.ID,
		"status":  job.Status,
	})
}

// runJob 后台执行扫描并落库
func (s *Server) runJob(ctx context.Context, jobID, domain string, profile model.ScanProfile) {
	defer func() {
		if job, ok := s.jobs.Get(jobID); ok && job.cancel != nil {
			job.cancel()
		}
	}()

	s.jobs.SetStatus(jobID, JobRunning, "")

	result, err := s.orchestrator.RunScan(ctx, domain, profile)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.jobs.SetStatus(jobID, JobCancelled, "")
		} else {
			s.logger.Error("扫描任务失败 %s: %v", jobID, err)
			s.jobs.SetStatus(jobID, JobFailed, err.Error())
		}
		return
	}

	record := &store.ScanRecord{
		ID:        jobID,
		Domain:    domain,
		Profile:   profile,
		CreatedAt: time.Now(),
		Result:    result,
	}
	if err := s.store.Save(context.Background(), record); err != nil {
		s.logger.Error("保存扫描结果失败 %s: %v", jobID, err)
		s.jobs.SetStatus(jobID, JobFailed, err.Error())
		return
	}
	s.jobs.SetStatus(jobID, JobCompleted, "")
}

func (s *Server) handleStatus(c *gin.Context) {
	job, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleResult(c *gin.Context) {
	id := c.Param("id")

	if job, ok := s.jobs.Get(id); ok && job.Status != JobCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "scan not completed",
			"status": job.Status,
		})
		return
	}

	record, err := s.store.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleStop(c *gin.Context) {
	id := c.Param("id")
	if !s.jobs.Cancel(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "scan is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan_id": id, "status": JobCancelled})
}

// handleCompare 将指定扫描与同域名的上一次扫描做差分
func (s *Server) handleCompare(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	current, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	history, err := s.store.History(ctx, current.Domain, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var previous *store.ScanRecord
	for _, record := range history {
		if record.ID != current.ID && record.CreatedAt.Before(current.CreatedAt) {
			previous = record
			break
		}
	}
	if previous == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no previous scan to compare against"})
		return
	}

	comparison := compare.CompareScans(previous.Result, current.Result)
	c.JSON(http.StatusOK, gin.H{
		"current_scan":  current.ID,
		"previous_scan": previous.ID,
		"comparison":    comparison,
		"summary_text":  compare.GenerateComparisonSummary(comparison),
	})
}

// validTarget 域名或IP字面量
func validTarget(target string) bool {
	if net.ParseIP(target) != nil {
		return true
	}
	return domainPattern.MatchString(target)
}
