package server

import (
	"context"
	"sync"
	"time"

	"ZhaoYaoJing/internal/model"
)

// JobStatus 扫描任务的生命周期状态
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// ScanJob 一次异步扫描任务
type ScanJob struct {
	ID          string            `json:"id"`
	Domain      string            `json:"domain"`
	Profile     model.ScanProfile `json:"profile"`
	Status      JobStatus         `json:"status"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`

	cancel context.CancelFunc
}

// JobRegistry 进程内的任务登记表。
// 任务结果落库持久化，这里只维护运行状态，
// 已结束的任务超过保留期后由后台sweep清除
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*ScanJob
	ttl  time.Duration
	stop chan struct{}
}

func NewJobRegistry(ttl time.Duration) *JobRegistry {
	r := &JobRegistry{
		jobs: make(map[string]*ScanJob),
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go r.sweep()
	return r
}

func (r *JobRegistry) sweep() {
	ticker := time.NewTicker(r.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evict(time.Now())
		}
	}
}

// evict 清除保留期外的已结束任务，运行中的任务不受影响
func (r *JobRegistry) evict(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		if job.CompletedAt != nil && now.Sub(*job.CompletedAt) > r.ttl {
			delete(r.jobs, id)
		}
	}
}

func (r *JobRegistry) Close() {
	close(r.stop)
}

func (r *JobRegistry) Add(job *ScanJob, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.cancel = cancel
	r.jobs[job.ID] = job
}

// Get 返回任务的副本，调用方不能改动登记表内的状态
func (r *JobRegistry) Get(id string) (ScanJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return ScanJob{}, false
	}
	return *job, true
}

func (r *JobRegistry) SetStatus(id string, status JobStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	// 终态不再被覆盖，避免取消后worker误写failed
	if job.Status == JobCompleted || job.Status == JobFailed || job.Status == JobCancelled {
		return
	}
	job.Status = status
	job.Error = errMsg
	if status == JobCompleted || status == JobFailed || status == JobCancelled {
		now := time.Now()
		job.CompletedAt = &now
	}
}

// Cancel 取消运行中的任务，已结束的任务返回false
func (r *JobRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || (job.Status != JobQueued && job.Status != JobRunning) {
		return false
	}
	if job.cancel != nil {
		job.cancel()
	}
	job.Status = JobCancelled
	now := time.Now()
	job.CompletedAt = &now
	return true
}
