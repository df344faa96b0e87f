package video

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/metrics"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/storage"
	"go.uber.org/zap"
)

// Finished jobs stay pollable for this long before eviction
const jobRetention = time.Hour

// Job is a queued video processing task
type Job struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	VideoID       string `json:"video_id"`
	TempFilePath  string `json:"-"`
	ThumbTempPath string `json:"-"` // user-supplied thumbnail, empty when none
	Filename      string `json:"filename"`

	Status       string     `json:"status"` // pending, processing, complete, failed
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Processor runs the upload pipeline: probe with ffprobe, extract a
// thumbnail, push both files to the media store, then flip the video row
// to complete. Jobs run on a bounded worker pool.
type Processor struct {
	jobs       chan *Job
	results    map[string]*Job
	resultsMux sync.RWMutex
	workers    int
	ctx        context.Context
	cancel     context.CancelFunc

	store  storage.MediaStore
	ffmpeg *FFmpegProcessor

	// Callback fired after processing finishes, success or failure
	// (search indexing, client notifications)
	callbackMux     sync.RWMutex
	onVideoComplete func(videoID string)

	// For testing: signals job completion
	jobCompleted chan string
}

// NewProcessor creates a video processing queue backed by the given media store
func NewProcessor(store storage.MediaStore) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4 // ffmpeg is CPU-heavy, cap concurrency
	}

	return &Processor{
		jobs:         make(chan *Job, 100),
		results:      make(map[string]*Job),
		workers:      workers,
		ctx:          ctx,
		cancel:       cancel,
		store:        store,
		ffmpeg:       NewFFmpegProcessor(),
		jobCompleted: make(chan string, 100),
	}
}

// SetVideoCompleteCallback sets a callback fired when processing finishes
func (p *Processor) SetVideoCompleteCallback(callback func(videoID string)) {
	p.callbackMux.Lock()
	defer p.callbackMux.Unlock()
	p.onVideoComplete = callback
}

// Start begins processing jobs with the worker pool
func (p *Processor) Start() {
	logger.Log.Info("Starting video processor", zap.Int("workers", p.workers))

	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}
	go p.evictLoop()
}

// evictLoop drops finished jobs from the results map once their retention
// window passes, so the map does not grow for the process lifetime
func (p *Processor) evictLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictFinishedJobs(time.Now())
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Processor) evictFinishedJobs(now time.Time) {
	p.resultsMux.Lock()
	defer p.resultsMux.Unlock()

	for id, job := range p.results {
		if job.CompletedAt != nil && now.Sub(*job.CompletedAt) > jobRetention {
			delete(p.results, id)
		}
	}
}

// Stop gracefully shuts down the queue
func (p *Processor) Stop() {
	p.cancel()
	close(p.jobs)
}

// SubmitJob queues a new video processing job
func (p *Processor) SubmitJob(userID, videoID, tempFilePath, thumbTempPath, filename string) (*Job, error) {
	job := &Job{
		ID:            uuid.New().String(),
		UserID:        userID,
		VideoID:       videoID,
		TempFilePath:  tempFilePath,
		ThumbTempPath: thumbTempPath,
		Filename:      filename,
		Status:        models.ProcessingPending,
		CreatedAt:     time.Now(),
	}

	p.resultsMux.Lock()
	p.results[job.ID] = job
	p.resultsMux.Unlock()

	select {
	case p.jobs <- job:
		return job, nil
	default:
		return nil, fmt.Errorf("video queue is full")
	}
}

// GetJobStatus returns the current status of a job
func (p *Processor) GetJobStatus(jobID string) (*Job, error) {
	p.resultsMux.RLock()
	defer p.resultsMux.RUnlock()

	job, exists := p.results[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found")
	}

	return job, nil
}

// WaitForJobCompletion waits for a specific job to complete (for testing)
func (p *Processor) WaitForJobCompletion(jobID string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case completedJobID := <-p.jobCompleted:
			if completedJobID == jobID {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for job %s", jobID)
		case <-p.ctx.Done():
			return fmt.Errorf("queue stopped")
		}
	}
}

// worker processes video jobs from the queue
func (p *Processor) worker(workerID int) {
	logger.Log.Info("Video worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case job := <-p.jobs:
			if job == nil {
				logger.Log.Info("Video worker shutting down", zap.Int("worker_id", workerID))
				return
			}

			p.processJob(workerID, job)

		case <-p.ctx.Done():
			logger.Log.Info("Video worker shutting down", zap.Int("worker_id", workerID))
			return
		}
	}
}

// processJob runs the full pipeline for a single upload
func (p *Processor) processJob(workerID int, job *Job) {
	logger.Log.Info("Worker processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("filename", job.Filename),
	)
	startTime := time.Now()

	p.updateJobStatus(job.ID, models.ProcessingActive, "")
	p.updateVideoStatus(job.VideoID, models.ProcessingActive, "")

	defer os.Remove(job.TempFilePath)
	if job.ThumbTempPath != "" {
		defer os.Remove(job.ThumbTempPath)
	}

	// 5 minutes covers probe + thumbnail + upload for short clips
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Minute)
	defer cancel()

	// 1. Probe the file
	info, err := p.ffmpeg.Probe(ctx, job.TempFilePath)
	if err != nil {
		p.failJob(workerID, job, "probe", fmt.Sprintf("ffprobe failed: %v", err))
		return
	}

	// 2. Thumbnail: user-supplied wins, otherwise extract a frame at 10%
	thumbPath := job.ThumbTempPath
	if thumbPath == "" {
		offset := info.Duration * 0.1
		extracted, err := p.ffmpeg.ExtractThumbnail(ctx, job.TempFilePath, offset)
		if err != nil {
			p.failJob(workerID, job, "thumbnail", fmt.Sprintf("thumbnail extraction failed: %v", err))
			return
		}
		defer os.Remove(extracted)
		thumbPath = extracted
	}

	// 3. Upload the video file
	videoFile, err := os.Open(job.TempFilePath)
	if err != nil {
		p.failJob(workerID, job, "upload", fmt.Sprintf("failed to open temp file: %v", err))
		return
	}
	stat, err := videoFile.Stat()
	if err != nil {
		videoFile.Close()
		p.failJob(workerID, job, "upload", fmt.Sprintf("failed to stat temp file: %v", err))
		return
	}
	videoResult, err := p.store.UploadVideo(ctx, videoFile, stat.Size(), job.UserID, job.Filename)
	videoFile.Close()
	if err != nil {
		p.failJob(workerID, job, "upload", fmt.Sprintf("video upload failed: %v", err))
		return
	}

	// 4. Upload the thumbnail
	thumbData, err := os.ReadFile(thumbPath)
	if err != nil {
		p.failJob(workerID, job, "upload", fmt.Sprintf("failed to read thumbnail: %v", err))
		return
	}
	thumbResult, err := p.store.UploadThumbnail(ctx, thumbData, videoResult.Key)
	if err != nil {
		p.failJob(workerID, job, "upload", fmt.Sprintf("thumbnail upload failed: %v", err))
		return
	}

	// 5. Flip the video row to complete
	err = database.DB.Model(&models.Video{}).Where("id = ?", job.VideoID).Updates(map[string]interface{}{
		"processing_status": models.ProcessingComplete,
		"processing_error":  "",
		"video_url":         videoResult.URL,
		"thumbnail_url":     thumbResult.URL,
		"storage_key":       videoResult.Key,
		"thumbnail_key":     thumbResult.Key,
		"file_size":         videoResult.Size,
		"duration":          info.Duration,
		"width":             info.Width,
		"height":            info.Height,
		"codec":             info.Codec,
	}).Error
	if err != nil {
		p.failJob(workerID, job, "database", fmt.Sprintf("database update failed: %v", err))
		return
	}

	p.updateJobStatus(job.ID, models.ProcessingComplete, "")

	elapsed := time.Since(startTime)
	metrics.RecordVideoProcessed("complete", elapsed)
	logger.Log.Info("Worker completed job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.Duration("elapsed", elapsed),
		zap.Float64("duration", info.Duration),
		zap.String("codec", info.Codec),
	)

	p.fireCallback(job.VideoID)
	p.signalCompletion(job.ID)
}

// fireCallback invokes the completion callback, if set, on its own goroutine
func (p *Processor) fireCallback(videoID string) {
	p.callbackMux.RLock()
	callback := p.onVideoComplete
	p.callbackMux.RUnlock()
	if callback != nil {
		go callback(videoID)
	}
}

// failJob records a failed processing stage on both the job and the video row
func (p *Processor) failJob(workerID int, job *Job, stage, errMsg string) {
	logger.Log.Error("Worker job failed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("stage", stage),
		zap.String("error", errMsg),
	)
	metrics.RecordVideoProcessingFailure(stage)
	metrics.RecordVideoProcessed("failed", time.Since(job.CreatedAt))
	p.updateJobStatus(job.ID, models.ProcessingFailed, errMsg)
	p.updateVideoStatus(job.VideoID, models.ProcessingFailed, errMsg)
	// Failures fire the callback too so clients hear about them
	p.fireCallback(job.VideoID)
	p.signalCompletion(job.ID)
}

// updateJobStatus updates the in-memory job record
func (p *Processor) updateJobStatus(jobID, status, errorMessage string) {
	p.resultsMux.Lock()
	defer p.resultsMux.Unlock()

	job, exists := p.results[jobID]
	if !exists {
		return
	}

	job.Status = status
	job.ErrorMessage = errorMessage
	if status == models.ProcessingComplete || status == models.ProcessingFailed {
		now := time.Now()
		job.CompletedAt = &now
	}
}

// updateVideoStatus updates the video row's processing status
func (p *Processor) updateVideoStatus(videoID, status, errorMessage string) {
	err := database.DB.Model(&models.Video{}).Where("id = ?", videoID).Updates(map[string]interface{}{
		"processing_status": status,
		"processing_error":  errorMessage,
	}).Error
	if err != nil {
		logger.Log.Error("Failed to update video status",
			zap.String("video_id", videoID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

// signalCompletion notifies test waiters that a job finished
func (p *Processor) signalCompletion(jobID string) {
	select {
	case p.jobCompleted <- jobID:
	default:
	}
}
