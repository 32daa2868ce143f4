package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/hlscene/internal/domain/highlights"
	"github.com/forPelevin/hlscene/internal/jobs"
	"github.com/forPelevin/hlscene/internal/storage"
	"github.com/forPelevin/hlscene/internal/usecase"
	"github.com/forPelevin/hlscene/internal/worker"
)

// ErrNotReady is returned for results of jobs that have not completed.
var ErrNotReady = errors.New("job not complete")

type Processor interface {
	Run(ctx context.Context, in usecase.Input) (usecase.Result, error)
}

type Submitter interface {
	Submit(id string, fn worker.Func) error
	Pending() int
}

type Deps struct {
	Store     jobs.Store
	Runner    Submitter
	Storage   *storage.LocalStorage
	Processor Processor
	CacheDir  string
	Log       zerolog.Logger
}

// Service owns the job lifecycle behind the HTTP API: queued, processing,
// then complete or failed.
type Service struct {
	d   Deps
	now func() time.Time
}

func New(d Deps) *Service {
	if d.CacheDir == "" {
		d.CacheDir = ".cache"
	}
	return &Service{d: d, now: time.Now}
}

// Submit stores the upload, records a queued job and hands it to the runner.
func (s *Service) Submit(r io.Reader, filename string, p jobs.Params) (jobs.Job, error) {
	sel := highlights.SelectConfig{TargetCount: p.NumHighlights, MinDuration: p.MinDuration, MaxDuration: p.MaxDuration}
	if err := sel.ValidateBounds(); err != nil {
		return jobs.Job{}, err
	}
	path, err := s.d.Storage.SaveUpload(r, filename)
	if err != nil {
		return jobs.Job{}, err
	}
	job, err := s.d.Store.Create(filepath.Base(filename), path, p)
	if err != nil {
		_ = os.Remove(path)
		return jobs.Job{}, err
	}

	id := job.ID
	if err := s.d.Runner.Submit(id, func(ctx context.Context) error { return s.process(ctx, id) }); err != nil {
		_ = s.d.Store.Delete(id)
		_ = s.d.Storage.RemoveJob(id, path)
		return jobs.Job{}, fmt.Errorf("enqueue: %w", err)
	}
	s.d.Log.Info().Str("job_id", id).Str("file", job.OriginalName).Msg("job queued")
	return job, nil
}

func (s *Service) process(ctx context.Context, id string) (err error) {
	// a panicking run must still leave the job finished so cleanup can reach it
	defer func() {
		if p := recover(); p != nil {
			err = s.fail(id, fmt.Errorf("panic: %v", p))
		}
	}()

	job, err := s.d.Store.Update(id, func(j *jobs.Job) {
		j.Status = jobs.StatusProcessing
		j.Progress = 0
	})
	if err != nil {
		return err
	}

	outDir, err := s.d.Storage.JobDir(id)
	if err != nil {
		return s.fail(id, err)
	}
	res, err := s.d.Processor.Run(ctx, usecase.Input{
		JobID:        id,
		InputVideo:   job.InputPath,
		OriginalName: job.OriginalName,
		ClipsN:       job.Params.NumHighlights,
		MinClip:      job.Params.MinDuration,
		MaxClip:      job.Params.MaxDuration,
		CacheDir:     filepath.Join(s.d.CacheDir, "jobs", id),
		OutDir:       outDir,
		Progress:     func(p int) { s.progress(id, p) },
	})
	if err != nil {
		return s.fail(id, err)
	}

	md := res.Metadata
	_, err = s.d.Store.Update(id, func(j *jobs.Job) {
		j.Status = jobs.StatusComplete
		j.Progress = 100
		j.Metadata = &md
		j.Files = res.Files
	})
	return err
}

// progress never moves backwards; clip workers may report out of order.
func (s *Service) progress(id string, p int) {
	_, _ = s.d.Store.Update(id, func(j *jobs.Job) {
		if p > j.Progress {
			j.Progress = p
		}
	})
}

func (s *Service) fail(id string, cause error) error {
	_, _ = s.d.Store.Update(id, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.Error = cause.Error()
	})
	return cause
}

func (s *Service) Get(id string) (jobs.Job, error) {
	return s.d.Store.Get(id)
}

// Result returns a completed job; ErrNotReady while it is still running or
// after it failed.
func (s *Service) Result(id string) (jobs.Job, error) {
	j, err := s.d.Store.Get(id)
	if err != nil {
		return jobs.Job{}, err
	}
	if j.Status != jobs.StatusComplete {
		return j, ErrNotReady
	}
	return j, nil
}

// Open opens an artifact of a completed job.
func (s *Service) Open(id, name string) (*os.File, error) {
	if _, err := s.Result(id); err != nil {
		return nil, err
	}
	return s.d.Storage.Open(id, name)
}

// Transcript opens the transcript of a job, if one was written.
func (s *Service) Transcript(id string) (*os.File, error) {
	if _, err := s.d.Store.Get(id); err != nil {
		return nil, err
	}
	return s.d.Storage.Open(id, usecase.TranscriptFile)
}

func (s *Service) Count() int { return len(s.d.Store.List()) }

// QueueDepth is the number of jobs waiting for a free worker.
func (s *Service) QueueDepth() int { return s.d.Runner.Pending() }

// Cleanup removes jobs older than maxAge together with their files and
// returns the ids removed. Jobs still running are left alone.
func (s *Service) Cleanup(maxAge time.Duration) ([]string, error) {
	var (
		removed []string
		errs    []error
	)
	for _, j := range jobs.OlderThan(s.d.Store, s.now().Add(-maxAge)) {
		if !j.Finished() {
			continue
		}
		if err := s.d.Storage.RemoveJob(j.ID, j.InputPath); err != nil {
			errs = append(errs, err)
			continue
		}
		_ = os.RemoveAll(filepath.Join(s.d.CacheDir, "jobs", j.ID))
		if err := s.d.Store.Delete(j.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, j.ID)
	}
	s.d.Log.Info().Int("removed", len(removed)).Dur("max_age", maxAge).Msg("cleanup done")
	return removed, errors.Join(errs...)
}
