package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrJobQueueIsFull = errors.New("очередь заданий заполнена")
	ErrJobQueueClosed = errors.New("очередь заданий закрыта")
)

// Job это задание очереди. Контекст отменяется при остановке очереди.
type Job func(ctx context.Context)

// JobQueueService запускает пул воркеров для исходящих вызовов маркетплейса, которые не должны
// блокировать HTTP-обработчики. Очередь можно приостановить, когда маркетплейс отвечает 429.
type JobQueueService struct {
	jobs    chan Job
	paused  atomic.Bool
	closing atomic.Bool
	wg      sync.WaitGroup

	mu     sync.Mutex
	resume chan struct{}
}

// NewJobQueueService запускает workers воркеров над очередью ёмкостью capacity.
func NewJobQueueService(ctx context.Context, capacity, workers int) *JobQueueService {
	service := &JobQueueService{
		jobs:   make(chan Job, capacity),
		resume: make(chan struct{}),
	}
	service.start(ctx, workers)

	return service
}

func (jqs *JobQueueService) start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		jqs.wg.Add(1)

		go func() {
			defer jqs.wg.Done()

			for {
				select {
				case job, ok := <-jqs.jobs:
					if !ok {
						return
					}

					if !jqs.waitResume(ctx) {
						return
					}

					job(ctx)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// waitResume блокирует воркер, пока очередь на паузе. Возвращает false, если контекст отменён.
func (jqs *JobQueueService) waitResume(ctx context.Context) bool {
	if !jqs.paused.Load() {
		return true
	}

	jqs.mu.Lock()
	resume := jqs.resume
	jqs.mu.Unlock()

	// Пауза могла закончиться, пока мы брали канал
	if !jqs.paused.Load() {
		return true
	}

	select {
	case <-resume:
		return true
	case <-ctx.Done():
		return false
	}
}

// Enqueue ставит задание в очередь без блокировки.
func (jqs *JobQueueService) Enqueue(job Job) error {
	jqs.mu.Lock()
	defer jqs.mu.Unlock()

	if jqs.closing.Load() {
		return ErrJobQueueClosed
	}

	select {
	case jqs.jobs <- job:
		return nil
	default:
		return ErrJobQueueIsFull
	}
}

// ScheduleJob ставит задание в очередь через delay.
func (jqs *JobQueueService) ScheduleJob(job Job, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := jqs.Enqueue(job); err != nil {
			logger.Log.Error("failed to schedule job", zap.Duration("delay", delay), zap.Error(err))
		}
	})
}

func (jqs *JobQueueService) Pause() {
	jqs.paused.Store(true)
}

func (jqs *JobQueueService) Resume() {
	jqs.mu.Lock()
	defer jqs.mu.Unlock()

	if jqs.paused.CompareAndSwap(true, false) {
		// Закрытие канала отпускает всех ждущих воркеров
		close(jqs.resume)
		jqs.resume = make(chan struct{})
	}
}

// PauseAndResume приостанавливает выполнение заданий на delay.
func (jqs *JobQueueService) PauseAndResume(delay time.Duration) {
	jqs.Pause()
	time.AfterFunc(delay, jqs.Resume)
}

// Shutdown закрывает очередь и ждёт завершения воркеров. Повторный вызов ничего не делает.
func (jqs *JobQueueService) Shutdown() {
	jqs.mu.Lock()
	if !jqs.closing.CompareAndSwap(false, true) {
		jqs.mu.Unlock()
		return
	}
	close(jqs.jobs)
	jqs.mu.Unlock()

	jqs.Resume()
	jqs.wg.Wait()
}
