package backend

import (
	"context"
	"log/slog"
	"time"
)

// StatusSource — источник статусов задач (обычно *Client, в тестах — стаб).
type StatusSource interface {
	TaskStatus(ctx context.Context, taskID string) (TaskStatus, error)
}

// Poller опрашивает статус задачи с фиксированным интервалом и отдаёт
// терминальный результат колбэком. Останавливается на терминальном статусе
// или при отмене контекста — что наступит раньше; других таймаутов нет.
type Poller struct {
	log      *slog.Logger
	source   StatusSource
	interval time.Duration
}

func NewPoller(log *slog.Logger, source StatusSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{log: log, source: source, interval: interval}
}

// Watch блокируется до терминального статуса или отмены ctx.
// Ошибки отдельных опросов считаются транзиентными: логируем и ждём
// следующего тика.
func (p *Poller) Watch(ctx context.Context, taskID string, done func(TaskStatus)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug("status polling cancelled", "task_id", taskID)
			return
		case <-ticker.C:
			st, err := p.source.TaskStatus(ctx, taskID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn("status poll failed", "task_id", taskID, "err", err)
				continue
			}
			if st.Status.Terminal() {
				p.log.Info("task reached terminal status",
					"task_id", taskID,
					"status", st.Status,
				)
				done(st)
				return
			}
		}
	}
}

// WatchAsync запускает Watch в отдельной горутине.
func (p *Poller) WatchAsync(ctx context.Context, taskID string, done func(TaskStatus)) {
	go p.Watch(ctx, taskID, done)
}
