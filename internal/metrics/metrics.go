// Package metrics exposes the bot's Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives engine and scheduler events.
type Recorder interface {
	ReminderSent()
	UpdateReplyPosted()
	WarningSent(recipients int)
	WarningFailed()
	BackupSent()
	ScheduledTaskRun(name string, d time.Duration, err error)
}

// NoOp discards every event.
type NoOp struct{}

func (NoOp) ReminderSent()                                 {}
func (NoOp) UpdateReplyPosted()                            {}
func (NoOp) WarningSent(int)                               {}
func (NoOp) WarningFailed()                                {}
func (NoOp) BackupSent()                                   {}
func (NoOp) ScheduledTaskRun(string, time.Duration, error) {}

// OrNoOp returns r, or NoOp when r is nil.
func OrNoOp(r Recorder) Recorder {
	if r == nil {
		return NoOp{}
	}
	return r
}

type PromMetrics struct {
	remindersSent  prometheus.Counter
	updateReplies  prometheus.Counter
	warningsSent   prometheus.Counter
	warningsFailed prometheus.Counter
	backupsSent    prometheus.Counter
	taskRuns       *prometheus.CounterVec
	taskFailures   *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_reminders_sent_total",
			Help: "Number of daily reminders posted",
		}),
		updateReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_update_replies_total",
			Help: "Number of update-replies posted to stale reminders",
		}),
		warningsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_warnings_sent_total",
			Help: "Number of deadline warnings delivered by direct message",
		}),
		warningsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_warnings_failed_total",
			Help: "Number of deadline warnings that could not be delivered",
		}),
		backupsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_backups_sent_total",
			Help: "Number of state backups posted to the log channel",
		}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskbot_scheduled_task_runs_total",
			Help: "Number of scheduled task runs",
		}, []string{"task"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskbot_scheduled_task_failures_total",
			Help: "Number of scheduled task runs that failed after retries",
		}, []string{"task"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskbot_scheduled_task_duration_seconds",
			Help:    "Duration of scheduled task runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
	reg.MustRegister(m.remindersSent, m.updateReplies, m.warningsSent, m.warningsFailed,
		m.backupsSent, m.taskRuns, m.taskFailures, m.taskDuration)
	return m
}

func (m *PromMetrics) ReminderSent() {
	m.remindersSent.Inc()
}

func (m *PromMetrics) UpdateReplyPosted() {
	m.updateReplies.Inc()
}

func (m *PromMetrics) WarningSent(recipients int) {
	m.warningsSent.Add(float64(recipients))
}

func (m *PromMetrics) WarningFailed() {
	m.warningsFailed.Inc()
}

func (m *PromMetrics) BackupSent() {
	m.backupsSent.Inc()
}

func (m *PromMetrics) ScheduledTaskRun(name string, d time.Duration, err error) {
	m.taskRuns.WithLabelValues(name).Inc()
	m.taskDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.taskFailures.WithLabelValues(name).Inc()
	}
}

// Serve exposes the registry on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down metrics endpoint", "error", err)
		}
		return nil
	}
}
