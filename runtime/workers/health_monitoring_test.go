package workers

import (
	"chat-relay/mocks"
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHealthMonitoringWorker_Reports_Until_Cancelled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	counter := mocks.NewMockSubscriberCounter(ctrl)

	reported := make(chan struct{}, 16)
	counter.EXPECT().SubscriberCount().DoAndReturn(func() int {
		select {
		case reported <- struct{}{}:
		default:
		}
		return 3
	}).MinTimes(1)

	monitoring := observability.NewMonitoringManager()
	monitoring.SessionOpened()
	worker := NewHealthMonitoringWorker(log, monitoring, counter, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Given at least one report was produced
	select {
	case <-reported:
	case <-time.After(time.Second):
		req.Fail("No health report produced")
	}

	// When the context is cancelled the worker exits cleanly
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("Worker did not stop")
	}
}
