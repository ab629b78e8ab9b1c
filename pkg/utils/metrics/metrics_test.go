package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/hivemind-lab/hivemind/pkg/utils/metrics"
)

func TestSnapshot(t *testing.T) {
	tracker := metrics.New()
	tracker.RecordExecution("web_scout", 100*time.Millisecond, true)
	tracker.RecordExecution("web_scout", 300*time.Millisecond, false)
	tracker.RecordMission(time.Second, true)
	tracker.RecordMission(2*time.Second, false)

	snapshot := tracker.Snapshot()

	system := snapshot["system"].(map[string]any)
	gt.Equal(t, system["total_missions"], 2)
	gt.Equal(t, system["successful_missions"], 1)
	gt.Equal(t, system["failed_missions"], 1)
	gt.Equal(t, system["avg_response_time_ms"].(float64), 1500.0)

	agents := snapshot["agents"].(map[string]any)
	scout := agents["web_scout"].(map[string]any)
	gt.Equal(t, scout["executions"], 2)
	gt.Equal(t, scout["failures"], 1)
	gt.Equal(t, scout["avg_duration_ms"].(float64), 200.0)
}

func TestConcurrentRecording(t *testing.T) {
	tracker := metrics.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.RecordExecution("agent", time.Millisecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()

	agents := tracker.Snapshot()["agents"].(map[string]any)
	stats := agents["agent"].(map[string]any)
	gt.Equal(t, stats["executions"], 800)
	gt.Equal(t, stats["failures"], 400)
}
