package main

import (
	"fmt"
	"sort"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/publish"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/samplebus"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/ukm"
)

// stageHistograms are the top-level stage histograms shown in the summary.
var stageHistograms = []string{
	"BeginImplFrameToSendBeginMainFrame",
	"SendBeginMainFrameToCommit",
	"Commit",
	"EndCommitToActivation",
	"Activation",
	"EndActivateToSubmitCompositorFrame",
	"SubmitCompositorFrameToPresentationCompositorFrame",
	"TotalLatency",
}

// printFinalStats prints final statistics after the replay
func printFinalStats(
	sc *Scenario,
	steps int,
	stats framelatency.Stats,
	rec *sink.Recorder,
	busStats samplebus.BusStats,
	publisher *publish.MQTTPublisher,
	records *ukm.Writer,
) {
	cs := stats.Controller
	ss := stats.Sorter

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Replay: %s (%d steps)\n", sc.Name, steps)
	fmt.Println("═══════════════════════════════════════════════════════════════")

	// Controller stats
	fmt.Printf("  Frames Started:        %d\n", cs.FramesStarted)
	fmt.Printf("  Frames Submitted:      %d\n", cs.FramesSubmitted)
	fmt.Printf("  Frames Presented:      %d (%.1f%%)\n",
		cs.FramesPresented,
		framelatency.CalculatePresentRate(cs)*100.0)
	fmt.Printf("  Frames Not Presented:  %d\n", cs.FramesNotPresented)
	fmt.Printf("  Frames Backfilled:     %d\n", cs.FramesBackfilled)
	fmt.Printf("  Reporters Finalized:   %d\n", cs.FramesFinalized)

	// Sorter stats
	fmt.Println()
	fmt.Printf("  Sorted Frames:         %d\n", ss.TotalFrames)
	fmt.Printf("  Dropped Frames:        %d (%.1f%%)\n",
		ss.DroppedFrames,
		framelatency.CalculateDropRate(ss)*100.0)
	fmt.Printf("  Smoothness Drops:      %d (%.1f%%)\n",
		ss.DroppedAffectingSmoothness,
		framelatency.CalculateSmoothnessDropRate(ss)*100.0)
	fmt.Printf("  Partial Frames:        %d\n", ss.PartialFrames)
	fmt.Printf("  No-Update Frames:      %d\n", ss.NoUpdateFrames)
	if ss.PresentedFrames > 0 {
		fmt.Printf("  Latency (ms):          mean=%.2f p95=%.2f max=%.2f\n",
			ss.LatencyMeanMS, ss.LatencyP95MS, ss.LatencyMaxMS)
	}

	// Stage histograms
	fmt.Println()
	fmt.Println("  Stage Histograms:")
	for _, stage := range stageHistograms {
		name := "CompositorLatency2." + stage
		samples := rec.Samples(name)
		if len(samples) == 0 {
			continue
		}
		fmt.Printf("    %-52s n=%-4d median=%dus dropped=%d\n",
			stage,
			len(samples),
			median(samples),
			rec.DroppedCount("CompositorLatency2.DroppedFrame."+stage))
	}
	if n := rec.TotalCount("EventLatency."); n > 0 {
		fmt.Printf("    %-52s n=%d\n", "EventLatency.*", n)
	}

	// Outputs
	fmt.Println()
	fmt.Printf("  Samples Published:     %d (%.1f%% dropped)\n",
		busStats.TotalPublished,
		busStats.DropRate()*100.0)
	if publisher != nil {
		ps := publisher.Stats()
		var sent uint64
		for _, n := range ps.Published {
			sent += n
		}
		fmt.Printf("  MQTT Published:        %d (errors=%d, connected=%v)\n", sent, ps.Errors, ps.Connected)
	}
	if records != nil {
		fmt.Printf("  UKM Records:           %d (failed=%d)\n", records.Written(), records.Failed())
	}

	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}

// median returns the median sample
func median(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}
