package framelatency

// CalculateDropRate returns the share of sorted frames that were dropped
// (0.0 to 1.0). Returns 0.0 if no frames have been sorted.
func CalculateDropRate(stats SorterStats) float64 {
	if stats.TotalFrames == 0 {
		return 0.0
	}
	return float64(stats.DroppedFrames) / float64(stats.TotalFrames)
}

// CalculateSmoothnessDropRate returns the share of sorted frames dropped
// while a smoothness-affecting animation was running.
func CalculateSmoothnessDropRate(stats SorterStats) float64 {
	if stats.TotalFrames == 0 {
		return 0.0
	}
	return float64(stats.DroppedAffectingSmoothness) / float64(stats.TotalFrames)
}

// CalculatePresentRate returns the share of finalized reporters the
// controller saw presented.
func CalculatePresentRate(stats ControllerStats) float64 {
	total := stats.FramesPresented + stats.FramesNotPresented
	if total == 0 {
		return 0.0
	}
	return float64(stats.FramesPresented) / float64(total)
}
