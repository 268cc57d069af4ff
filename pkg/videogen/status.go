package videogen

import "fmt"

// IsTerminal reports whether a per-video status is terminal. Terminal
// videos are never resurrected; a fresh attempt creates a new result.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// CanTransition reports whether a per-video status transition is legal:
// queued -> in_progress -> {completed, failed}, with no way out of a
// terminal state. Staying in place is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusQueued:
		return to == StatusInProgress || to == StatusCompleted || to == StatusFailed
	case StatusInProgress:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// ApplyUpdate folds a fresh provider status into an existing video record,
// enforcing the state machine and monotonically non-decreasing progress
// while non-terminal. Selected is user-set and never overwritten here.
func ApplyUpdate(current *GeneratedVideo, update GeneratedVideo) error {
	if !CanTransition(current.Status, update.Status) {
		return fmt.Errorf("illegal status transition %s -> %s for video %s",
			current.Status, update.Status, current.ID)
	}
	if update.Progress < current.Progress && !IsTerminal(update.Status) {
		update.Progress = current.Progress
	}

	selected := current.Selected
	createdAt := current.CreatedAt
	*current = update
	current.Selected = selected
	if createdAt != "" {
		current.CreatedAt = createdAt
	}
	return nil
}

// DeriveSegmentStatus derives a segment's status from its results.
// Ordering is fixed: completed only when every result is completed;
// otherwise any failed result makes the segment failed; otherwise any
// queued/in_progress result makes it in_progress; else pending.
func DeriveSegmentStatus(results []GenerationResult) string {
	if len(results) == 0 {
		return AggregatePending
	}

	allCompleted := true
	anyFailed := false
	anyActive := false
	for _, r := range results {
		switch r.Video.Status {
		case StatusCompleted:
		case StatusFailed:
			anyFailed = true
			allCompleted = false
		case StatusQueued, StatusInProgress:
			anyActive = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}

	switch {
	case allCompleted:
		return AggregateCompleted
	case anyFailed:
		return AggregateFailed
	case anyActive:
		return AggregateInProgress
	default:
		return AggregatePending
	}
}

// DeriveOverallStatus derives the aggregate status from segment statuses,
// with the same fixed ordering as DeriveSegmentStatus.
func DeriveOverallStatus(segments []SegmentGeneration) string {
	if len(segments) == 0 {
		return AggregatePending
	}

	allCompleted := true
	anyFailed := false
	anyActive := false
	for _, s := range segments {
		switch s.Status {
		case AggregateCompleted:
		case AggregateFailed:
			anyFailed = true
			allCompleted = false
		case AggregateInProgress:
			anyActive = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}

	switch {
	case allCompleted:
		return AggregateCompleted
	case anyFailed:
		return AggregateFailed
	case anyActive:
		return AggregateInProgress
	default:
		return AggregatePending
	}
}

// Recalculate refreshes every segment status and the overall status of a
// generations document after its results changed.
func (g *VideoGenerations) Recalculate() {
	for i := range g.Segments {
		g.Segments[i].Status = DeriveSegmentStatus(g.Segments[i].GenerationResults)
	}
	g.Status = DeriveOverallStatus(g.Segments)
}

// FindResult locates a result by provider video id. Returns nil when the
// id is unknown to this document.
func (g *VideoGenerations) FindResult(videoID string) *GenerationResult {
	for i := range g.Segments {
		for j := range g.Segments[i].GenerationResults {
			if g.Segments[i].GenerationResults[j].Video.ID == videoID {
				return &g.Segments[i].GenerationResults[j]
			}
		}
	}
	return nil
}

// AppendResult adds a result to the given segment and refreshes statuses.
func (g *VideoGenerations) AppendResult(segmentIndex int, result GenerationResult) error {
	if segmentIndex < 0 || segmentIndex >= len(g.Segments) {
		return fmt.Errorf("segment index %d out of range (have %d segments)",
			segmentIndex, len(g.Segments))
	}
	g.Segments[segmentIndex].GenerationResults = append(
		g.Segments[segmentIndex].GenerationResults, result)
	g.Recalculate()
	return nil
}

// SelectVideo marks one video as selected within a segment and clears the
// flag on its siblings. Only completed videos can be selected.
func (g *VideoGenerations) SelectVideo(segmentIndex int, videoID string) (*GeneratedVideo, error) {
	if segmentIndex < 0 || segmentIndex >= len(g.Segments) {
		return nil, fmt.Errorf("segment index %d out of range (have %d segments)",
			segmentIndex, len(g.Segments))
	}

	// Locate and validate the target before touching any flags, so a
	// failed selection leaves the document untouched.
	results := g.Segments[segmentIndex].GenerationResults
	target := -1
	for i := range results {
		if results[i].Video.ID == videoID {
			target = i
			break
		}
	}
	if target == -1 {
		return nil, fmt.Errorf("video %s not found in segment %d", videoID, segmentIndex)
	}
	if results[target].Video.Status != StatusCompleted {
		return nil, fmt.Errorf("video %s is not completed (status: %s)",
			videoID, results[target].Video.Status)
	}

	for i := range results {
		results[i].Video.Selected = i == target
	}
	return &results[target].Video, nil
}
