package domain

import (
	"context"
	"fmt"
)

// minStackSize is the smallest sample the t-test is defined for.
const minStackSize = 2

// ExtractStacks retrieves the baseline and assessment image stacks for an
// analysis. It validates the window pair, fetches both stacks, filters out
// scenes that do not fully cover the AOI, and fails with
// InsufficientDataError when either surviving stack holds fewer than 2
// scenes.
func ExtractStacks(ctx context.Context, fetcher SceneFetcher, aoi AreaOfInterest, baseline, assessment DateWindow, polarization string) (*ImageStack, *ImageStack, error) {
	if err := ValidateWindows(baseline, assessment); err != nil {
		return nil, nil, err
	}

	base, err := extractStack(ctx, fetcher, aoi, baseline, polarization)
	if err != nil {
		return nil, nil, fmt.Errorf("baseline: %w", err)
	}
	assess, err := extractStack(ctx, fetcher, aoi, assessment, polarization)
	if err != nil {
		return nil, nil, fmt.Errorf("assessment: %w", err)
	}

	if err := alignGrids(base.Grid, assess.Grid); err != nil {
		return nil, nil, err
	}
	return base, assess, nil
}

func extractStack(ctx context.Context, fetcher SceneFetcher, aoi AreaOfInterest, window DateWindow, polarization string) (*ImageStack, error) {
	scenes, err := fetcher.Scenes(ctx, aoi, window, polarization)
	if err != nil {
		return nil, err
	}

	kept := make([]Scene, 0, len(scenes))
	for _, s := range scenes {
		if !window.Contains(s.AcquiredAt) {
			continue
		}
		if !s.Backscatter.Grid.Covers(aoi.Bounds()) {
			continue
		}
		kept = append(kept, s)
	}

	if len(kept) < minStackSize {
		return nil, &InsufficientDataError{Window: window, Got: len(kept)}
	}
	return NewImageStack(kept)
}
