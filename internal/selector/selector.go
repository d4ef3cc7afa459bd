// Package selector chooses the rendition of a remote video that best
// matches an output request.
package selector

import (
	"github.com/shtefko55/toolsy/internal/capture"
	"github.com/shtefko55/toolsy/internal/models"
)

// Select picks the rendition that best satisfies the request.
//
// For audio-only requests the highest-bitrate audio-without-video
// rendition wins, falling back to any audio-capable rendition. For
// video requests, candidates need both audio and video; an unspecified
// resolution picks the tallest candidate, a target height picks the
// tallest candidate not exceeding it and degrades to the overall
// tallest when every candidate is taller. If no audio+video rendition
// exists, any audio-capable one is accepted. Ties keep the first-seen
// rendition so selection is reproducible.
func Select(renditions []capture.Rendition, req models.OutputRequest) (capture.Rendition, error) {
	if req.AudioOnly {
		if best, ok := maxAudioBitrate(renditions, func(r capture.Rendition) bool {
			return r.HasAudio && !r.HasVideo
		}); ok {
			return best, nil
		}
		if best, ok := maxAudioBitrate(renditions, func(r capture.Rendition) bool {
			return r.HasAudio
		}); ok {
			return best, nil
		}
		return capture.Rendition{}, models.ErrNoRenditionAvailable
	}

	var candidates []capture.Rendition
	for _, r := range renditions {
		if r.HasAudio && r.HasVideo {
			candidates = append(candidates, r)
		}
	}

	if len(candidates) > 0 {
		target := req.TargetHeight()
		if target > 0 {
			if best, ok := maxHeight(candidates, func(r capture.Rendition) bool {
				return r.Height <= target
			}); ok {
				return best, nil
			}
			// Everything is taller than requested, degrade to the
			// tallest rather than failing.
		}
		best, _ := maxHeight(candidates, func(capture.Rendition) bool { return true })
		return best, nil
	}

	// No audio+video rendition at all, accept anything with audio.
	if best, ok := maxAudioBitrate(renditions, func(r capture.Rendition) bool {
		return r.HasAudio
	}); ok {
		return best, nil
	}

	return capture.Rendition{}, models.ErrNoRenditionAvailable
}

func maxAudioBitrate(renditions []capture.Rendition, keep func(capture.Rendition) bool) (capture.Rendition, bool) {
	var best capture.Rendition
	found := false
	for _, r := range renditions {
		if !keep(r) {
			continue
		}
		// Strict comparison keeps the first-seen rendition on ties
		if !found || r.AudioBitrate > best.AudioBitrate {
			best = r
			found = true
		}
	}
	return best, found
}

func maxHeight(renditions []capture.Rendition, keep func(capture.Rendition) bool) (capture.Rendition, bool) {
	var best capture.Rendition
	found := false
	for _, r := range renditions {
		if !keep(r) {
			continue
		}
		if !found || r.Height > best.Height {
			best = r
			found = true
		}
	}
	return best, found
}
