// Package spatial implements the Spatial Resolver (§4.11): resolving the
// area a voice request originated in from satellite placement, presence
// sensors, multi-mic proximity, and speaker-identity correlation, combined
// by weighted confidence. Resolution never fails the request — an
// unresolved area is a valid, and common, outcome.
package spatial

import (
	"context"
	"time"

	"github.com/atlas-cortex/cortex/internal/data"
)

// Signal weights used to combine independent area votes. Satellite mapping
// is the most direct signal; speaker-identity correlation is weakest since
// it depends on a separate, already-uncertain identity resolution.
const (
	weightSatelliteMap = 0.4
	weightPresence     = 0.3
	weightMultiMic     = 0.2
	weightSpeakerCorr  = 0.1

	presenceSignalMaxAge = 2 * time.Minute
)

// Store is the subset of data.Store the resolver reads from.
type Store interface {
	SatelliteArea(ctx context.Context, satelliteID string) (string, error)
	ActivePresence(ctx context.Context, maxAge time.Duration) ([]data.PresenceSignal, error)
}

// Request carries whatever signals are available for one resolution; any
// field may be zero-valued if that signal source isn't present.
type Request struct {
	SatelliteID string
	// CandidateSNR maps satellite id -> signal-to-noise ratio, for the
	// multi-mic proximity signal (highest SNR among satellites that heard
	// the same utterance).
	CandidateSNR map[string]float64
	// SpeakerLastArea is the area the resolved speaker identity was last
	// heard in, if identity resolution already ran this request.
	SpeakerLastArea string
}

// Result is a resolved area and the confidence behind it. Area is empty when
// unresolved.
type Result struct {
	Area       string
	Confidence float64
}

// Resolver combines the four signal sources in precedence order, weighting
// each by weighted agreement rather than picking the first that fires: an
// area backed by multiple agreeing signals outranks a single strong one.
type Resolver struct {
	store           Store
	satelliteAreaOf map[string]string // cache: satellite id -> area, refreshed by RefreshSatelliteMap
}

// New creates a Spatial Resolver over store.
func New(store Store) *Resolver {
	return &Resolver{store: store, satelliteAreaOf: make(map[string]string)}
}

// Resolve returns the best-supported area for req, or an unresolved Result
// (empty Area) if no signal source produced one.
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	votes := make(map[string]float64)

	if req.SatelliteID != "" {
		if area, err := r.satelliteArea(ctx, req.SatelliteID); err == nil && area != "" {
			votes[area] += weightSatelliteMap
		}
	}

	if r.store != nil {
		if signals, err := r.store.ActivePresence(ctx, presenceSignalMaxAge); err == nil {
			for _, sig := range signals {
				votes[sig.Area] += weightPresence * sig.Confidence
			}
		}
	}

	if len(req.CandidateSNR) > 0 {
		bestSat, bestSNR := "", -1.0
		for sat, snr := range req.CandidateSNR {
			if snr > bestSNR {
				bestSNR = snr
				bestSat = sat
			}
		}
		if bestSat != "" {
			if area, err := r.satelliteArea(ctx, bestSat); err == nil && area != "" {
				votes[area] += weightMultiMic
			}
		}
	}

	if req.SpeakerLastArea != "" {
		votes[req.SpeakerLastArea] += weightSpeakerCorr
	}

	bestArea, bestScore := "", 0.0
	for area, score := range votes {
		if score > bestScore {
			bestScore = score
			bestArea = area
		}
	}

	if bestArea == "" {
		return Result{}
	}
	return Result{Area: bestArea, Confidence: bestScore}
}

func (r *Resolver) satelliteArea(ctx context.Context, satelliteID string) (string, error) {
	if area, ok := r.satelliteAreaOf[satelliteID]; ok {
		return area, nil
	}
	if r.store == nil {
		return "", nil
	}
	area, err := r.store.SatelliteArea(ctx, satelliteID)
	if err != nil {
		return "", err
	}
	r.satelliteAreaOf[satelliteID] = area
	return area, nil
}
