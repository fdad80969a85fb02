// Package identity implements the Profile & Identity Service (component C):
// resolving a request to a household profile from session, voice-embedding,
// or anonymous signals, and mapping that profile to an age group and content
// tier for the guardrail engine and system prompt builder.
package identity

import (
	"context"
	"database/sql"
	"time"

	"github.com/atlas-cortex/cortex/internal/data"
)

// Confidence thresholds from the resolution policy (§4.3).
const (
	highConfidenceThreshold = 0.85
	lowConfidenceFloor      = 0.5
	strictTierConfidence    = 0.6
)

// ContentTier gates what the guardrail engine and system prompt builder
// allow through for a resolved identity.
type ContentTier string

const (
	TierStrict   ContentTier = "strict"
	TierModerate ContentTier = "moderate"
	TierStandard ContentTier = "standard"
)

// AgeGroup buckets a profile by birth year for content-tier mapping.
type AgeGroup string

const (
	AgeChild   AgeGroup = "child"
	AgeTeen    AgeGroup = "teen"
	AgeAdult   AgeGroup = "adult"
	AgeUnknown AgeGroup = "unknown"
)

// Identity is the resolved result of Resolve: who the request is from, how
// confident that resolution is, and the effective content tier it implies.
type Identity struct {
	ProfileID   string
	DisplayName string
	AgeGroup    AgeGroup
	Confidence  float64
	Anonymous   bool
	Tier        ContentTier
}

// VoiceMatcher resolves a voice embedding to the closest enrolled profile.
// Implemented by data.Store; a separate interface decouples the service from
// the storage layer's exact SQL.
type VoiceMatcher interface {
	MatchVoiceEmbedding(ctx context.Context, query []float32) (*data.Profile, float64, error)
	GetProfile(ctx context.Context, id string) (*data.Profile, error)
	GetParentalControls(ctx context.Context, profileID string) (tier string, forbidden []string, err error)
}

// Service resolves identity per the priority order in §4.3: authenticated
// session user id, then voice embedding above threshold, then voice
// embedding in the ambiguous band, then anonymous.
type Service struct {
	store VoiceMatcher
}

// New creates a Profile & Identity Service over store.
func New(store VoiceMatcher) *Service {
	return &Service{store: store}
}

// Resolve implements the (a)-(d) priority order. sessionUserID is the
// authenticated session's user id, if any; voiceEmbedding is the enrolled
// speaker embedding extracted from the current utterance, if voice input is
// in play. Either may be empty/nil.
func (s *Service) Resolve(ctx context.Context, sessionUserID string, voiceEmbedding []float32) (Identity, error) {
	if sessionUserID != "" {
		return s.fromProfileID(ctx, sessionUserID, 1.0)
	}

	if len(voiceEmbedding) > 0 && s.store != nil {
		profile, score, err := s.store.MatchVoiceEmbedding(ctx, voiceEmbedding)
		if err == nil && profile != nil {
			if score >= highConfidenceThreshold {
				return s.fromProfileID(ctx, profile.ID, score)
			}
			if score >= lowConfidenceFloor {
				id, ferr := s.fromProfileID(ctx, profile.ID, score)
				return id, ferr
			}
		} else if err != nil && err != sql.ErrNoRows {
			return Identity{}, err
		}
	}

	return Identity{Anonymous: true, AgeGroup: AgeUnknown, Tier: TierStrict, Confidence: 0}, nil
}

func (s *Service) fromProfileID(ctx context.Context, profileID string, confidence float64) (Identity, error) {
	id := Identity{ProfileID: profileID, Confidence: confidence}

	if s.store == nil {
		id.AgeGroup = AgeUnknown
		id.Tier = effectiveTier(id.AgeGroup, confidence, "")
		return id, nil
	}

	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		id.AgeGroup = AgeUnknown
		id.Tier = effectiveTier(id.AgeGroup, confidence, "")
		return id, nil
	}
	id.DisplayName = profile.DisplayName
	id.AgeGroup = mapAgeGroup(profile)

	parentOverrideTier := ""
	if profile.ParentProfileID != "" {
		tier, _, err := s.store.GetParentalControls(ctx, profile.ParentProfileID)
		if err == nil {
			parentOverrideTier = tier
		}
	}
	if id.AgeGroup == AgeChild {
		tier, _, err := s.store.GetParentalControls(ctx, profile.ID)
		if err == nil && tier != "" {
			parentOverrideTier = tier
		}
	}

	id.Tier = effectiveTier(id.AgeGroup, confidence, parentOverrideTier)
	return id, nil
}

// mapAgeGroup returns a profile's stored age group when it is one of the
// three bands; otherwise it buckets the birth year into them (AgeUnknown
// when neither is set).
func mapAgeGroup(p *data.Profile) AgeGroup {
	if p.AgeGroup != "" && p.AgeGroup != "unknown" {
		switch AgeGroup(p.AgeGroup) {
		case AgeChild, AgeTeen, AgeAdult:
			return AgeGroup(p.AgeGroup)
		}
	}
	if p.BirthYear == 0 {
		return AgeUnknown
	}
	age := time.Now().Year() - p.BirthYear
	switch {
	case age <= 12:
		return AgeChild
	case age <= 17:
		return AgeTeen
	default:
		return AgeAdult
	}
}

// effectiveTier maps age group to a base content tier, then applies the
// confidence floor and any parental override, whichever is stricter.
func effectiveTier(age AgeGroup, confidence float64, parentOverride string) ContentTier {
	base := TierStandard
	switch age {
	case AgeChild, AgeUnknown:
		base = TierStrict
	case AgeTeen:
		base = TierModerate
	}

	if confidence < strictTierConfidence {
		base = TierStrict
	}

	if parentOverride != "" && stricterThan(ContentTier(parentOverride), base) {
		base = ContentTier(parentOverride)
	}

	return base
}

var tierRank = map[ContentTier]int{TierStandard: 0, TierModerate: 1, TierStrict: 2}

func stricterThan(a, b ContentTier) bool {
	return tierRank[a] > tierRank[b]
}

// Allowed implements action.AccessChecker: a profile's parental-control
// forbidden-entity list blocks the Action Registry from dispatching against
// that entity, regardless of which handler would otherwise serve it.
func (s *Service) Allowed(ctx context.Context, userID, entity string) (bool, string) {
	if s.store == nil || entity == "" {
		return true, ""
	}
	_, forbidden, err := s.store.GetParentalControls(ctx, userID)
	if err != nil {
		return true, ""
	}
	for _, f := range forbidden {
		if f == entity {
			return false, "that's not something I can help with here"
		}
	}
	return true, ""
}
