package data

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Store provides the SQLite-backed data access layer shared across the
// memory, guardrail, and admin surfaces: the emotional profile, the HOT
// memory cell table, the COLD write queue, and the append-only interaction
// log.
//
// (Store's connection-lifecycle methods — NewDB, Migrate, Health, Close,
// BeginTx, WithTx — live in db.go.)

// ═══════════════════════════════════════════════════════════════════════════
// EMOTIONAL PROFILE / RAPPORT
// ═══════════════════════════════════════════════════════════════════════════

// EmotionalProfile is a user's rapport state plus topic/activity histograms.
type EmotionalProfile struct {
	UserID          string         `json:"user_id"`
	Rapport         float64        `json:"rapport"`
	TopicFrequency  map[string]int `json:"topic_frequency"`
	PeakHourCounts  map[string]int `json:"peak_hour_counts"`
	LastInteraction time.Time      `json:"last_interaction"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// GetEmotionalProfile loads a user's profile, creating a default one
// (rapport 0.5) if none exists yet.
func (s *Store) GetEmotionalProfile(ctx context.Context, userID string) (*EmotionalProfile, error) {
	var p EmotionalProfile
	var topicJSON, hourJSON string
	var lastInteraction sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, rapport, topic_frequency, peak_hour_counts, last_interaction, updated_at
		FROM emotional_profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.Rapport, &topicJSON, &hourJSON, &lastInteraction, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return &EmotionalProfile{
			UserID:         userID,
			Rapport:        0.5,
			TopicFrequency: map[string]int{},
			PeakHourCounts: map[string]int{},
			UpdatedAt:      time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query emotional profile: %w", err)
	}

	json.Unmarshal([]byte(topicJSON), &p.TopicFrequency)
	json.Unmarshal([]byte(hourJSON), &p.PeakHourCounts)
	if lastInteraction.Valid {
		p.LastInteraction = lastInteraction.Time
	}

	return &p, nil
}

// UpsertEmotionalProfile writes the full profile state. Rapport is clamped
// to [0,1] regardless of what the caller passes.
func (s *Store) UpsertEmotionalProfile(ctx context.Context, p *EmotionalProfile) error {
	if p.Rapport < 0 {
		p.Rapport = 0
	}
	if p.Rapport > 1 {
		p.Rapport = 1
	}
	if p.TopicFrequency == nil {
		p.TopicFrequency = map[string]int{}
	}
	if p.PeakHourCounts == nil {
		p.PeakHourCounts = map[string]int{}
	}

	topicJSON, _ := json.Marshal(p.TopicFrequency)
	hourJSON, _ := json.Marshal(p.PeakHourCounts)
	p.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emotional_profiles (user_id, rapport, topic_frequency, peak_hour_counts, last_interaction, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			rapport = excluded.rapport,
			topic_frequency = excluded.topic_frequency,
			peak_hour_counts = excluded.peak_hour_counts,
			last_interaction = excluded.last_interaction,
			updated_at = excluded.updated_at
	`, p.UserID, p.Rapport, string(topicJSON), string(hourJSON), nullTime(p.LastInteraction), p.UpdatedAt)
	return err
}

// AdjustRapport applies a signed delta to a user's rapport, clamped to
// [0,1], and stamps last_interaction to now.
func (s *Store) AdjustRapport(ctx context.Context, userID string, delta float64) (float64, error) {
	profile, err := s.GetEmotionalProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	profile.Rapport += delta
	profile.LastInteraction = time.Now()
	if err := s.UpsertEmotionalProfile(ctx, profile); err != nil {
		return 0, err
	}
	return profile.Rapport, nil
}

// DecayAll applies dailyDecay to every profile whose last_interaction is at
// least a day old, scaled by the number of idle days. It implements
// memory.RapportStore.
func (s *Store) DecayAll(ctx context.Context, dailyDecay float64) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, rapport, last_interaction FROM emotional_profiles
		WHERE last_interaction IS NOT NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("query profiles for decay: %w", err)
	}

	type decayRow struct {
		userID  string
		rapport float64
		last    time.Time
	}
	var candidates []decayRow
	for rows.Next() {
		var r decayRow
		if err := rows.Scan(&r.userID, &r.rapport, &r.last); err != nil {
			continue
		}
		candidates = append(candidates, r)
	}
	rows.Close()

	now := time.Now()
	updated := 0
	for _, r := range candidates {
		idleDays := int(now.Sub(r.last).Hours() / 24)
		if idleDays <= 0 {
			continue
		}
		newRapport := r.rapport - dailyDecay*float64(idleDays)
		if newRapport < 0 {
			newRapport = 0
		}
		if newRapport > 1 {
			newRapport = 1
		}
		if _, err := s.db.ExecContext(ctx, `
			UPDATE emotional_profiles SET rapport = ?, updated_at = ? WHERE user_id = ?
		`, newRapport, now, r.userID); err == nil {
			updated++
		}
	}

	return updated, nil
}

// FillerPhrase is a sentiment-bucketed acknowledgement phrase tracked for
// recency so the same filler doesn't repeat too often.
type FillerPhrase struct {
	UserID    string
	Sentiment string
	Phrase    string
	LastUsed  time.Time
}

// TouchFillerPhrase records that phrase was just used for sentiment.
func (s *Store) TouchFillerPhrase(ctx context.Context, userID, sentiment, phrase string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filler_phrases (user_id, sentiment, phrase, last_used)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, sentiment, phrase) DO UPDATE SET last_used = excluded.last_used
	`, userID, sentiment, phrase, time.Now())
	return err
}

// LeastRecentFiller returns the phrase for (userID, sentiment) that was used
// longest ago (or never), so filler selection avoids immediate repeats.
func (s *Store) LeastRecentFiller(ctx context.Context, userID, sentiment string, pool []string) (string, error) {
	if len(pool) == 0 {
		return "", nil
	}

	used := make(map[string]time.Time, len(pool))
	rows, err := s.db.QueryContext(ctx, `
		SELECT phrase, last_used FROM filler_phrases WHERE user_id = ? AND sentiment = ?
	`, userID, sentiment)
	if err == nil {
		for rows.Next() {
			var phrase string
			var lastUsed sql.NullTime
			if rows.Scan(&phrase, &lastUsed) == nil && lastUsed.Valid {
				used[phrase] = lastUsed.Time
			}
		}
		rows.Close()
	}

	best := pool[0]
	var bestTime time.Time
	for _, phrase := range pool {
		t, ok := used[phrase]
		if !ok {
			return phrase, nil
		}
		if bestTime.IsZero() || t.Before(bestTime) {
			best = phrase
			bestTime = t
		}
	}
	return best, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// HOT MEMORY CELLS
// ═══════════════════════════════════════════════════════════════════════════

// MemoryCell is one retrievable HOT memory record.
type MemoryCell struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	OwnerID     string    `json:"owner_id"`
	AccessLevel string    `json:"access_level"` // private, household, public
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Embedding   []byte    `json:"-"`
	Supersedes  string    `json:"supersedes,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}

// HashContent returns the dedup key used by the COLD consumer: corrections
// never overwrite in place, they supersede by id.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// UpsertMemory inserts a memory cell, or bumps last_seen on an existing one
// with the same content hash and owner.
func (s *Store) UpsertMemory(ctx context.Context, m *MemoryCell) error {
	if m.ID == "" {
		m.ID = "mem_" + uuid.New().String()[:12]
	}
	if m.ContentHash == "" {
		m.ContentHash = HashContent(m.Content)
	}
	if m.AccessLevel == "" {
		m.AccessLevel = "private"
	}

	var existingID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM memories WHERE owner_id = ? AND content_hash = ? AND supersedes IS NULL
	`, m.OwnerID, m.ContentHash).Scan(&existingID)

	now := time.Now()
	if err == nil {
		_, uerr := s.db.ExecContext(ctx, `UPDATE memories SET last_seen = ? WHERE id = ?`, now, existingID)
		m.ID = existingID
		m.LastSeen = now
		return uerr
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check existing memory: %w", err)
	}

	m.LastSeen = now
	m.CreatedAt = now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, type, owner_id, access_level, content, content_hash, embedding, supersedes, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Type, m.OwnerID, m.AccessLevel, m.Content, m.ContentHash, m.Embedding, nullStringPtr(m.Supersedes), m.LastSeen, m.CreatedAt)
	return err
}

// SearchMemoriesFTS performs a lexical (BM25) search over memory content,
// filtered by the access rule: owner match, or access_level in
// {household, public}.
func (s *Store) SearchMemoriesFTS(ctx context.Context, requesterID, query string, limit int) ([]*MemoryCell, error) {
	if limit <= 0 {
		limit = 8
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.type, m.owner_id, m.access_level, m.content, m.content_hash, m.supersedes, m.last_seen, m.created_at
		FROM memories_fts fts
		JOIN memories m ON fts.rowid = m.rowid
		WHERE memories_fts MATCH ?
		  AND (m.owner_id = ? OR m.access_level IN ('household', 'public'))
		ORDER BY bm25(memories_fts)
		LIMIT ?
	`, query, requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("search memories fts: %w", err)
	}
	defer rows.Close()

	return scanMemoryCells(rows)
}

// GetMemoriesByIDs loads memory cells (e.g. HOT fusion candidates) honoring
// the same access rule as SearchMemoriesFTS.
func (s *Store) GetMemoriesByIDs(ctx context.Context, requesterID string, ids []string) ([]*MemoryCell, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]any, 0, len(ids)+1)
	placeholders = append(placeholders, requesterID)
	query := `
		SELECT id, type, owner_id, access_level, content, content_hash, supersedes, last_seen, created_at
		FROM memories WHERE (owner_id = ? OR access_level IN ('household', 'public')) AND id IN (`
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders = append(placeholders, id)
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return nil, fmt.Errorf("get memories by ids: %w", err)
	}
	defer rows.Close()

	return scanMemoryCells(rows)
}

func scanMemoryCells(rows *sql.Rows) ([]*MemoryCell, error) {
	var out []*MemoryCell
	for rows.Next() {
		var m MemoryCell
		var supersedes sql.NullString
		if err := rows.Scan(&m.ID, &m.Type, &m.OwnerID, &m.AccessLevel, &m.Content, &m.ContentHash, &supersedes, &m.LastSeen, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory cell: %w", err)
		}
		m.Supersedes = supersedes.String
		out = append(out, &m)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// COLD WRITE QUEUE
// ═══════════════════════════════════════════════════════════════════════════

// EnqueueColdEvent persists a raw candidate memory event for asynchronous
// processing. Crash-safe: rows survive a restart until marked processed.
func (s *Store) EnqueueColdEvent(ctx context.Context, userID, interactionID, rawText string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cold_events (user_id, interaction_id, raw_text, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)
	`, userID, nullString(interactionID), rawText, time.Now())
	return err
}

// ColdEvent is a queued candidate memory awaiting redaction/classification.
type ColdEvent struct {
	ID            int64
	UserID        string
	InteractionID string
	RawText       string
	Attempts      int
}

// ClaimPendingColdEvents returns up to limit pending events, oldest first.
func (s *Store) ClaimPendingColdEvents(ctx context.Context, limit int) ([]*ColdEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(interaction_id, ''), raw_text, attempts
		FROM cold_events WHERE status = 'pending' ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim cold events: %w", err)
	}
	defer rows.Close()

	var events []*ColdEvent
	for rows.Next() {
		var e ColdEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.InteractionID, &e.RawText, &e.Attempts); err != nil {
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

// MarkColdEventProcessed marks an event as applied. Idempotent: calling it
// again on an already-processed row is a no-op.
func (s *Store) MarkColdEventProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cold_events SET status = 'processed', processed_at = ? WHERE id = ? AND status != 'processed'
	`, time.Now(), id)
	return err
}

// MarkColdEventFailed records a failed attempt. Once attempts reaches
// maxAttempts the event is marked dead and no longer retried.
func (s *Store) MarkColdEventFailed(ctx context.Context, id int64, cause error, maxAttempts int) error {
	var attempts int
	if err := s.db.QueryRowContext(ctx, `SELECT attempts FROM cold_events WHERE id = ?`, id).Scan(&attempts); err != nil {
		return err
	}
	attempts++

	status := "pending"
	if attempts >= maxAttempts {
		status = "dead"
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE cold_events SET attempts = ?, last_error = ?, status = ? WHERE id = ?
	`, attempts, cause.Error(), status, id)
	return err
}

// RetryPending counts the events still pending with fewer than maxAttempts
// attempts; it does not reprocess them itself. It implements
// memory.ColdQueue; the actual redact/classify/embed work happens in the
// memory package's consumer, which calls ClaimPendingColdEvents/
// MarkColdEvent{Processed,Failed} directly, so RetryPending here is a light
// liveness sweep: it just reports how many pending rows exist so the caller
// can decide whether the consumer is keeping up.
func (s *Store) RetryPending(ctx context.Context, maxAttempts int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cold_events WHERE status = 'pending' AND attempts < ?
	`, maxAttempts).Scan(&count)
	return count, err
}

// ═══════════════════════════════════════════════════════════════════════════
// INTERACTION LOG
// ═══════════════════════════════════════════════════════════════════════════

// InteractionRecord is one completed request, append-only.
type InteractionRecord struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	SpeakerID         string    `json:"speaker_id,omitempty"`
	MessageText       string    `json:"message_text"`
	MatchedLayer      string    `json:"matched_layer"` // instant, action, llm, blocked
	MatchedPattern    string    `json:"matched_pattern,omitempty"`
	SentimentLabel    string    `json:"sentiment_label,omitempty"`
	SentimentScore    float64   `json:"sentiment_score"`
	ResponseText      string    `json:"response_text"`
	ResponseLatencyMS int64     `json:"response_latency_ms"`
	SelectedModel     string    `json:"selected_model,omitempty"`
	FillerUsed        string    `json:"filler_used,omitempty"`
	ResolvedArea      string    `json:"resolved_area,omitempty"`
	Confidence        float64   `json:"confidence"`
	CreatedAt         time.Time `json:"created_at"`
}

// LogInteraction appends one interaction record. Layer must be one of
// instant/action/llm/blocked.
func (s *Store) LogInteraction(ctx context.Context, rec *InteractionRecord) error {
	if rec.ID == "" {
		rec.ID = "interaction_" + uuid.New().String()[:12]
	}
	rec.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interaction_log (
			id, user_id, speaker_id, message_text, matched_layer, matched_pattern,
			sentiment_label, sentiment_score, response_text, response_latency_ms,
			selected_model, filler_used, resolved_area, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, nullString(rec.SpeakerID), rec.MessageText, rec.MatchedLayer, nullString(rec.MatchedPattern),
		nullString(rec.SentimentLabel), rec.SentimentScore, rec.ResponseText, rec.ResponseLatencyMS,
		nullString(rec.SelectedModel), nullString(rec.FillerUsed), nullString(rec.ResolvedArea), rec.Confidence, rec.CreatedAt)
	return err
}

// RecentInteractions returns a user's most recent interactions, newest
// first, for admin inspection and nightly evolution review.
func (s *Store) RecentInteractions(ctx context.Context, userID string, limit int) ([]*InteractionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(speaker_id, ''), message_text, matched_layer, COALESCE(matched_pattern, ''),
		       COALESCE(sentiment_label, ''), sentiment_score, response_text, response_latency_ms,
		       COALESCE(selected_model, ''), COALESCE(filler_used, ''), COALESCE(resolved_area, ''), confidence, created_at
		FROM interaction_log WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []*InteractionRecord
	for rows.Next() {
		var r InteractionRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.SpeakerID, &r.MessageText, &r.MatchedLayer, &r.MatchedPattern,
			&r.SentimentLabel, &r.SentimentScore, &r.ResponseText, &r.ResponseLatencyMS,
			&r.SelectedModel, &r.FillerUsed, &r.ResolvedArea, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, &r)
	}
	return out, nil
}

// LogGuardrailEvent records a guardrail stage's action against an
// interaction (e.g. a hard_block at the input stage).
func (s *Store) LogGuardrailEvent(ctx context.Context, interactionID, stage, ruleID, action, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guardrail_events (interaction_id, stage, rule_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, interactionID, stage, nullString(ruleID), action, nullString(detail), time.Now())
	return err
}

// ═══════════════════════════════════════════════════════════════════════════
// PROFILE & IDENTITY SERVICE
// ═══════════════════════════════════════════════════════════════════════════

// Profile is a household member, distinct from an authenticated login (a
// child profile may have no user account at all).
type Profile struct {
	ID              string
	DisplayName     string
	AgeGroup        string // child, teen, adult, unknown
	BirthYear       int
	ParentProfileID string
	VoiceEmbedding  []byte
}

// GetProfile loads a profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	var birthYear sql.NullInt64
	var parentID sql.NullString
	var emb []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, age_group, birth_year, parent_profile_id, voice_embedding
		FROM user_profiles WHERE id = ?
	`, id).Scan(&p.ID, &p.DisplayName, &p.AgeGroup, &birthYear, &parentID, &emb)
	if err != nil {
		return nil, err
	}
	p.BirthYear = int(birthYear.Int64)
	p.ParentProfileID = parentID.String
	p.VoiceEmbedding = emb
	return &p, nil
}

// MatchVoiceEmbedding returns the profile whose stored voice embedding is
// closest to query by cosine similarity, and that similarity score. Intended
// for small household rosters; a linear scan is adequate at that scale.
func (s *Store) MatchVoiceEmbedding(ctx context.Context, query []float32) (*Profile, float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, age_group, birth_year, parent_profile_id, voice_embedding
		FROM user_profiles WHERE voice_embedding IS NOT NULL
	`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var best *Profile
	var bestScore float64 = -1
	for rows.Next() {
		var p Profile
		var birthYear sql.NullInt64
		var parentID sql.NullString
		var emb []byte
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.AgeGroup, &birthYear, &parentID, &emb); err != nil {
			continue
		}
		p.BirthYear = int(birthYear.Int64)
		p.ParentProfileID = parentID.String
		p.VoiceEmbedding = emb

		score := cosineSimilarityBytes(query, emb)
		if score > bestScore {
			bestScore = score
			pp := p
			best = &pp
		}
	}
	if best == nil {
		return nil, 0, sql.ErrNoRows
	}
	return best, bestScore, nil
}

func bytesToFloat32Slice(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func cosineSimilarityBytes(query []float32, stored []byte) float64 {
	vec := bytesToFloat32Slice(stored)
	if len(vec) != len(query) || len(vec) == 0 {
		return -1
	}
	var dot, qn, vn float64
	for i := range vec {
		dot += float64(query[i]) * float64(vec[i])
		qn += float64(query[i]) * float64(query[i])
		vn += float64(vec[i]) * float64(vec[i])
	}
	if qn == 0 || vn == 0 {
		return -1
	}
	return dot / (math.Sqrt(qn) * math.Sqrt(vn))
}

// GetParentalControls loads the content tier and forbidden-entity policy for
// a profile. Returns ("strict", nil, nil) if no row exists, matching the
// spec's "unknown ⇒ strict" default.
func (s *Store) GetParentalControls(ctx context.Context, profileID string) (tier string, forbidden []string, err error) {
	var forbiddenJSON string
	err = s.db.QueryRowContext(ctx, `
		SELECT content_tier, forbidden_entities FROM parental_controls WHERE profile_id = ?
	`, profileID).Scan(&tier, &forbiddenJSON)
	if err == sql.ErrNoRows {
		return "strict", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	_ = json.Unmarshal([]byte(forbiddenJSON), &forbidden)
	return tier, forbidden, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// SPATIAL RESOLVER
// ═══════════════════════════════════════════════════════════════════════════

// SatelliteArea returns the area a satellite is statically mapped to.
func (s *Store) SatelliteArea(ctx context.Context, satelliteID string) (string, error) {
	var area string
	err := s.db.QueryRowContext(ctx, `SELECT area FROM satellites WHERE id = ?`, satelliteID).Scan(&area)
	return area, err
}

// PresenceSignal is one active presence observation in an area.
type PresenceSignal struct {
	Area       string
	Source     string
	Confidence float64
}

// ActivePresence returns presence signals updated within maxAge, across all
// areas, for the Spatial Resolver's presence-sensor signal source.
func (s *Store) ActivePresence(ctx context.Context, maxAge time.Duration) ([]PresenceSignal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT area, source, confidence FROM presence_signals WHERE updated_at >= ?
	`, time.Now().Add(-maxAge))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PresenceSignal
	for rows.Next() {
		var sig PresenceSignal
		if err := rows.Scan(&sig.Area, &sig.Source, &sig.Confidence); err != nil {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
