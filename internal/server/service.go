package server

import (
	"context"
	"fmt"
	"math"
	"time"

	"ipkv/internal/shared"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	healthKeyPrefix = "__health_check_"
	healthValue     = "test"
	healthTTL       = 60 * time.Second

	sampleSize = 5
)

// ListService implements the list operations on top of a Store. It holds no
// state between calls: every operation is one read and at most one write,
// with no locking, so concurrent appends to the same key can lose entries
// (last writer wins for the whole value).
type ListService struct {
	Store Store
	now   func() time.Time
}

func NewListService(store Store) *ListService {
	return &ListService{Store: store, now: time.Now}
}

func (s *ListService) timestamp() string {
	return s.now().UTC().Format(shared.TimeLayout)
}

func (s *ListService) read(ctx context.Context, key string) (string, error) {
	text, _, err := s.Store.Get(ctx, key)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("store read failed")
		return "", backendError(err)
	}
	return text, nil
}

// ListSnapshot is a list as read from the store.
type ListSnapshot struct {
	Raw  string
	Data shared.ListData
}

// Get reads the list under key. A missing key reads as an empty list.
func (s *ListService) Get(ctx context.Context, key string) (*ListSnapshot, error) {
	if key == "" {
		key = DefaultKey
	}
	text, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}
	ips := Parse(text)
	return &ListSnapshot{
		Raw: text,
		Data: shared.ListData{
			Key:         key,
			Count:       len(ips),
			IPs:         ips,
			LastUpdated: s.timestamp(),
		},
	}, nil
}

// UpdateOutcome is the result of a successful Update.
type UpdateOutcome struct {
	Message string
	Data    shared.UpdateData
}

// Update replaces or appends to the list under key and writes it back
// without a ttl. Nothing is written when the result would exceed
// MaxListBytes.
func (s *ListService) Update(ctx context.Context, key string, incoming []string, action string) (*UpdateOutcome, error) {
	if incoming == nil {
		return nil, newError(KindValidation, "invalid format: ips must be an array")
	}
	if key == "" {
		key = DefaultKey
	}
	if action == "" {
		action = shared.ActionReplace
	}

	var (
		final    []string
		existing []string
	)
	switch action {
	case shared.ActionReplace:
		final = Dedupe(incoming)
	case shared.ActionAppend:
		text, err := s.read(ctx, key)
		if err != nil {
			return nil, err
		}
		existing = Parse(text)
		merged := make([]string, 0, len(existing)+len(incoming))
		merged = append(merged, existing...)
		merged = append(merged, incoming...)
		final = Dedupe(merged)
	default:
		return nil, newError(KindValidation, fmt.Sprintf("invalid action %q: use %q or %q", action, shared.ActionReplace, shared.ActionAppend))
	}

	content := Serialize(final)
	if len(content) > MaxListBytes {
		return nil, newError(KindSizeLimit, fmt.Sprintf("list too large: %d bytes exceeds the %d MB limit", len(content), MaxListBytes>>20))
	}

	if err := s.Store.Put(ctx, key, content, 0); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("store write failed")
		return nil, backendError(err)
	}

	out := &UpdateOutcome{
		Data: shared.UpdateData{
			Key:       key,
			Count:     len(final),
			Action:    action,
			Timestamp: s.timestamp(),
		},
	}
	log := zerolog.Ctx(ctx).Info().Str("key", key).Str("action", action).Int("count", len(final))
	if action == shared.ActionAppend {
		// Net growth of the stored list, not a count of unseen tokens.
		added := len(final) - len(existing)
		duplicates := len(incoming) - added
		out.Data.Added = &added
		out.Data.Duplicates = &duplicates
		out.Message = fmt.Sprintf("appended %d new entries, skipped %d duplicates, %d entries total", added, duplicates, len(final))
		log = log.Int("added", added).Int("duplicates", duplicates)
	} else {
		out.Message = fmt.Sprintf("replaced list with %d entries", len(final))
	}
	log.Msg("list updated")
	return out, nil
}

// Stats summarizes the list under DefaultKey.
func (s *ListService) Stats(ctx context.Context) (*shared.StatsData, error) {
	text, err := s.read(ctx, DefaultKey)
	if err != nil {
		return nil, err
	}
	ips := Parse(text)
	sample := ips
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	size := len(text)
	return &shared.StatsData{
		TotalIPs:      len(ips),
		ContentSize:   size,
		ContentSizeMB: math.Round(float64(size)/(1<<20)*100) / 100,
		LastUpdated:   s.timestamp(),
		SampleIPs:     sample,
	}, nil
}

// Health round-trips a throwaway key through the store. healthy is false
// when the value read back differs from the one written; err is set only
// when a store call failed.
func (s *ListService) Health(ctx context.Context) (healthy bool, err error) {
	key := healthKeyPrefix + uuid.NewString()
	if err := s.Store.Put(ctx, key, healthValue, healthTTL); err != nil {
		return false, backendError(err)
	}
	got, _, err := s.Store.Get(ctx, key)
	if err != nil {
		return false, backendError(err)
	}
	if err := s.Store.Delete(ctx, key); err != nil {
		return false, backendError(err)
	}
	return got == healthValue, nil
}
