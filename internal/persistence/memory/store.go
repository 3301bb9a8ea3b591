// Package memory implements domain.Store in process memory for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/healthanalysis/internal/catalog"
	"example.com/healthanalysis/internal/domain"
)

type pairKey struct {
	exerciseID  int64
	conditionID int64
}

var _ domain.Store = (*Store)(nil)

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	conditions      map[int64]domain.Condition
	exercises       map[int64]domain.Exercise
	associations    map[pairKey]domain.Association
	profiles        map[domain.Owner]domain.Profile
	recommendations map[int64]domain.Recommendation
	schedules       map[int64]domain.Schedule

	nextConditionID      int64
	nextExerciseID       int64
	nextProfileID        int64
	nextRecommendationID int64
	nextScheduleID       int64
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		conditions:      make(map[int64]domain.Condition),
		exercises:       make(map[int64]domain.Exercise),
		associations:    make(map[pairKey]domain.Association),
		profiles:        make(map[domain.Owner]domain.Profile),
		recommendations: make(map[int64]domain.Recommendation),
		schedules:       make(map[int64]domain.Schedule),
	}
}

// NewSeededStore constructs a store loaded with the given dataset.
func NewSeededStore(ds catalog.Dataset) (*Store, error) {
	s := NewStore()
	if err := s.LoadDataset(ds); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadDataset inserts every condition, exercise and mapping of ds.
func (s *Store) LoadDataset(ds catalog.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	conditionIDs := make(map[string]int64, len(ds.Conditions))
	for _, c := range ds.Conditions {
		conditionIDs[c.Name] = s.AddCondition(c).ID
	}
	exerciseIDs := make(map[string]int64, len(ds.Exercises))
	for _, e := range ds.Exercises {
		exerciseIDs[e.Name] = s.AddExercise(e).ID
	}
	for _, m := range ds.Mappings {
		s.Associate(domain.Association{
			ExerciseID:         exerciseIDs[m.Exercise],
			ConditionID:        conditionIDs[m.Condition],
			EffectivenessScore: m.Effectiveness,
			SafetyScore:        m.Safety,
		})
	}
	return nil
}

// AddCondition inserts a condition and assigns its ID.
func (s *Store) AddCondition(c domain.Condition) domain.Condition {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConditionID++
	c.ID = s.nextConditionID
	s.conditions[c.ID] = c
	return c
}

// AddExercise inserts an exercise and assigns its ID.
func (s *Store) AddExercise(e domain.Exercise) domain.Exercise {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExerciseID++
	e.ID = s.nextExerciseID
	s.exercises[e.ID] = e
	return e
}

// Associate records or replaces the association for the pair.
func (s *Store) Associate(a domain.Association) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.associations[pairKey{a.ExerciseID, a.ConditionID}] = a
}

// ListConditions implements domain.CatalogStore.
func (s *Store) ListConditions(ctx context.Context, search string) ([]domain.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Condition, 0, len(s.conditions))
	for _, c := range s.conditions {
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Category), needle) &&
			!strings.Contains(strings.ToLower(c.Description), needle) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ConditionsByID implements domain.CatalogStore.
func (s *Store) ConditionsByID(ctx context.Context, ids []int64) ([]domain.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool, len(ids))
	out := make([]domain.Condition, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := s.conditions[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CandidateExercises implements domain.CatalogStore.
func (s *Store) CandidateExercises(ctx context.Context, conditionIDs []int64) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]bool, len(conditionIDs))
	for _, id := range conditionIDs {
		wanted[id] = true
	}

	type sums struct {
		eff, safety float64
		n           int
	}
	byExercise := make(map[int64]*sums)
	for key, a := range s.associations {
		if !wanted[key.conditionID] {
			continue
		}
		ex, ok := s.exercises[key.exerciseID]
		if !ok || !ex.IsActive {
			continue
		}
		acc := byExercise[key.exerciseID]
		if acc == nil {
			acc = &sums{}
			byExercise[key.exerciseID] = acc
		}
		acc.eff += a.EffectivenessScore
		acc.safety += a.SafetyScore
		acc.n++
	}

	out := make([]domain.Candidate, 0, len(byExercise))
	for id, acc := range byExercise {
		out = append(out, domain.Candidate{
			Exercise:          s.exercises[id],
			MeanEffectiveness: acc.eff / float64(acc.n),
			MeanSafety:        acc.safety / float64(acc.n),
			MatchedConditions: acc.n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exercise.ID < out[j].Exercise.ID })
	return out, nil
}

// GetProfile implements domain.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, owner domain.Owner) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[owner]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// UpsertProfile implements domain.ProfileStore.
func (s *Store) UpsertProfile(ctx context.Context, owner domain.Owner, update domain.ProfileUpdate, now time.Time) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[owner]
	if !ok {
		s.nextProfileID++
		p = domain.Profile{
			ID:        s.nextProfileID,
			TenantID:  owner.TenantID,
			UserID:    owner.UserID,
			CreatedAt: now,
		}
	}
	update.Apply(&p)
	p.UpdatedAt = now
	s.profiles[owner] = p
	return p, nil
}

// ReuseOrCreateActive implements domain.RecommendationStore.
func (s *Store) ReuseOrCreateActive(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.activeLocked(rec.Owner(), rec.ExerciseID, rec.ConditionID, 0); ok {
		return existing, false, nil
	}
	s.nextRecommendationID++
	rec.ID = s.nextRecommendationID
	s.recommendations[rec.ID] = rec
	return rec, true, nil
}

func (s *Store) activeLocked(owner domain.Owner, exerciseID, conditionID, excludeID int64) (domain.Recommendation, bool) {
	for _, r := range s.recommendations {
		if r.ID == excludeID || r.Status != domain.StatusActive {
			continue
		}
		if r.Owner() == owner && r.ExerciseID == exerciseID && r.ConditionID == conditionID {
			return r, true
		}
	}
	return domain.Recommendation{}, false
}

// GetRecommendation implements domain.RecommendationStore.
func (s *Store) GetRecommendation(ctx context.Context, owner domain.Owner, id int64) (domain.RecommendationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recommendations[id]
	if !ok || rec.Owner() != owner {
		return domain.RecommendationDetail{}, domain.ErrRecommendationNotFound
	}
	return s.detailLocked(rec), nil
}

func (s *Store) detailLocked(rec domain.Recommendation) domain.RecommendationDetail {
	return domain.RecommendationDetail{
		Recommendation: rec,
		Exercise:       s.exercises[rec.ExerciseID],
		Condition:      s.conditions[rec.ConditionID],
	}
}

// ListRecommendations implements domain.RecommendationStore.
func (s *Store) ListRecommendations(ctx context.Context, owner domain.Owner, status *domain.RecommendationStatus) ([]domain.RecommendationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RecommendationDetail, 0)
	for _, rec := range s.recommendations {
		if rec.Owner() != owner {
			continue
		}
		if status != nil && rec.Status != *status {
			continue
		}
		out = append(out, s.detailLocked(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateFeedback implements domain.RecommendationStore.
func (s *Store) UpdateFeedback(ctx context.Context, owner domain.Owner, id int64, input domain.FeedbackInput, now time.Time) (domain.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recommendations[id]
	if !ok || rec.Owner() != owner {
		return domain.Recommendation{}, domain.ErrRecommendationNotFound
	}
	if input.Status != nil && *input.Status == domain.StatusActive && rec.Status != domain.StatusActive {
		if _, exists := s.activeLocked(owner, rec.ExerciseID, rec.ConditionID, rec.ID); exists {
			return domain.Recommendation{}, domain.ErrActiveRecommendationExists
		}
	}
	if input.UserRating != nil {
		v := *input.UserRating
		rec.UserRating = &v
	}
	if input.UserFeedback != nil {
		rec.UserFeedback = *input.UserFeedback
	}
	if input.DifficultyFeedback != nil {
		rec.DifficultyFeedback = *input.DifficultyFeedback
	}
	if input.Status != nil {
		rec.Status = *input.Status
	}
	rec.UpdatedAt = now
	s.recommendations[id] = rec
	return rec, nil
}

// CreateSchedule implements domain.ScheduleStore.
func (s *Store) CreateSchedule(ctx context.Context, sched domain.Schedule, now time.Time) (domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := domain.Owner{TenantID: sched.TenantID, UserID: sched.UserID}
	rec, ok := s.recommendations[sched.RecommendationID]
	if !ok || rec.Owner() != owner {
		return domain.Schedule{}, domain.ErrRecommendationNotFound
	}

	s.nextScheduleID++
	sched.ID = s.nextScheduleID
	sched.CreatedAt = now
	sched.UpdatedAt = now
	s.schedules[sched.ID] = sched

	if sched.ScheduledDate.After(now) && (rec.NextScheduled == nil || sched.ScheduledDate.Before(*rec.NextScheduled)) {
		next := sched.ScheduledDate
		rec.NextScheduled = &next
		rec.UpdatedAt = now
		s.recommendations[rec.ID] = rec
	}
	return sched, nil
}

// CompleteSchedule implements domain.ScheduleStore.
func (s *Store) CompleteSchedule(ctx context.Context, owner domain.Owner, id int64, input domain.CompletionInput, now time.Time) (domain.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok || sched.TenantID != owner.TenantID || sched.UserID != owner.UserID {
		return domain.Completion{}, domain.ErrScheduleNotFound
	}
	if sched.IsCompleted {
		return domain.Completion{}, domain.ErrAlreadyCompleted
	}

	completedAt := now
	sched.IsCompleted = true
	sched.CompletedAt = &completedAt
	sched.ActualDuration = copyInt(input.ActualDuration)
	if input.ActualIntensity != nil {
		sched.ActualIntensity = *input.ActualIntensity
	}
	sched.CompletionRating = copyInt(input.CompletionRating)
	sched.EnergyLevelBefore = copyInt(input.EnergyLevelBefore)
	sched.EnergyLevelAfter = copyInt(input.EnergyLevelAfter)
	sched.PainLevelBefore = copyInt(input.PainLevelBefore)
	sched.PainLevelAfter = copyInt(input.PainLevelAfter)
	if input.Notes != nil {
		sched.Notes = *input.Notes
	}
	sched.UpdatedAt = now

	rec := s.recommendations[sched.RecommendationID]
	rec.TotalSessionsCompleted++
	if input.ActualDuration != nil {
		rec.TotalMinutesExercised += *input.ActualDuration
	}
	if input.CompletionRating != nil {
		rating := float64(*input.CompletionRating)
		avg := rating
		if rec.AverageUserRating != nil {
			n := float64(rec.TotalSessionsCompleted)
			avg = (*rec.AverageUserRating*(n-1) + rating) / n
		}
		rec.AverageUserRating = &avg
	}
	lastPerformed := now
	rec.LastPerformed = &lastPerformed
	rec.UpdatedAt = now

	s.schedules[id] = sched
	s.recommendations[rec.ID] = rec
	return domain.Completion{Schedule: s.decorateLocked(sched), Recommendation: rec}, nil
}

func (s *Store) decorateLocked(sched domain.Schedule) domain.Schedule {
	rec := s.recommendations[sched.RecommendationID]
	sched.ExerciseName = s.exercises[rec.ExerciseID].Name
	sched.ConditionName = s.conditions[rec.ConditionID].Name
	return sched
}

// ListSchedules implements domain.ScheduleStore.
func (s *Store) ListSchedules(ctx context.Context, owner domain.Owner, from, to *time.Time) ([]domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Schedule, 0)
	for _, sched := range s.ownedSchedulesLocked(owner) {
		if from != nil && sched.ScheduledDate.Before(*from) {
			continue
		}
		if to != nil && sched.ScheduledDate.After(*to) {
			continue
		}
		out = append(out, s.decorateLocked(sched))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ownedSchedulesLocked(owner domain.Owner) []domain.Schedule {
	out := make([]domain.Schedule, 0)
	for _, sched := range s.schedules {
		if sched.TenantID == owner.TenantID && sched.UserID == owner.UserID {
			out = append(out, sched)
		}
	}
	return out
}

// AnalyticsSummary implements domain.ScheduleStore.
func (s *Store) AnalyticsSummary(ctx context.Context, owner domain.Owner) (domain.AnalyticsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.AnalyticsSummary
	var ratingSum float64
	var rated int
	for _, rec := range s.recommendations {
		if rec.Owner() != owner {
			continue
		}
		summary.TotalRecommendations++
		summary.TotalSessionsCompleted += rec.TotalSessionsCompleted
		summary.TotalMinutesExercised += rec.TotalMinutesExercised
		if rec.AverageUserRating != nil {
			ratingSum += *rec.AverageUserRating
			rated++
		}
	}
	if rated > 0 {
		summary.AverageRating = ratingSum / float64(rated)
	}
	return summary, nil
}

// RecentSessions implements domain.ScheduleStore.
func (s *Store) RecentSessions(ctx context.Context, owner domain.Owner, limit int) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completed := make([]domain.Schedule, 0)
	for _, sched := range s.ownedSchedulesLocked(owner) {
		if sched.IsCompleted && sched.CompletedAt != nil {
			completed = append(completed, sched)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		if !completed[i].CompletedAt.Equal(*completed[j].CompletedAt) {
			return completed[i].CompletedAt.After(*completed[j].CompletedAt)
		}
		return completed[i].ID > completed[j].ID
	})
	return s.summariesLocked(completed, limit, func(sched domain.Schedule) *int { return sched.ActualDuration }), nil
}

// UpcomingSessions implements domain.ScheduleStore.
func (s *Store) UpcomingSessions(ctx context.Context, owner domain.Owner, from time.Time, limit int) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]domain.Schedule, 0)
	for _, sched := range s.ownedSchedulesLocked(owner) {
		if !sched.IsCompleted && !sched.ScheduledDate.Before(from) {
			pending = append(pending, sched)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ScheduledDate.Equal(pending[j].ScheduledDate) {
			return pending[i].ScheduledDate.Before(pending[j].ScheduledDate)
		}
		return pending[i].ID < pending[j].ID
	})
	return s.summariesLocked(pending, limit, func(sched domain.Schedule) *int { return copyInt(&sched.ScheduledDuration) }), nil
}

// summariesLocked maps schedules to summaries. Completed sessions report the actual
// duration, upcoming ones the planned duration.
func (s *Store) summariesLocked(schedules []domain.Schedule, limit int, duration func(domain.Schedule) *int) []domain.SessionSummary {
	if limit > 0 && len(schedules) > limit {
		schedules = schedules[:limit]
	}
	out := make([]domain.SessionSummary, 0, len(schedules))
	for _, sched := range schedules {
		sched = s.decorateLocked(sched)
		out = append(out, domain.SessionSummary{
			ScheduleID:    sched.ID,
			ExerciseName:  sched.ExerciseName,
			ScheduledDate: sched.ScheduledDate,
			CompletedAt:   sched.CompletedAt,
			Duration:      duration(sched),
			Rating:        sched.CompletionRating,
		})
	}
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
