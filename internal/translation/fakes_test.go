package translation_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/market-insights/internal/domain"
	"github.com/jonesrussell/market-insights/internal/llm"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore mirrors the claim semantics of the SQL repository.
type memStore struct {
	mu          sync.Mutex
	jobs        map[string]*domain.TranslationJob
	records     map[string]string
	seq         int
	completeErr error
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string]*domain.TranslationJob{}, records: map[string]string{}}
}

func recordKey(table, contentID, locale, column string) string {
	return table + "|" + contentID + "|" + locale + "|" + column
}

func (s *memStore) Create(_ context.Context, job *domain.TranslationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.CreatedAt.IsZero() {
		s.seq++
		job.CreatedAt = time.Unix(int64(s.seq), 0)
	}
	job.UpdatedAt = job.CreatedAt
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.TranslationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) ClaimPending(_ context.Context, id string, now time.Time) (*domain.TranslationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != domain.JobStatusPending {
		return nil, domain.ErrJobNotClaimable
	}
	j.Status = domain.JobStatusProcessing
	j.StartedAt = &now
	cp := *j
	return &cp, nil
}

func (s *memStore) ClaimBatch(_ context.Context, limit int, now time.Time) ([]domain.TranslationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*domain.TranslationJob
	for _, j := range s.jobs {
		retryDue := j.Status == domain.JobStatusRetry && (j.NextAttemptAt == nil || !j.NextAttemptAt.After(now))
		if j.Status == domain.JobStatusPending || retryDue {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool {
		if due[a].Priority != due[b].Priority {
			return due[a].Priority > due[b].Priority
		}
		if !due[a].CreatedAt.Equal(due[b].CreatedAt) {
			return due[a].CreatedAt.Before(due[b].CreatedAt)
		}
		return due[a].ID < due[b].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]domain.TranslationJob, 0, len(due))
	for _, j := range due {
		j.Status = domain.JobStatusProcessing
		j.StartedAt = &now
		out = append(out, *j)
	}
	return out, nil
}

func (s *memStore) Complete(_ context.Context, job *domain.TranslationJob) error {
	target, err := domain.ResolveTarget(job.ContentType, job.FieldName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	if !s.holdsClaim(job) {
		return domain.ErrJobNotClaimable
	}
	cp := *job
	s.jobs[job.ID] = &cp
	s.records[recordKey(target.Table, job.ContentID, job.TargetLocale, target.Column)] = *job.TranslatedText
	return nil
}

func (s *memStore) SaveFailure(_ context.Context, job *domain.TranslationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.holdsClaim(job) {
		return domain.ErrJobNotClaimable
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

// holdsClaim mirrors the repository fence: the row must still be
// processing under the claim the caller started.
func (s *memStore) holdsClaim(job *domain.TranslationJob) bool {
	stored, ok := s.jobs[job.ID]
	if !ok || stored.Status != domain.JobStatusProcessing {
		return false
	}
	if stored.StartedAt == nil || job.StartedAt == nil {
		return false
	}
	return stored.StartedAt.Equal(*job.StartedAt)
}

// reclaim simulates a stale reset followed by another worker's claim.
func (s *memStore) reclaim(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.Status = domain.JobStatusProcessing
	j.StartedAt = &at
}

func (s *memStore) job(id string) domain.TranslationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) record(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	return v, ok
}

type memTemplates struct {
	mu      sync.Mutex
	active  *domain.PromptTemplate
	creates int
}

func (m *memTemplates) GetActive(_ context.Context, promptType string) (*domain.PromptTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.PromptType != promptType {
		return nil, domain.ErrNotFound
	}
	cp := *m.active
	return &cp, nil
}

func (m *memTemplates) Create(_ context.Context, t *domain.PromptTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.active == nil {
		cp := *t
		m.active = &cp
	}
	return nil
}

type memUsage struct {
	mu   sync.Mutex
	logs []domain.UsageLog
	err  error
}

func (m *memUsage) Append(_ context.Context, l *domain.UsageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memUsage) all() []domain.UsageLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.UsageLog(nil), m.logs...)
}

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	reqs  []llm.Request
	fn    func(req llm.Request) (*llm.Response, error)

	// honorCtx makes Complete fail with ctx.Err() like a real HTTP client.
	honorCtx bool
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if f.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.calls++
	f.reqs = append(f.reqs, req)
	fn := f.fn
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func echoLLM(translations map[string]string) *fakeLLM {
	return &fakeLLM{fn: func(req llm.Request) (*llm.Response, error) {
		text, ok := translations[req.User]
		if !ok {
			text = "[de] " + req.User
		}
		return &llm.Response{Text: text, Model: "claude-3-5-haiku-latest", InputTokens: 100, OutputTokens: 10}, nil
	}}
}

func failingLLM() *fakeLLM {
	return &fakeLLM{fn: func(llm.Request) (*llm.Response, error) {
		return nil, errors.New("upstream overloaded")
	}}
}

type recordingInvalidator struct {
	mu   sync.Mutex
	tags []string
	err  error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tags ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tags...)
	return r.err
}
