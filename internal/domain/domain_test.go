package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/market-insights/internal/domain"
)

func TestResolveTarget_EveryContentTypeHasFields(t *testing.T) {
	t.Parallel()

	for _, ct := range domain.ContentTypes {
		assert.NotEmpty(t, ct.CacheModel(), "content type %s has no cache model", ct)
		assert.NotEmpty(t, ct.RouteGroup(), "content type %s has no route group", ct)
		assert.Len(t, ct.CacheTags(), 2)

		supported := 0
		for _, f := range domain.Fields {
			target, err := domain.ResolveTarget(ct, f)
			if err != nil {
				require.ErrorIs(t, err, domain.ErrUnsupportedField)
				continue
			}
			supported++
			assert.Equal(t, string(f), target.Column)
			assert.NotEmpty(t, target.Table)
			assert.NotEmpty(t, target.FKColumn)
		}
		assert.Positive(t, supported, "content type %s has no translatable fields", ct)
	}
}

func TestResolveTarget(t *testing.T) {
	t.Parallel()

	target, err := domain.ResolveTarget(domain.ContentTypeReport, domain.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, domain.TranslationTarget{Table: "report_translations", FKColumn: "report_id", Column: "title"}, target)

	_, err = domain.ResolveTarget(domain.ContentTypeCategory, domain.FieldTitle)
	require.ErrorIs(t, err, domain.ErrUnsupportedField)

	_, err = domain.ResolveTarget(domain.ContentType("video"), domain.FieldTitle)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestEnumsValid(t *testing.T) {
	t.Parallel()

	for _, f := range domain.Fields {
		assert.True(t, f.Valid(), f)
	}
	for _, s := range domain.JobStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, domain.Field("slug").Valid())
	assert.False(t, domain.JobStatus("queued").Valid())
	assert.False(t, domain.ContentType("video").Valid())
}

func TestJobStatus_Transitions(t *testing.T) {
	t.Parallel()

	allowed := map[domain.JobStatus][]domain.JobStatus{
		domain.JobStatusPending:    {domain.JobStatusProcessing},
		domain.JobStatusRetry:      {domain.JobStatusProcessing},
		domain.JobStatusProcessing: {domain.JobStatusCompleted, domain.JobStatusRetry, domain.JobStatusFailed},
	}

	for _, from := range domain.JobStatuses {
		for _, to := range domain.JobStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

}

func TestTranslationJob_RecordFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &domain.TranslationJob{Status: domain.JobStatusProcessing, MaxRetries: 3}

	require.NoError(t, job.RecordFailure("rate limited", now, 5*time.Second))
	assert.Equal(t, domain.JobStatusRetry, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.NextAttemptAt)
	assert.Equal(t, now.Add(5*time.Second), *job.NextAttemptAt)

	job.Status = domain.JobStatusProcessing
	require.NoError(t, job.RecordFailure("rate limited", now, 5*time.Second))
	assert.Equal(t, domain.JobStatusRetry, job.Status)

	job.Status = domain.JobStatusProcessing
	require.NoError(t, job.RecordFailure("still failing", now, 5*time.Second))
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.RetryCount)
	assert.Nil(t, job.NextAttemptAt)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "still failing", *job.ErrorMessage)
}

func TestTranslationJob_RecordSuccess(t *testing.T) {
	t.Parallel()

	now := time.Now()
	msg := "old"
	job := &domain.TranslationJob{Status: domain.JobStatusProcessing, ErrorMessage: &msg, RetryCount: 1}

	require.NoError(t, job.RecordSuccess(domain.TranslationResult{
		Text:         "Marktausblick",
		InputTokens:  120,
		OutputTokens: 8,
		CostUSD:      0.0004,
		Duration:     1500 * time.Millisecond,
		QualityScore: 1,
	}, now))

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	require.NotNil(t, job.TranslatedText)
	assert.Equal(t, "Marktausblick", *job.TranslatedText)
	assert.Equal(t, 128, job.TotalTokens)
	assert.Equal(t, int64(1500), job.DurationMs)
	assert.Nil(t, job.ErrorMessage)
	assert.Equal(t, 1, job.RetryCount)
}

func TestTranslationJob_RecordOutcomeRequiresProcessing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, status := range []domain.JobStatus{
		domain.JobStatusPending, domain.JobStatusRetry, domain.JobStatusCompleted, domain.JobStatusFailed,
	} {
		job := &domain.TranslationJob{Status: status, MaxRetries: 3}

		err := job.RecordSuccess(domain.TranslationResult{Text: "x"}, now)
		require.ErrorIs(t, err, domain.ErrInvalidTransition, "success from %s", status)
		err = job.RecordFailure("boom", now, time.Second)
		require.ErrorIs(t, err, domain.ErrInvalidTransition, "failure from %s", status)

		assert.Equal(t, status, job.Status)
		assert.Zero(t, job.RetryCount)
		assert.Nil(t, job.TranslatedText)
		assert.Nil(t, job.ErrorMessage)
	}
}

func TestQueueRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := domain.QueueRequest{
		ContentType:  domain.ContentTypeReport,
		ContentID:    "r1",
		SourceLocale: "en",
		TargetLocale: "de",
		FieldName:    domain.FieldTitle,
		OriginalText: "Market Outlook",
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(r *domain.QueueRequest){
		"missing content id": func(r *domain.QueueRequest) { r.ContentID = " " },
		"missing text":       func(r *domain.QueueRequest) { r.OriginalText = "" },
		"bad locale":         func(r *domain.QueueRequest) { r.TargetLocale = "not a locale" },
		"same locale":        func(r *domain.QueueRequest) { r.TargetLocale = "en" },
		"unknown field":      func(r *domain.QueueRequest) { r.FieldName = "slug" },
		"unknown type":       func(r *domain.QueueRequest) { r.ContentType = "video" },
		"field not on type":  func(r *domain.QueueRequest) { r.FieldName = domain.FieldName },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := valid
			mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrUnsupportedField), err)
		})
	}
}

func TestReportFilter_Normalize(t *testing.T) {
	t.Parallel()

	f := domain.ReportFilter{Limit: 1000, Offset: -3}
	f.Normalize()
	assert.Equal(t, domain.ReportFilter{Locale: "en", Limit: domain.MaxPageSize}, f)
}
