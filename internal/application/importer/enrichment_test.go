package importer_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	app "github.com/mohammadpnp/school-import/internal/application/importer"
	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichAppliesCorrections(t *testing.T) {
	t.Parallel()

	normalizer := &fakeNormalizer{fix: func(h domain.NormalizationHint) domain.NormalizationResult {
		return domain.NormalizationResult{
			Index:          h.Index,
			Name:           strings.ReplaceAll(h.Name, "E.E.", "Escola Estadual"),
			SchoolType:     "public",
			EducationLevel: "elementary,high_school",
			Email:          "not an email",
		}
	}}
	e := app.NewEnricher(normalizer, nil, app.EnricherConfig{}, nil)

	res := e.Enrich(context.Background(), "job-1", []domain.RawSchoolRecord{{
		Row:        3,
		Name:       "E.E.  Carlos Gomes",
		PostalCode: "13010-000",
		Address:    "Rua X",
		City:       "Campinas",
		State:      "sp",
		Phone:      "19 3232-1010",
		Email:      "Secretaria@Escola.sp.gov.br",
	}})

	require.Empty(t, res.Skipped)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "Escola Estadual Carlos Gomes", rec.Name)
	assert.Equal(t, "escola-estadual-carlos-gomes-campinas", rec.Slug)
	assert.Equal(t, "13010000", rec.PostalCode)
	assert.Equal(t, "SP", rec.State)
	assert.Equal(t, "(19) 3232-1010", rec.Phone)
	assert.Equal(t, "secretaria@escola.sp.gov.br", rec.Email)
	assert.Equal(t, domain.TypePublic, rec.SchoolType)
	assert.Equal(t, []string{domain.LevelElementary, domain.LevelHighSchool}, rec.EducationLevels)
	assert.True(t, rec.IsActive)
	assert.Equal(t, "job-1", rec.ImportJobID)
	assert.Equal(t, int64(3), rec.SourceRow)
}

func TestEnrichDegradesWhenNormalizerFails(t *testing.T) {
	t.Parallel()

	for name, normalizer := range map[string]*fakeNormalizer{
		"error": {err: errors.New("context deadline exceeded")},
		"short": {fix: func(h domain.NormalizationHint) domain.NormalizationResult {
			return domain.NormalizationResult{Index: h.Index, Name: "Wrong"}
		}},
	} {
		t.Run(name, func(t *testing.T) {
			e := app.NewEnricher(shortNormalizer{normalizer}, nil, app.EnricherConfig{ChunkSize: 4, Concurrency: 2}, nil)

			rows := make([]domain.RawSchoolRecord, 10)
			for i := range rows {
				rows[i] = domain.RawSchoolRecord{Row: int64(i), Name: fmt.Sprintf("escola %d", i), PostalCode: "01001000", City: "São Paulo"}
			}

			res := e.Enrich(context.Background(), "job-1", rows)
			require.Empty(t, res.Skipped)
			require.Len(t, res.Records, 10)
			for i, rec := range res.Records {
				assert.Equal(t, fmt.Sprintf("escola %d", i), rec.Name)
				assert.Equal(t, int64(i), rec.SourceRow)
			}
		})
	}
}

// shortNormalizer drops the last result so the response no longer lines up
// with the request.
type shortNormalizer struct {
	*fakeNormalizer
}

func (s shortNormalizer) Normalize(ctx context.Context, hints []domain.NormalizationHint) ([]domain.NormalizationResult, error) {
	out, err := s.fakeNormalizer.Normalize(ctx, hints)
	if err != nil || len(out) == 0 {
		return out, err
	}
	return out[:len(out)-1], nil
}

func TestEnrichFillsAddressOncePerPostalCode(t *testing.T) {
	t.Parallel()

	postal := newFakePostal(map[string]domain.PostalAddress{
		"01001000": {AddressLine: "Praça da Sé", Neighborhood: "Sé", City: "São Paulo", Region: "SP"},
	})
	e := app.NewEnricher(nil, postal, app.EnricherConfig{ChunkSize: 2, Concurrency: 3}, nil)

	rows := []domain.RawSchoolRecord{
		{Row: 0, Name: "Escola A", PostalCode: "01001-000"},
		{Row: 1, Name: "Escola B", PostalCode: "01001000"},
		{Row: 2, Name: "Escola C", PostalCode: "1001000", Address: "Rua Própria"},
		{Row: 3, Name: "Escola D", PostalCode: "99999-999"},
		{Row: 4, Name: "Escola E", PostalCode: "01001000", Address: "Rua E", City: "Osasco", State: "SP"},
		{Row: 5, Name: "Escola F", PostalCode: "12"},
		{Row: 6, Name: "  ", PostalCode: "01001000"},
	}

	res := e.Enrich(context.Background(), "job-1", rows)

	require.Len(t, res.Records, 5)
	assert.Equal(t, "Praça da Sé", res.Records[0].Address)
	assert.Equal(t, "São Paulo", res.Records[0].City)
	assert.Equal(t, "escola-a-sao-paulo", res.Records[0].Slug)
	assert.Equal(t, "Rua Própria", res.Records[2].Address)
	assert.Equal(t, "Sé", res.Records[2].Neighborhood)
	assert.Equal(t, "", res.Records[3].City)
	assert.Equal(t, "Osasco", res.Records[4].City)

	for i, rec := range res.Records {
		assert.Equal(t, []int64{0, 1, 2, 3, 4}[i], rec.SourceRow)
	}

	assert.Equal(t, 1, postal.calls["01001000"])
	assert.Equal(t, 1, postal.calls["99999999"])
	assert.Equal(t, 2, postal.totalCalls())

	require.Len(t, res.Skipped, 2)
	for _, skip := range res.Skipped {
		assert.Equal(t, domain.RowEnrichmentSkip, skip.Kind)
		assert.NotEmpty(t, skip.Reason)
	}
	assert.ElementsMatch(t, []int64{5, 6}, []int64{res.Skipped[0].Row, res.Skipped[1].Row})
}

func TestEnrichPostalFailureKeepsRow(t *testing.T) {
	t.Parallel()

	postal := newFakePostal(nil)
	postal.err = errors.New("503 service unavailable")
	e := app.NewEnricher(nil, postal, app.EnricherConfig{}, nil)

	res := e.Enrich(context.Background(), "job-1", []domain.RawSchoolRecord{
		{Row: 0, Name: "Escola A", PostalCode: "01001000"},
	})
	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, "escola-a", res.Records[0].Slug)
}

func TestEnrichSkipsNamesWithoutSlug(t *testing.T) {
	t.Parallel()

	e := app.NewEnricher(nil, nil, app.EnricherConfig{}, nil)

	res := e.Enrich(context.Background(), "job-1", []domain.RawSchoolRecord{
		{Row: 0, Name: "???", PostalCode: "01001000"},
	})
	assert.Empty(t, res.Records)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, int64(0), res.Skipped[0].Row)
}

type recordingNormalizer struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	sizes    []int
}

func (r *recordingNormalizer) Normalize(ctx context.Context, hints []domain.NormalizationHint) ([]domain.NormalizationResult, error) {
	r.mu.Lock()
	r.inFlight++
	r.peak = max(r.peak, r.inFlight)
	r.sizes = append(r.sizes, len(hints))
	r.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	out := make([]domain.NormalizationResult, len(hints))
	for i, h := range hints {
		out[i] = domain.NormalizationResult{Index: h.Index, Name: h.Name + " Centro"}
	}
	return out, nil
}

func TestEnrichBoundsChunksAndConcurrency(t *testing.T) {
	t.Parallel()

	rows := make([]domain.RawSchoolRecord, 530)
	for i := range rows {
		rows[i] = domain.RawSchoolRecord{
			Row:        int64(i),
			Name:       fmt.Sprintf("Escola %03d", i),
			PostalCode: "11010-000",
			Address:    "Rua A",
			City:       "Santos",
			State:      "SP",
		}
	}

	normalizer := &recordingNormalizer{}
	e := app.NewEnricher(normalizer, nil, app.EnricherConfig{}, nil)
	res := e.Enrich(context.Background(), "job-1", rows)

	require.Empty(t, res.Skipped)
	require.Len(t, res.Records, len(rows))
	for i, rec := range res.Records {
		assert.Equal(t, int64(i), rec.SourceRow)
		assert.Equal(t, fmt.Sprintf("Escola %03d Centro", i), rec.Name)
	}

	sizes := append([]int(nil), normalizer.sizes...)
	sort.Ints(sizes)
	assert.Equal(t, []int{30, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50}, sizes)
	assert.LessOrEqual(t, normalizer.peak, 5)
	assert.GreaterOrEqual(t, normalizer.peak, 1)
}
