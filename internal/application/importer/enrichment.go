package importer

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/mohammadpnp/school-import/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type EnricherConfig struct {
	// ChunkSize is the number of rows sent per normalizer call.
	ChunkSize int
	// Concurrency caps in-flight normalizer calls.
	Concurrency int
}

// Enricher turns raw rows into commit candidates. Both collaborators are
// optional; without them rows pass through with local normalization only.
type Enricher struct {
	normalizer domain.TextNormalizer
	postal     domain.PostalLookup
	cfg        EnricherConfig
	logger     *logrus.Entry
}

type EnrichmentResult struct {
	Records []domain.NormalizedSchoolRecord
	Skipped []domain.RowError
}

func NewEnricher(normalizer domain.TextNormalizer, postal domain.PostalLookup, cfg EnricherConfig, logger *logrus.Entry) *Enricher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Enricher{normalizer: normalizer, postal: postal, cfg: cfg, logger: logger}
}

type candidate struct {
	raw        domain.RawSchoolRecord
	name       string
	postalCode string
}

// Enrich never fails: collaborator errors degrade to pass-through values.
// Records are returned in source order.
func (e *Enricher) Enrich(ctx context.Context, jobID string, rows []domain.RawSchoolRecord) EnrichmentResult {
	var result EnrichmentResult

	candidates := make([]candidate, 0, len(rows))
	for _, raw := range rows {
		name := domain.CleanText(raw.Name)
		if name == "" {
			result.Skipped = append(result.Skipped, skipRow(raw.Row, "missing school name"))
			continue
		}
		code, ok := domain.NormalizePostalCode(raw.PostalCode)
		if !ok {
			result.Skipped = append(result.Skipped, skipRow(raw.Row, fmt.Sprintf("invalid postal code %q", raw.PostalCode)))
			continue
		}
		candidates = append(candidates, candidate{raw: raw, name: name, postalCode: code})
	}

	var cache *postalCache
	if e.postal != nil {
		cache = newPostalCache(e.postal, e.logger.WithField("job_id", jobID))
	}

	records := make([]domain.NormalizedSchoolRecord, len(candidates))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for start := 0; start < len(candidates); start += e.cfg.ChunkSize {
		start := start
		end := min(start+e.cfg.ChunkSize, len(candidates))
		g.Go(func() error {
			e.enrichChunk(ctx, jobID, candidates[start:end], records[start:end], cache)
			return nil
		})
	}
	_ = g.Wait()

	result.Records = make([]domain.NormalizedSchoolRecord, 0, len(records))
	for _, rec := range records {
		if rec.Slug == "" {
			result.Skipped = append(result.Skipped, skipRow(rec.SourceRow, fmt.Sprintf("school name %q has no usable characters", rec.Name)))
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result
}

func (e *Enricher) enrichChunk(ctx context.Context, jobID string, chunk []candidate, out []domain.NormalizedSchoolRecord, cache *postalCache) {
	corrections := e.normalize(ctx, jobID, chunk)

	for i, c := range chunk {
		raw := c.raw
		if cache != nil && raw.NeedsPostalLookup() {
			if addr, found := cache.get(ctx, c.postalCode); found {
				raw = fillAddress(raw, addr)
			}
		}

		fix, ok := corrections[i]
		out[i] = buildRecord(jobID, raw, c, fix, ok)
	}
}

// normalize returns corrections keyed by chunk position. A failed or
// misaligned response yields no corrections for the whole chunk.
func (e *Enricher) normalize(ctx context.Context, jobID string, chunk []candidate) map[int]domain.NormalizationResult {
	if e.normalizer == nil {
		return nil
	}

	hints := make([]domain.NormalizationHint, len(chunk))
	for i, c := range chunk {
		hints[i] = c.raw.Hint(i)
	}

	m := getMetrics()
	results, err := e.normalizer.Normalize(ctx, hints)
	if err == nil && len(results) != len(hints) {
		err = fmt.Errorf("normalizer returned %d results for %d rows", len(results), len(hints))
	}
	if err != nil {
		m.normalizerTotal.WithLabelValues("fallback").Inc()
		e.logger.WithError(err).WithFields(logrus.Fields{
			"job_id":    jobID,
			"first_row": chunk[0].raw.Row,
			"rows":      len(chunk),
		}).Warn("text normalization unavailable, passing rows through")
		return nil
	}
	m.normalizerTotal.WithLabelValues("ok").Inc()

	corrections := make(map[int]domain.NormalizationResult, len(results))
	for _, r := range results {
		if r.Index >= 0 && r.Index < len(chunk) {
			corrections[r.Index] = r
		}
	}
	return corrections
}

func fillAddress(raw domain.RawSchoolRecord, addr domain.PostalAddress) domain.RawSchoolRecord {
	if strings.TrimSpace(raw.Address) == "" {
		raw.Address = addr.AddressLine
	}
	if strings.TrimSpace(raw.Neighborhood) == "" {
		raw.Neighborhood = addr.Neighborhood
	}
	if strings.TrimSpace(raw.City) == "" {
		raw.City = addr.City
	}
	if strings.TrimSpace(raw.State) == "" {
		raw.State = addr.Region
	}
	return raw
}

func buildRecord(jobID string, raw domain.RawSchoolRecord, c candidate, fix domain.NormalizationResult, corrected bool) domain.NormalizedSchoolRecord {
	name := c.name
	email := domain.NormalizeEmail(raw.Email)
	var aiType, aiLevel string
	if corrected {
		if n := domain.CleanText(fix.Name); n != "" {
			name = n
		}
		if e := domain.NormalizeEmail(fix.Email); e != "" {
			email = e
		}
		aiType, aiLevel = fix.SchoolType, fix.EducationLevel
	}

	city := domain.CleanText(raw.City)
	return domain.NormalizedSchoolRecord{
		ImportJobID:     jobID,
		SourceRow:       raw.Row,
		Name:            name,
		Slug:            domain.Slug(name, city),
		PostalCode:      c.postalCode,
		Address:         domain.CleanText(raw.Address),
		Neighborhood:    domain.CleanText(raw.Neighborhood),
		City:            city,
		State:           domain.NormalizeState(raw.State),
		Phone:           domain.FormatPhone(raw.Phone),
		Email:           email,
		SchoolType:      domain.ClassifyType(aiType, raw.TypeHint, name),
		EducationLevels: domain.ClassifyLevels(aiLevel, raw.TypeHint, name),
		IsActive:        true,
	}
}

func skipRow(row int64, reason string) domain.RowError {
	return domain.RowError{Row: row, Kind: domain.RowEnrichmentSkip, Reason: domain.TruncateReason(reason)}
}
