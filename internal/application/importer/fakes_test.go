package importer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
)

type fakeJobRepo struct {
	mu       sync.Mutex
	jobs     map[string]domain.ImportJob
	leases   map[string]time.Time
	nextID   int
	saveErr    error
	getErr     error
	enqueueErr error
	heartbeats int
	failures   []string
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]domain.ImportJob{}, leases: map[string]time.Time{}}
}

func (f *fakeJobRepo) Enqueue(ctx context.Context, job domain.ImportJob) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.nextID++
	job.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", f.nextID)
	job.CreatedAt = time.Now().UTC()
	f.jobs[job.ID] = job
	return job.ID, nil
}

func (f *fakeJobRepo) Get(ctx context.Context, jobID string) (domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.ImportJob{}, f.getErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ImportJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) SaveCheckpoint(ctx context.Context, job domain.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cur := f.jobs[job.ID]
	if cur.Status.Terminal() || cur.CursorLine > job.CursorLine {
		return domain.ErrStaleCheckpoint
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobRepo) MarkFailed(ctx context.Context, jobID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	if job.Status.Terminal() {
		return nil
	}
	job.Status = domain.StatusFailed
	job.ErrorMessage = &reason
	f.jobs[jobID] = job
	f.failures = append(f.failures, reason)
	return nil
}

func (f *fakeJobRepo) AcquireLease(ctx context.Context, jobID string, d time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if until, ok := f.leases[jobID]; ok && until.After(now) {
		return false, nil
	}
	f.leases[jobID] = now.Add(d)
	return true, nil
}

func (f *fakeJobRepo) Heartbeat(ctx context.Context, jobID string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	if _, ok := f.leases[jobID]; ok {
		f.leases[jobID] = time.Now().Add(d)
	}
	return nil
}

func (f *fakeJobRepo) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func (f *fakeJobRepo) ReleaseLease(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.leases, jobID)
	return nil
}

func (f *fakeJobRepo) ListResumable(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ImportJob
	for _, job := range f.jobs {
		if !job.Status.Terminal() && len(out) < limit {
			out = append(out, job)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) job(id string) domain.ImportJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id]
}

func (f *fakeJobRepo) put(job domain.ImportJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

type fakeFileStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	n       int
	openErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: map[string][]byte{}}
}

func (f *fakeFileStore) Save(ctx context.Context, fileName string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	path := fmt.Sprintf("%d-%s", f.n, fileName)
	f.files[path] = data
	return path, nil
}

func (f *fakeFileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFileStore) Remove(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	return nil
}

type sourceKey struct {
	job string
	row int64
}

// fakeSchoolStore mimics the unique slug and (job, row) indexes. Like a
// multi-row INSERT, a call either stores every record or none.
type fakeSchoolStore struct {
	mu      sync.Mutex
	bySlug  map[string]domain.NormalizedSchoolRecord
	bySrc   map[sourceKey]bool
	reject  func(domain.NormalizedSchoolRecord) bool
	err     error
	calls   int
	bulkLen []int
}

func newFakeSchoolStore() *fakeSchoolStore {
	return &fakeSchoolStore{bySlug: map[string]domain.NormalizedSchoolRecord{}, bySrc: map[sourceKey]bool{}}
}

func (f *fakeSchoolStore) InsertSchools(ctx context.Context, records []domain.NormalizedSchoolRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.bulkLen = append(f.bulkLen, len(records))
	if f.err != nil {
		return f.err
	}

	slugs := map[string]bool{}
	for _, rec := range records {
		if _, ok := f.bySlug[rec.Slug]; ok || slugs[rec.Slug] {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSlug, rec.Slug)
		}
		slugs[rec.Slug] = true
		if f.bySrc[sourceKey{rec.ImportJobID, rec.SourceRow}] {
			return fmt.Errorf("%w: row %d", domain.ErrAlreadyImported, rec.SourceRow)
		}
		if f.reject != nil && f.reject(rec) {
			return fmt.Errorf("%w: value too long", domain.ErrRejectedRecord)
		}
	}
	for _, rec := range records {
		f.bySlug[rec.Slug] = rec
		f.bySrc[sourceKey{rec.ImportJobID, rec.SourceRow}] = true
	}
	return nil
}

func (f *fakeSchoolStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bySlug)
}

type fakeNormalizer struct {
	mu    sync.Mutex
	calls int
	err   error
	fix   func(domain.NormalizationHint) domain.NormalizationResult
}

func (f *fakeNormalizer) Normalize(ctx context.Context, hints []domain.NormalizationHint) ([]domain.NormalizationResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.NormalizationResult, 0, len(hints))
	for _, h := range hints {
		out = append(out, f.fix(h))
	}
	return out, nil
}

type fakePostal struct {
	mu    sync.Mutex
	calls map[string]int
	addrs map[string]domain.PostalAddress
	err   error
}

func newFakePostal(addrs map[string]domain.PostalAddress) *fakePostal {
	return &fakePostal{calls: map[string]int{}, addrs: addrs}
}

func (f *fakePostal) Lookup(ctx context.Context, code string) (domain.PostalAddress, bool, error) {
	f.mu.Lock()
	f.calls[code]++
	f.mu.Unlock()
	if f.err != nil {
		return domain.PostalAddress{}, false, f.err
	}
	addr, ok := f.addrs[code]
	return addr, ok, nil
}

func (f *fakePostal) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// schoolsCSV builds a file with n distinct schools.
func schoolsCSV(n int) string {
	var b strings.Builder
	b.WriteString("nome;cep;cidade;uf;endereco\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Escola %04d;11010-%03d;Santos;SP;Rua %d\n", i, i%1000, i)
	}
	return b.String()
}
