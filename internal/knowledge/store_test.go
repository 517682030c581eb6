package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/pluma0/pluma/internal/log"
	"github.com/pluma0/pluma/internal/testutil"
)

// fakeQuerier is an in-memory Querier with call counters.
type fakeQuerier struct {
	mu sync.Mutex

	docs          map[string]Document
	searchResults []Result
	hasAlways     *bool // overrides HasDocument when set

	searchCalls int
	insertCalls int
	hasCalls    int

	insertErr error
	searchErr error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{docs: make(map[string]Document)}
}

func (f *fakeQuerier) SearchDocuments(_ context.Context, _ pgvector.Vector, limit int32) ([]Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if int32(len(f.searchResults)) > limit {
		return f.searchResults[:limit], nil
	}
	return f.searchResults, nil
}

func (f *fakeQuerier) InsertDocument(_ context.Context, doc Document, _ pgvector.Vector) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if _, ok := f.docs[doc.Identifier]; ok {
		return false, nil
	}
	f.docs[doc.Identifier] = doc
	return true, nil
}

func (f *fakeQuerier) HasDocument(_ context.Context, identifier string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasCalls++
	if f.hasAlways != nil {
		return *f.hasAlways, nil
	}
	_, ok := f.docs[identifier]
	return ok, nil
}

func (f *fakeQuerier) Ping(context.Context) error { return nil }

func newTestStore(t *testing.T, q Querier) *Store {
	t.Helper()
	g := testutil.NewGenkit(t)
	emb := testutil.NewMockEmbedder(int(VectorDimension))
	store, err := NewStore(q, emb.RegisterEmbedder(g), log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return store
}

func TestNewStore_Validation(t *testing.T) {
	g := testutil.NewGenkit(t)
	emb := testutil.NewMockEmbedder(int(VectorDimension)).RegisterEmbedder(g)

	if _, err := NewStore(nil, emb, log.NewNop()); err == nil {
		t.Error("NewStore(nil querier) expected error")
	}
	if _, err := NewStore(newFakeQuerier(), nil, log.NewNop()); err == nil {
		t.Error("NewStore(nil embedder) expected error")
	}
}

func TestDocumentID(t *testing.T) {
	a := DocumentID("Effects of Stocking Density on Broiler Performance", 2021)
	b := DocumentID("effects of stocking-density on broiler performance!", 2021)
	if a != b {
		t.Errorf("DocumentID not normalization-stable: %q vs %q", a, b)
	}

	c := DocumentID("Effects of Stocking Density on Broiler Performance", 2022)
	if a == c {
		t.Error("DocumentID should differ across years")
	}

	if len(a) != 32 {
		t.Errorf("DocumentID length = %d, want 32 hex chars", len(a))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	store := newTestStore(t, newFakeQuerier())

	if _, err := store.Search(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Search() error = %v, want ErrEmptyQuery", err)
	}
}

func TestSearch_ClampsSimilarity(t *testing.T) {
	q := newFakeQuerier()
	q.searchResults = []Result{
		{Document: Document{Identifier: "a"}, Similarity: 1.3},
		{Document: Document{Identifier: "b"}, Similarity: 0.8},
		{Document: Document{Identifier: "c"}, Similarity: -0.2},
	}
	store := newTestStore(t, q)

	got, err := store.Search(context.Background(), "broiler fcr targets")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if got[0].Similarity != 1 || got[2].Similarity != 0 {
		t.Errorf("similarities not clamped: %v, %v", got[0].Similarity, got[2].Similarity)
	}
	if TopConfidence(got) != 1 {
		t.Errorf("TopConfidence = %v, want 1", TopConfidence(got))
	}
}

func TestSearch_TopKOption(t *testing.T) {
	q := newFakeQuerier()
	for i := 0; i < 10; i++ {
		q.searchResults = append(q.searchResults, Result{Similarity: 0.5})
	}
	store := newTestStore(t, q)

	got, err := store.Search(context.Background(), "query", WithTopK(3))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len(results) = %d, want 3", len(got))
	}
}

func TestIngestExternal_Validation(t *testing.T) {
	store := newTestStore(t, newFakeQuerier())
	ctx := context.Background()

	if _, err := store.IngestExternal(ctx, Document{Abstract: "a"}); !errors.Is(err, ErrMissingTitle) {
		t.Errorf("missing title error = %v, want ErrMissingTitle", err)
	}
	if _, err := store.IngestExternal(ctx, Document{Title: "t"}); !errors.Is(err, ErrMissingAbstract) {
		t.Errorf("missing abstract error = %v, want ErrMissingAbstract", err)
	}
}

func TestIngestExternal_DerivesIdentifierAndContent(t *testing.T) {
	q := newFakeQuerier()
	store := newTestStore(t, q)

	doc := Document{
		Title:      "Lysine requirements of modern broilers",
		Abstract:   "A dose-response study.",
		Year:       2019,
		SourceName: "europepmc",
	}
	inserted, err := store.IngestExternal(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestExternal() error: %v", err)
	}
	if !inserted {
		t.Fatal("IngestExternal() = false, want inserted")
	}

	wantID := DocumentID(doc.Title, doc.Year)
	stored, ok := q.docs[wantID]
	if !ok {
		t.Fatalf("document not stored under derived identifier %s", wantID)
	}
	if stored.Content == "" {
		t.Error("stored content is empty, want title+abstract")
	}
}

func TestIngestExternal_SecondIngestIsNoOp(t *testing.T) {
	q := newFakeQuerier()
	store := newTestStore(t, q)
	ctx := context.Background()

	doc := Document{Title: "Brooding temperature and chick quality", Abstract: "Field trial.", Year: 2020}

	if _, err := store.IngestExternal(ctx, doc); err != nil {
		t.Fatalf("first ingest error: %v", err)
	}
	inserted, err := store.IngestExternal(ctx, doc)
	if err != nil {
		t.Fatalf("second ingest error: %v", err)
	}
	if inserted {
		t.Error("second ingest reported inserted = true")
	}
	if q.insertCalls != 1 {
		t.Errorf("insert calls = %d, want 1 (existence pre-check should skip)", q.insertCalls)
	}
	if len(q.docs) != 1 {
		t.Errorf("stored rows = %d, want 1", len(q.docs))
	}
}

func TestIngestExternal_ConflictLoserIsNotAnError(t *testing.T) {
	// A concurrent writer lands between the existence pre-check and the
	// insert. The conflict no-op must surface as inserted=false, no error.
	q := newFakeQuerier()
	q.hasAlways = boolPtr(false)
	q.docs[DocumentID("Ascites incidence at altitude", 2018)] = Document{}
	store := newTestStore(t, q)

	inserted, err := store.IngestExternal(context.Background(), Document{
		Title: "Ascites incidence at altitude", Abstract: "Survey.", Year: 2018,
	})
	if err != nil {
		t.Fatalf("IngestExternal() error: %v", err)
	}
	if inserted {
		t.Error("conflict loser reported inserted = true")
	}
	if q.insertCalls != 1 {
		t.Errorf("insert calls = %d, want 1", q.insertCalls)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestTopConfidence_Empty(t *testing.T) {
	if got := TopConfidence(nil); got != 0 {
		t.Errorf("TopConfidence(nil) = %v, want 0", got)
	}
}

func TestEmbedProducesStoredDimension(t *testing.T) {
	g := testutil.NewGenkit(t)
	emb := testutil.NewMockEmbedder(int(VectorDimension))
	store, err := NewStore(newFakeQuerier(), emb.RegisterEmbedder(g), log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	vec, err := store.embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("embed() error: %v", err)
	}
	if int32(len(vec.Slice())) != VectorDimension {
		t.Errorf("embedding dimension = %d, want %d", len(vec.Slice()), VectorDimension)
	}
}
