package progression

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonnydry/progger/internal/cache"
	"github.com/jonnydry/progger/internal/llm"
	"github.com/jonnydry/progger/internal/music"
	"github.com/jonnydry/progger/internal/resilience"
)

const providerPayload = `{
  "progression": [
    {"chordName": "Cmaj7", "musicalFunction": "Tonic", "relationToKey": "Imaj7"},
    {"chordName": "Am7", "musicalFunction": "Submediant", "relationToKey": "vi7"},
    {"chordName": "Dm7", "musicalFunction": "Supertonic", "relationToKey": "ii7"},
    {"chordName": "G7", "musicalFunction": "Dominant", "relationToKey": "V7"}
  ],
  "scales": [
    {"name": "C Major", "rootNote": "C"},
    {"name": "A Minor Pentatonic", "rootNote": "A"}
  ],
  "detectedKey": "C",
  "detectedMode": "Major"
}`

// fakeClient scripts provider responses and counts calls.
type fakeClient struct {
	calls     atomic.Int64
	responses []func() ([]byte, error)
	fallback  func() ([]byte, error)
}

func (f *fakeClient) Complete(ctx context.Context, system, user string) ([]byte, error) {
	n := int(f.calls.Add(1)) - 1
	if n < len(f.responses) {
		return f.responses[n]()
	}
	if f.fallback != nil {
		return f.fallback()
	}
	return []byte(providerPayload), nil
}

func okResponse() ([]byte, error) { return []byte(providerPayload), nil }
func errResponse(err error) func() ([]byte, error) {
	return func() ([]byte, error) { return nil, err }
}

func fastRetry() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func newTestService(t *testing.T, client llm.Client) (*Service, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(ServiceConfig{
		Cache:       store,
		CacheTTL:    time.Hour,
		Provider:    client,
		RetryPolicy: fastRetry(),
	})
	return svc, store
}

func testRequest() llm.GenerationRequest {
	return llm.GenerationRequest{
		Key:        "C",
		Mode:       "Major",
		ChordCount: 4,
	}
}

func TestGenerateValidatesAndReturnsResult(t *testing.T) {
	client := &fakeClient{}
	svc, _ := newTestService(t, client)

	result, err := svc.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Progression) != 4 || len(result.Scales) != 2 {
		t.Fatalf("unexpected result shape: %+v", result)
	}
	if got := client.calls.Load(); got != 1 {
		t.Fatalf("expected 1 provider call, got %d", got)
	}
}

func TestGenerateServesRepeatFromCache(t *testing.T) {
	client := &fakeClient{}
	svc, store := newTestService(t, client)
	ctx := context.Background()

	if _, err := svc.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	// A second service sharing the store models another process: its
	// coalescer is cold, so the hit must come from the cache itself.
	svc2 := NewService(ServiceConfig{
		Cache:       store,
		Provider:    client,
		RetryPolicy: fastRetry(),
	})
	second, err := svc2.Generate(ctx, testRequest())
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if second == nil || len(second.Progression) != 4 {
		t.Fatalf("unexpected cached result: %+v", second)
	}
	if got := client.calls.Load(); got != 1 {
		t.Fatalf("repeat request must be served from cache, got %d provider calls", got)
	}
}

func TestGenerateCoalescesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{fallback: func() ([]byte, error) {
		<-release
		return []byte(providerPayload), nil
	}}
	svc, _ := newTestService(t, client)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*music.Result, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Generate(context.Background(), testRequest())
		}(i)
	}

	// Let the goroutines pile up on the single in-flight call.
	for client.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := client.calls.Load(); got != 1 {
		t.Fatalf("expected 1 coalesced provider call, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d received a different result instance", i)
		}
	}
}

func TestGenerateInvalidatesStaleCacheEntry(t *testing.T) {
	client := &fakeClient{}
	svc, store := newTestService(t, client)
	ctx := context.Background()

	// Seed the cache under the request's fingerprint with a result whose
	// primary scale no longer matches the requested key.
	stale := music.Result{
		Progression: []music.ChordEntry{{ChordName: "D", MusicalFunction: "Tonic", RelationToKey: "I"}},
		Scales:      []music.ScaleEntry{{Name: "D Major", RootNote: "D"}},
	}
	raw, _ := json.Marshal(&stale)
	fingerprint := cache.Fingerprint(testRequest())
	if err := store.Set(ctx, fingerprint, raw, time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	result, err := svc.Generate(ctx, testRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Scales[0].Name != "C Major" {
		t.Fatalf("expected regenerated result, got %+v", result)
	}
	if got := client.calls.Load(); got != 1 {
		t.Fatalf("stale entry must force a provider call, got %d", got)
	}
}

func TestGenerateRetriesTransientProviderFailure(t *testing.T) {
	client := &fakeClient{responses: []func() ([]byte, error){
		errResponse(&llm.StatusError{Code: 500, Message: "upstream blew up"}),
		errResponse(&llm.StatusError{Code: 503, Message: "still down"}),
		okResponse,
	}}
	svc, _ := newTestService(t, client)

	result, err := svc.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate should recover via retry: %v", err)
	}
	if result == nil {
		t.Fatalf("expected a result after retries")
	}
	if got := client.calls.Load(); got != 3 {
		t.Fatalf("expected 3 provider calls, got %d", got)
	}
}

func TestGenerateDoesNotRetryMalformedData(t *testing.T) {
	// Structurally valid JSON that fails the domain grammar.
	bad := `{"progression": [{"chordName": "Xylo7", "musicalFunction": "Tonic", "relationToKey": "I"}], "scales": [{"name": "C Major", "rootNote": "C"}]}`
	client := &fakeClient{fallback: func() ([]byte, error) { return []byte(bad), nil }}
	svc, _ := newTestService(t, client)

	_, err := svc.Generate(context.Background(), testRequest())
	if !music.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := client.calls.Load(); got != 1 {
		t.Fatalf("malformed data must not be retried, got %d calls", got)
	}
}

func TestGenerateStopsWhenCircuitOpens(t *testing.T) {
	boom := &llm.StatusError{Code: 500, Message: "down"}
	client := &fakeClient{fallback: errResponse(boom)}

	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Hour,
	})
	svc := NewService(ServiceConfig{
		Cache:       store,
		Provider:    client,
		Breaker:     breaker,
		RetryPolicy: fastRetry(),
	})

	_, err := svc.Generate(context.Background(), testRequest())
	if err == nil {
		t.Fatalf("expected failure")
	}
	// Two failures trip the breaker; the next attempt is rejected without
	// reaching the provider and is not retried further.
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen surfaced, got %v", err)
	}
	if got := client.calls.Load(); got != 2 {
		t.Fatalf("expected 2 provider calls before the breaker opened, got %d", got)
	}

	// While open, new fingerprints fail fast with zero provider calls.
	req := testRequest()
	req.Mode = "Minor"
	if _, err := svc.Generate(context.Background(), req); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected fail-fast rejection, got %v", err)
	}
	if got := client.calls.Load(); got != 2 {
		t.Fatalf("open breaker must not admit provider calls, got %d", got)
	}
}

func TestAnalyzeCustomUsesOwnNamespace(t *testing.T) {
	client := &fakeClient{}
	svc, store := newTestService(t, client)
	ctx := context.Background()

	result, err := svc.AnalyzeCustom(ctx, []string{"Cmaj7", "Am7", "Dm7", "G7"})
	if err != nil {
		t.Fatalf("AnalyzeCustom: %v", err)
	}
	if len(result.Progression) != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}

	key := cache.CustomFingerprint([]string{"Cmaj7", "Am7", "Dm7", "G7"})
	if ok, _ := store.Exists(ctx, key); !ok {
		t.Fatalf("expected analysis cached under %q", key)
	}
}
