package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/scout/internal/filters"
)

type recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorder) publish(_ uuid.UUID, result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func change(version uint64, region string) filters.Change {
	state := filters.DefaultState()
	if region != "" {
		state.Dimensions["region"] = []string{region}
	}
	codec := filters.NewCodec(filters.DefaultSchema())
	return filters.Change{
		Version:  version,
		State:    state,
		Query:    codec.Encode(state),
		QueryKey: codec.QueryKey(state),
	}
}

func TestRefresherFetchesOnQueryChange(t *testing.T) {
	rec := &recorder{}
	var seen []filters.Query
	var mu sync.Mutex
	r := NewRefresher(func(_ context.Context, q filters.Query) (any, error) {
		mu.Lock()
		seen = append(seen, q)
		mu.Unlock()
		return q.Dimensions["region"], nil
	}, rec.publish, time.Second)

	id := uuid.New()
	r.Observe(id, change(1, "NCR"))
	r.Wait()

	results := rec.all()
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].Version)
	assert.Equal(t, []string{"NCR"}, results[0].Data)
	assert.NoError(t, results[0].Err)
	assert.Len(t, seen, 1)
}

func TestRefresherSkipsUnchangedQueryKey(t *testing.T) {
	rec := &recorder{}
	calls := 0
	r := NewRefresher(func(context.Context, filters.Query) (any, error) {
		calls++
		return nil, nil
	}, rec.publish, 0)

	id := uuid.New()
	r.Observe(id, change(1, "NCR"))
	r.Wait()

	drillOnly := change(2, "NCR")
	drillOnly.State.Drilldown = []filters.DrilldownLevel{{Level: "region", Value: "NCR"}}
	r.Observe(id, drillOnly)
	r.Wait()

	assert.Equal(t, 1, calls)
	assert.Len(t, rec.all(), 1)
}

func TestRefresherDiscardsStaleResults(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	started := make(chan string, 2)

	r := NewRefresher(func(ctx context.Context, q filters.Query) (any, error) {
		region := q.Dimensions["region"][0]
		started <- region
		if region == "NCR" {
			// The slow request ignores cancellation, as a misbehaving backend would.
			<-release
		}
		return region, nil
	}, rec.publish, 0)

	id := uuid.New()
	r.Observe(id, change(1, "NCR"))
	require.Equal(t, "NCR", <-started)

	r.Observe(id, change(2, "Cebu"))
	require.Equal(t, "Cebu", <-started)

	close(release)
	r.Wait()

	results := rec.all()
	require.Len(t, results, 1)
	assert.Equal(t, uint64(2), results[0].Version)
	assert.Equal(t, "Cebu", results[0].Data)
}

func TestRefresherCancelsInFlightFetch(t *testing.T) {
	rec := &recorder{}
	cancelled := make(chan struct{})
	started := make(chan struct{}, 2)

	r := NewRefresher(func(ctx context.Context, q filters.Query) (any, error) {
		started <- struct{}{}
		if q.Dimensions["region"][0] == "NCR" {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return "ok", nil
	}, rec.publish, 0)

	id := uuid.New()
	r.Observe(id, change(1, "NCR"))
	<-started
	r.Observe(id, change(2, "Cebu"))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight fetch was not cancelled")
	}
	r.Wait()

	results := rec.all()
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Data)
}

func TestRefresherIgnoresOutOfOrderChanges(t *testing.T) {
	rec := &recorder{}
	r := NewRefresher(func(_ context.Context, q filters.Query) (any, error) {
		return q.Dimensions["region"], nil
	}, rec.publish, 0)

	id := uuid.New()
	r.Observe(id, change(3, "NCR"))
	r.Wait()
	r.Observe(id, change(2, "Cebu"))
	r.Wait()

	results := rec.all()
	require.Len(t, results, 1)
	assert.Equal(t, uint64(3), results[0].Version)
}

func TestRefresherPublishesFetchErrors(t *testing.T) {
	rec := &recorder{}
	r := NewRefresher(func(context.Context, filters.Query) (any, error) {
		return nil, assert.AnError
	}, rec.publish, 0)

	r.Observe(uuid.New(), change(1, "NCR"))
	r.Wait()

	results := rec.all()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, assert.AnError)
}

func TestRefresherForgetDropsPendingResult(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	r := NewRefresher(func(ctx context.Context, _ filters.Query) (any, error) {
		<-release
		return "late", nil
	}, rec.publish, 0)

	id := uuid.New()
	r.Observe(id, change(1, "NCR"))
	r.Forget(id)
	close(release)
	r.Wait()

	assert.Empty(t, rec.all())
}
