package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/shopdash/internal/metrics"
)

type widget struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

func (w widget) EntityID() string { return w.ID }

type call struct {
	op    string
	token string
	id    string
	body  any
}

// fakeClient отвечает заранее заданными данными через JSON, как настоящий транспорт
type fakeClient struct {
	mu    sync.Mutex
	calls []call

	list    func(n int) ([]widget, error)
	listN   int
	created widget
	updated widget
	err     error
}

func (c *fakeClient) record(cl call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, cl)
}

func (c *fakeClient) List(ctx context.Context, token, resource string, out any) error {
	c.record(call{op: "list", token: token})
	c.mu.Lock()
	c.listN++
	n := c.listN
	c.mu.Unlock()
	items, err := c.list(n)
	if err != nil {
		return err
	}
	return roundTrip(items, out)
}

func (c *fakeClient) Create(ctx context.Context, token, resource string, body, out any) error {
	c.record(call{op: "create", token: token, body: body})
	if c.err != nil {
		return c.err
	}
	return roundTrip(c.created, out)
}

func (c *fakeClient) Update(ctx context.Context, token, resource, id string, body, out any) error {
	c.record(call{op: "update", token: token, id: id, body: body})
	if c.err != nil {
		return c.err
	}
	return roundTrip(c.updated, out)
}

func (c *fakeClient) Delete(ctx context.Context, token, resource, id string) error {
	c.record(call{op: "delete", token: token, id: id})
	return c.err
}

func roundTrip(v, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type countingTokens struct {
	mu  sync.Mutex
	n   int
	err error
}

func (ts *countingTokens) Token(context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.err != nil {
		return "", ts.err
	}
	ts.n++
	return fmt.Sprintf("token-%d", ts.n), nil
}

func seeded(t *testing.T, client *fakeClient, initial []widget) *Store[widget] {
	t.Helper()
	client.list = func(int) ([]widget, error) { return initial, nil }
	store := New[widget]("widgets", client, &countingTokens{})
	require.NoError(t, store.Refresh(context.Background()))
	return store
}

var abc = []widget{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}

func TestRefreshReplacesSnapshot(t *testing.T) {
	client := &fakeClient{}
	store := seeded(t, client, abc)

	require.Equal(t, abc, store.Snapshot())
	state := store.State()
	require.True(t, state.Loaded)
	require.False(t, state.Loading)
	require.NoError(t, state.Err)
}

func TestRefreshFailureKeepsLastKnownGood(t *testing.T) {
	client := &fakeClient{}
	store := seeded(t, client, abc)

	client.list = func(int) ([]widget, error) { return nil, errors.New("502 bad gateway") }
	err := store.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRemote)

	state := store.State()
	require.Equal(t, abc, state.Items)
	require.True(t, state.Loaded)
	require.ErrorIs(t, state.Err, ErrRemote)
}

func TestInitialFailureIsDistinctFromEmpty(t *testing.T) {
	client := &fakeClient{list: func(int) ([]widget, error) { return nil, errors.New("connection refused") }}
	failed := New[widget]("widgets", client, &countingTokens{})
	require.Error(t, failed.Refresh(context.Background()))

	emptyClient := &fakeClient{list: func(int) ([]widget, error) { return nil, nil }}
	empty := New[widget]("widgets", emptyClient, &countingTokens{})
	require.NoError(t, empty.Refresh(context.Background()))

	failedState, emptyState := failed.State(), empty.State()
	require.Empty(t, failedState.Items)
	require.Empty(t, emptyState.Items)
	require.False(t, failedState.Loaded)
	require.Error(t, failedState.Err)
	require.True(t, emptyState.Loaded)
	require.NoError(t, emptyState.Err)

	// успешный refresh снимает ошибку
	client.list = func(int) ([]widget, error) { return abc, nil }
	require.NoError(t, failed.Refresh(context.Background()))
	require.NoError(t, failed.State().Err)
}

func TestRefreshDropsSupersededResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{}
	client.list = func(n int) ([]widget, error) {
		if n == 1 {
			close(started)
			<-release
			return []widget{{ID: "stale"}}, nil
		}
		return []widget{{ID: "fresh"}}, nil
	}
	store := New[widget]("widgets", client, &countingTokens{})

	errc := make(chan error, 1)
	go func() { errc <- store.Refresh(context.Background()) }()
	<-started

	require.NoError(t, store.Refresh(context.Background()))
	close(release)
	require.ErrorIs(t, <-errc, ErrSuperseded)

	require.Equal(t, []widget{{ID: "fresh"}}, store.Snapshot())
}

func TestRefreshStartedBeforeMutationIsDropped(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(store *Store[widget]) error
		want   []widget
	}{
		{
			name: "create",
			mutate: func(store *Store[widget]) error {
				_, err := store.Create(context.Background(), nil)
				return err
			},
			want: []widget{{ID: "n", Name: "N"}, {ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}},
		},
		{
			name: "delete",
			mutate: func(store *Store[widget]) error {
				return store.Delete(context.Background(), "b")
			},
			want: []widget{{ID: "a", Name: "A"}, {ID: "c", Name: "C"}},
		},
		{
			name: "update",
			mutate: func(store *Store[widget]) error {
				_, err := store.Update(context.Background(), "a", nil)
				return err
			},
			want: []widget{{ID: "a", Name: "A2"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := &fakeClient{created: widget{ID: "n", Name: "N"}, updated: widget{ID: "a", Name: "A2"}}
			store := seeded(t, client, abc)

			// второй list отдаёт список, снятый до мутации
			release := make(chan struct{})
			started := make(chan struct{})
			client.list = func(n int) ([]widget, error) {
				close(started)
				<-release
				return abc, nil
			}

			errc := make(chan error, 1)
			go func() { errc <- store.Refresh(context.Background()) }()
			<-started

			require.NoError(t, test.mutate(store))
			close(release)
			require.ErrorIs(t, <-errc, ErrSuperseded)

			require.Equal(t, test.want, store.Snapshot())
		})
	}
}

func TestListJoinsRefreshInFlight(t *testing.T) {
	client := &fakeClient{}
	store := seeded(t, client, abc)

	release := make(chan struct{})
	client.list = func(int) ([]widget, error) {
		<-release
		return []widget{{ID: "fresh"}}, nil
	}

	for i := 0; i < 20; i++ {
		view := store.ListView(context.Background())
		require.Equal(t, abc, view.Items)
		require.True(t, view.Loading)
	}
	close(release)
	store.Wait()

	require.Equal(t, []widget{{ID: "fresh"}}, store.Snapshot())
	// seeded + один фоновый refresh
	require.Equal(t, 2, client.listN)
}

func TestReadWaitsForFirstLoad(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{}
	client.list = func(n int) ([]widget, error) {
		if n == 1 {
			close(started)
			<-release
		}
		return abc, nil
	}
	store := New[widget]("widgets", client, &countingTokens{})

	views := make(chan View[widget], 2)
	go func() { views <- store.Read(context.Background()) }()
	<-started
	go func() { views <- store.Read(context.Background()) }()
	close(release)

	for i := 0; i < 2; i++ {
		view := <-views
		require.True(t, view.Loaded)
		require.NoError(t, view.Err)
		require.Equal(t, abc, view.Items)
	}
	store.Wait()
}

func TestReadRetriesLoadSupersededByMutation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{created: widget{ID: "n"}}
	client.list = func(n int) ([]widget, error) {
		if n == 1 {
			close(started)
			<-release
			return nil, nil
		}
		return abc, nil
	}
	store := New[widget]("widgets", client, &countingTokens{})

	views := make(chan View[widget], 1)
	go func() { views <- store.Read(context.Background()) }()
	<-started

	_, err := store.Create(context.Background(), nil)
	require.NoError(t, err)
	close(release)

	view := <-views
	require.True(t, view.Loaded)
	require.NoError(t, view.Err)
	require.Equal(t, abc, view.Items)
}

func TestReadReportsInitialFailure(t *testing.T) {
	client := &fakeClient{list: func(int) ([]widget, error) { return nil, errors.New("connection refused") }}
	store := New[widget]("widgets", client, &countingTokens{})

	view := store.Read(context.Background())
	require.False(t, view.Loaded)
	require.False(t, view.Loading)
	require.ErrorIs(t, view.Err, ErrRemote)
}

func TestMetricsRecordOneOutcomePerCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	release := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{created: widget{ID: "n"}}
	client.list = func(n int) ([]widget, error) {
		if n == 1 {
			close(started)
			<-release
		}
		return abc, nil
	}
	store := New[widget]("widgets", client, &countingTokens{}, WithMetrics(metrics.NewCollection(reg)))

	errc := make(chan error, 1)
	go func() { errc <- store.Refresh(context.Background()) }()
	<-started
	require.NoError(t, store.Refresh(context.Background()))
	close(release)
	require.ErrorIs(t, <-errc, ErrSuperseded)

	client.err = errors.New("500")
	_, err := store.Create(context.Background(), nil)
	require.Error(t, err)

	expected := `
# HELP collection_requests_total Remote collection calls.
# TYPE collection_requests_total counter
collection_requests_total{op="create",outcome="failure",resource="widgets"} 1
collection_requests_total{op="list",outcome="success",resource="widgets"} 1
collection_requests_total{op="list",outcome="superseded",resource="widgets"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "collection_requests_total"))
}

func TestListReturnsSnapshotAndRefreshes(t *testing.T) {
	client := &fakeClient{list: func(int) ([]widget, error) { return abc, nil }}
	store := New[widget]("widgets", client, &countingTokens{})

	ctx, cancel := context.WithCancel(context.Background())
	require.Empty(t, store.List(ctx))
	cancel()
	store.Wait()

	require.Equal(t, abc, store.List(context.Background()))
	store.Wait()
}

func TestCreatePrepends(t *testing.T) {
	client := &fakeClient{created: widget{ID: "n", Name: "server name"}}
	store := seeded(t, client, abc)

	created, err := store.Create(context.Background(), map[string]string{"name": "draft"})
	require.NoError(t, err)
	require.Equal(t, widget{ID: "n", Name: "server name"}, created)
	require.Equal(t, append([]widget{created}, abc...), store.Snapshot())
}

func TestCreateFailureLeavesStateUnchanged(t *testing.T) {
	client := &fakeClient{}
	store := seeded(t, client, abc)
	before := store.Snapshot()

	client.err = errors.New("400 bad request")
	_, err := store.Create(context.Background(), map[string]string{"name": "draft"})
	require.ErrorIs(t, err, ErrRemote)
	require.Equal(t, before, store.Snapshot())
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	client := &fakeClient{}
	store := seeded(t, client, []widget{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "b"}})
	snapshot := store.Snapshot()

	require.NoError(t, store.Delete(context.Background(), "b"))
	require.Equal(t, []widget{{ID: "a"}, {ID: "c"}, {ID: "b"}}, store.Snapshot())
	// выданный ранее снимок не меняется
	require.Equal(t, []widget{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "b"}}, snapshot)

	require.NoError(t, store.Delete(context.Background(), "missing"))
	require.Len(t, store.Snapshot(), 3)
}

func TestDeleteFailureLeavesStateUnchanged(t *testing.T) {
	client := &fakeClient{}
	store := seeded(t, client, abc)

	client.err = errors.New("timeout")
	require.ErrorIs(t, store.Delete(context.Background(), "a"), ErrRemote)
	require.Equal(t, abc, store.Snapshot())
}

func TestUpdateReplacesInPlace(t *testing.T) {
	client := &fakeClient{updated: widget{ID: "b"}}
	store := seeded(t, client, abc)

	updated, err := store.Update(context.Background(), "b", map[string]string{"status": "Shipped"})
	require.NoError(t, err)
	// имя не домешивается из старой записи
	require.Equal(t, widget{ID: "b"}, updated)
	require.Equal(t, []widget{{ID: "a", Name: "A"}, {ID: "b"}, {ID: "c", Name: "C"}}, store.Snapshot())

	client.err = errors.New("500")
	_, err = store.Update(context.Background(), "a", map[string]string{"status": "Shipped"})
	require.ErrorIs(t, err, ErrRemote)
	require.Equal(t, []widget{{ID: "a", Name: "A"}, {ID: "b"}, {ID: "c", Name: "C"}}, store.Snapshot())
}

func TestFreshTokenPerCall(t *testing.T) {
	client := &fakeClient{created: widget{ID: "n"}, updated: widget{ID: "a"}}
	store := seeded(t, client, abc)

	_, err := store.Create(context.Background(), nil)
	require.NoError(t, err)
	_, err = store.Update(context.Background(), "a", nil)
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), "c"))

	tokens := make([]string, 0, len(client.calls))
	for _, c := range client.calls {
		tokens = append(tokens, c.token)
	}
	require.Equal(t, []string{"token-1", "token-2", "token-3", "token-4"}, tokens)
}

func TestAuthUnavailableSkipsNetwork(t *testing.T) {
	client := &fakeClient{list: func(int) ([]widget, error) { return abc, nil }}
	store := New[widget]("widgets", client, &countingTokens{err: errors.New("no session")})

	require.ErrorIs(t, store.Refresh(context.Background()), ErrAuthUnavailable)
	_, err := store.Create(context.Background(), nil)
	require.ErrorIs(t, err, ErrAuthUnavailable)
	_, err = store.Update(context.Background(), "a", nil)
	require.ErrorIs(t, err, ErrAuthUnavailable)
	require.ErrorIs(t, store.Delete(context.Background(), "a"), ErrAuthUnavailable)

	require.Empty(t, client.calls)
}

type slowClient struct{ fakeClient }

func (c *slowClient) Delete(ctx context.Context, token, resource, id string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCallTimeout(t *testing.T) {
	client := &slowClient{}
	client.list = func(int) ([]widget, error) { return abc, nil }
	store := New[widget]("widgets", client, &countingTokens{}, WithTimeout(20*time.Millisecond))
	require.NoError(t, store.Refresh(context.Background()))

	err := store.Delete(context.Background(), "a")
	require.ErrorIs(t, err, ErrRemote)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, abc, store.Snapshot())
}

type serverErr struct{ msg string }

func (e serverErr) Error() string  { return "status 400: " + e.msg }
func (e serverErr) Reason() string { return e.msg }

func TestFailureOf(t *testing.T) {
	require.Equal(t, Failure{}, FailureOf(nil))

	client := &fakeClient{}
	store := seeded(t, client, abc)
	client.err = serverErr{msg: "Customer with this email already exists"}
	_, err := store.Create(context.Background(), nil)
	require.Equal(t, Failure{Kind: FailureRemote, Message: "Customer with this email already exists"}, FailureOf(err))

	client.err = errors.New("dial tcp: refused")
	_, err = store.Create(context.Background(), nil)
	require.Equal(t, FailureRemote, FailureOf(err).Kind)
	require.Equal(t, "remote service request failed", FailureOf(err).Message)

	noAuth := New[widget]("widgets", client, &countingTokens{err: errors.New("no session")})
	_, err = noAuth.Create(context.Background(), nil)
	require.Equal(t, FailureAuthUnavailable, FailureOf(err).Kind)

	require.Equal(t, FailureSuperseded, FailureOf(ErrSuperseded).Kind)
	require.Equal(t, FailureInternal, FailureOf(errors.New("boom")).Kind)
}
