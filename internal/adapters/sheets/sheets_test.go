package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloqxm/portal-comite/pkg/logger"
)

func init() {
	_ = logger.InitWithWriter(new(strings.Builder))
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("\ufeffReservatório,Data\nPatu,01/01/2025\n"))
		case "/empty":
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(50 * time.Millisecond))
	ctx := context.Background()

	tests := []struct {
		name    string
		url     string
		wantErr error
		rows    int
	}{
		{name: "csv body", url: srv.URL + "/ok", rows: 1},
		{name: "not found", url: srv.URL + "/missing", wantErr: ErrStatus},
		{name: "empty body", url: srv.URL + "/empty", wantErr: ErrFetch},
		{name: "timeout", url: srv.URL + "/slow", wantErr: ErrFetch},
		{name: "no url", url: "", wantErr: ErrEmptyURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := c.Fetch(ctx, "flows", tt.url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, tbl.Len())
			assert.True(t, tbl.Has("Reservatório"))
		})
	}
}

func TestCachedExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var loads int32
	c := NewCached("flows", 5*time.Minute, func(context.Context) (int32, error) {
		return atomic.AddInt32(&loads, 1), nil
	}, WithClock(clock))
	ctx := context.Background()

	_, ok := c.FetchedAt()
	assert.False(t, ok)

	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	clock.Advance(4 * time.Minute)
	v, _ = c.Get(ctx)
	assert.Equal(t, int32(1), v, "served from cache before ttl")

	clock.Advance(time.Minute)
	v, _ = c.Get(ctx)
	assert.Equal(t, int32(2), v, "reloaded at ttl")

	c.Invalidate()
	v, _ = c.Get(ctx)
	assert.Equal(t, int32(3), v, "reloaded after invalidate")
	assert.Equal(t, "flows", c.Name())
}

func TestCachedFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fail := false
	c := NewCached("reservoirs", time.Hour, func(context.Context) (string, error) {
		if fail {
			return "", ErrStatus
		}
		return "fresh", nil
	}, WithClock(clock))
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))

	fail = true
	assert.ErrorIs(t, c.Refresh(ctx), ErrStatus)
	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v, "a failed refresh keeps the previous value")

	clock.Advance(2 * time.Hour)
	_, err = c.Get(ctx)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestCachedSingleLoad(t *testing.T) {
	var loads int32
	release := make(chan struct{})
	c := NewCached("documents", time.Hour, func(context.Context) (int, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return 7, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

type fakeWarmer struct {
	name        string
	err         error
	refreshed   int
	invalidated int
}

func (f *fakeWarmer) Name() string { return f.name }

func (f *fakeWarmer) Refresh(context.Context) error {
	f.refreshed++
	return f.err
}

func (f *fakeWarmer) Invalidate() { f.invalidated++ }

func TestRefresher(t *testing.T) {
	_, err := NewRefresher("every minute", time.Second)
	require.Error(t, err)

	good := &fakeWarmer{name: "flows"}
	bad := &fakeWarmer{name: "simulations", err: errors.New("boom")}
	r, err := NewRefresher("*/15 * * * *", time.Second, good, bad)
	require.NoError(t, err)

	err = r.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulations: boom")
	assert.Equal(t, 1, good.refreshed)
	at, last := r.LastRun()
	assert.False(t, at.IsZero())
	assert.Equal(t, err, last)

	require.NoError(t, r.Start(context.Background()))
	r.Stop()
}
