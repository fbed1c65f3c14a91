package spwatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/solpulse/solpulse/spendpoint"
	"github.com/solpulse/solpulse/spmetrics"
	"github.com/solpulse/solpulse/sprpc/sprpctest"
	"github.com/solpulse/solpulse/spstore"
	"github.com/solpulse/solpulse/spwatch"
)

// newSupervisor builds a supervisor polling fast on the real clock,
// so tests can simply wait for snapshots to settle.
func newSupervisor(
	t *testing.T, store spstore.SettingStore, dialer *sprpctest.Dialer,
) *spwatch.Supervisor {
	t.Helper()

	s, err := spwatch.New(context.Background(), spwatch.Options{
		Log:          slogt.New(t),
		Store:        store,
		Dialer:       dialer,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func waitForStatus(t *testing.T, s *spwatch.Supervisor, want spwatch.Status) spwatch.Snapshot {
	t.Helper()

	var snap spwatch.Snapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return snap.Status == want
	}, time.Second, 2*time.Millisecond, "never reached status %v", want)
	return snap
}

func TestSupervisor_defaultEndpointWhenNothingPersisted(t *testing.T) {
	t.Parallel()

	store := spstore.NewMemoryStore()
	dialer := sprpctest.NewDialer()
	dialer.SetFetch(spendpoint.DefaultEndpoint, sprpctest.StaticSamples(
		spmetrics.PerformanceSample{
			NumTransactions: 1000, NumNonVoteTransactions: 600, SamplePeriodSecs: 60,
		},
	))

	s := newSupervisor(t, store, dialer)

	snap := waitForStatus(t, s, spwatch.StatusConnected)
	require.Equal(t, spendpoint.DefaultEndpoint, snap.Endpoint)
	require.NotNil(t, snap.Metrics)
	require.InDelta(t, 10.0, snap.Metrics.RealTPS, 1e-9)
	require.InDelta(t, 40.0, snap.Metrics.VotePercent, 1e-9)
	require.Empty(t, snap.Error)

	// The effective endpoint is persisted back.
	v, ok, err := store.Get(context.Background(), spendpoint.SettingKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, spendpoint.DefaultEndpoint, v)
}

func TestSupervisor_blockedPersistedEndpointFallsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := spstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, spendpoint.SettingKey, "https://api.mainnet-beta.solana.com"))

	dialer := sprpctest.NewDialer()
	s := newSupervisor(t, store, dialer)

	require.Equal(t, spendpoint.DefaultEndpoint, s.Snapshot().Endpoint)
	for _, h := range dialer.Handles() {
		require.Equal(t, spendpoint.DefaultEndpoint, h.Endpoint)
	}
}

func TestSupervisor_customPersistedEndpointIsUsed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := spstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, spendpoint.SettingKey, "https://custom.example.com"))

	dialer := sprpctest.NewDialer()
	s := newSupervisor(t, store, dialer)

	require.Equal(t, "https://custom.example.com", s.Snapshot().Endpoint)
}

func TestSupervisor_errorKeepsLastGoodMetrics(t *testing.T) {
	t.Parallel()

	store := spstore.NewMemoryStore()
	dialer := sprpctest.NewDialer()

	// Succeed once, then fail every subsequent tick.
	calls := 0
	dialer.SetFetch(spendpoint.DefaultEndpoint, func(context.Context, int) ([]spmetrics.PerformanceSample, error) {
		calls++
		if calls == 1 {
			return []spmetrics.PerformanceSample{
				{NumTransactions: 200, NumNonVoteTransactions: 100, SamplePeriodSecs: 10},
			}, nil
		}
		return nil, errors.New("gateway timeout")
	})

	s := newSupervisor(t, store, dialer)

	waitForStatus(t, s, spwatch.StatusConnected)
	snap := waitForStatus(t, s, spwatch.StatusError)

	require.Contains(t, snap.Error, "gateway timeout")
	require.NotNil(t, snap.Metrics, "stale metrics must not be cleared on transient error")
	require.InDelta(t, 10.0, snap.Metrics.RealTPS, 1e-9)
	require.NotZero(t, snap.Ticks.OK)
	require.NotZero(t, snap.Ticks.Failed)
}

func TestSupervisor_recoversAfterError(t *testing.T) {
	t.Parallel()

	store := spstore.NewMemoryStore()
	dialer := sprpctest.NewDialer()

	calls := 0
	dialer.SetFetch(spendpoint.DefaultEndpoint, func(context.Context, int) ([]spmetrics.PerformanceSample, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return []spmetrics.PerformanceSample{
			{NumTransactions: 30, NumNonVoteTransactions: 15, SamplePeriodSecs: 3},
		}, nil
	})

	s := newSupervisor(t, store, dialer)

	waitForStatus(t, s, spwatch.StatusError)
	snap := waitForStatus(t, s, spwatch.StatusConnected)
	require.Empty(t, snap.Error)
	require.InDelta(t, 5.0, snap.Metrics.RealTPS, 1e-9)
}

func TestSupervisor_endpointChange(t *testing.T) {
	t.Parallel()

	const (
		endpointA = "https://a.example.com"
		endpointB = "https://b.example.com"
	)

	t.Run("switches polling and persists the new endpoint", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		store := spstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, spendpoint.SettingKey, endpointA))

		dialer := sprpctest.NewDialer()
		dialer.SetFetch(endpointA, sprpctest.StaticSamples(
			spmetrics.PerformanceSample{NumTransactions: 10, NumNonVoteTransactions: 1, SamplePeriodSecs: 1},
		))
		dialer.SetFetch(endpointB, sprpctest.StaticSamples(
			spmetrics.PerformanceSample{NumTransactions: 70, NumNonVoteTransactions: 7, SamplePeriodSecs: 1},
		))

		s := newSupervisor(t, store, dialer)
		waitForStatus(t, s, spwatch.StatusConnected)

		require.NoError(t, s.SetEndpoint(endpointB))

		snap := s.Snapshot()
		require.Equal(t, endpointB, snap.Endpoint)

		waitForStatus(t, s, spwatch.StatusConnected)
		require.Eventually(t, func() bool {
			m := s.Snapshot().Metrics
			return m != nil && m.RealTPS == 7.0
		}, time.Second, 2*time.Millisecond)

		v, ok, err := store.Get(ctx, spendpoint.SettingKey)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, endpointB, v)

		// The old endpoint's handle was closed with its cycle.
		handles := dialer.Handles()
		require.Len(t, handles, 2)
		require.Eventually(t, func() bool { return handles[0].Closed() },
			time.Second, 2*time.Millisecond)
	})

	t.Run("late result from the old endpoint is discarded", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		store := spstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, spendpoint.SettingKey, endpointA))

		dialer := sprpctest.NewDialer()

		// Endpoint A's fetch hangs until the test releases it.
		release := make(chan struct{})
		dialer.SetFetch(endpointA, func(context.Context, int) ([]spmetrics.PerformanceSample, error) {
			<-release
			return []spmetrics.PerformanceSample{
				{NumTransactions: 10, NumNonVoteTransactions: 1, SamplePeriodSecs: 1},
			}, nil
		})
		dialer.SetFetch(endpointB, sprpctest.StaticSamples(
			spmetrics.PerformanceSample{NumTransactions: 70, NumNonVoteTransactions: 7, SamplePeriodSecs: 1},
		))

		s := newSupervisor(t, store, dialer)

		// Switch to B while A's very first fetch is still in flight.
		require.NoError(t, s.SetEndpoint(endpointB))
		snap := waitForStatus(t, s, spwatch.StatusConnected)
		require.Equal(t, endpointB, snap.Endpoint)
		require.InDelta(t, 7.0, snap.Metrics.RealTPS, 1e-9)

		// A's fetch now completes; its result must change nothing.
		close(release)
		time.Sleep(50 * time.Millisecond)

		snap = s.Snapshot()
		require.Equal(t, endpointB, snap.Endpoint)
		require.Equal(t, spwatch.StatusConnected, snap.Status)
		require.InDelta(t, 7.0, snap.Metrics.RealTPS, 1e-9)
	})
}

func TestSupervisor_initialDialFailureSurfacesAsError(t *testing.T) {
	t.Parallel()

	store := spstore.NewMemoryStore()
	dialer := sprpctest.NewDialer()
	dialer.SetDialError(errors.New("no route to host"))

	s, err := spwatch.New(context.Background(), spwatch.Options{
		Log:          slogt.New(t),
		Store:        store,
		Dialer:       dialer,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err, "construction must survive a failed initial connection")
	defer s.Close()

	snap := s.Snapshot()
	require.Equal(t, spwatch.StatusError, snap.Status)
	require.Contains(t, snap.Error, "no route to host")
	require.Nil(t, snap.Metrics)

	// A later endpoint change recovers.
	dialer.SetDialError(nil)
	dialer.SetFetch("https://recovered.example.com", sprpctest.StaticSamples(
		spmetrics.PerformanceSample{NumTransactions: 5, NumNonVoteTransactions: 5, SamplePeriodSecs: 1},
	))
	require.NoError(t, s.SetEndpoint("https://recovered.example.com"))
	waitForStatus(t, s, spwatch.StatusConnected)
}

func TestSupervisor_optionValidation(t *testing.T) {
	t.Parallel()

	t.Run("requires a store", func(t *testing.T) {
		t.Parallel()
		_, err := spwatch.New(context.Background(), spwatch.Options{
			Dialer: sprpctest.NewDialer(),
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "store required")
	})

	t.Run("requires a dialer", func(t *testing.T) {
		t.Parallel()
		_, err := spwatch.New(context.Background(), spwatch.Options{
			Store: spstore.NewMemoryStore(),
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "dialer required")
	})
}

func TestSupervisor_closeIsIdempotent(t *testing.T) {
	t.Parallel()

	store := spstore.NewMemoryStore()
	dialer := sprpctest.NewDialer()

	s := newSupervisor(t, store, dialer)
	s.Close()
	s.Close()

	// Snapshot stays readable after close.
	_ = s.Snapshot()
}
