package domain

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock RecordFetcher ---

type mockFetcher struct {
	mu     sync.Mutex
	result LookupResult
	err    error
	calls  int
	specs  []LookupSpec
}

func (m *mockFetcher) Fetch(_ context.Context, spec LookupSpec) (LookupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.specs = append(m.specs, spec)
	return m.result, m.err
}

func baseOptions() Options {
	return Options{
		OptTable:    "accounts",
		OptSchema:   "public",
		OptField:    "balance",
		OptKey:      "id",
		OptKeyValue: 42,
		OptMax:      15,
	}
}

func without(opts Options, name string) Options {
	out := Options{}
	for k, v := range opts {
		if k != name {
			out[k] = v
		}
	}
	return out
}

func with(opts Options, name string, value any) Options {
	out := without(opts, name)
	out[name] = value
	return out
}

func TestNewThresholdValidator_RequiredOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{"missing max", without(baseOptions(), OptMax)},
		{"missing key", without(baseOptions(), OptKey)},
		{"missing key_value", without(baseOptions(), OptKeyValue)},
		{"empty key", with(baseOptions(), OptKey, "")},
		{"non-string key", with(baseOptions(), OptKey, 7)},
		{"non-numeric max", with(baseOptions(), OptMax, "plenty")},
		{"nil key_value", with(baseOptions(), OptKeyValue, nil)},
		{"slice key_value", with(baseOptions(), OptKeyValue, []int{1})},
		{"non-string table", with(baseOptions(), OptTable, 3)},
		{"unknown message key", with(baseOptions(), OptMessages, map[string]string{"tooBig": "x"})},
		{"bad messages type", with(baseOptions(), OptMessages, "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, err := NewThresholdValidator(&mockFetcher{}, tt.opts)
			require.ErrorIs(t, err, ErrConfiguration)
			assert.Nil(t, v)
		})
	}
}

func TestNewThresholdValidator_TruncatesMax(t *testing.T) {
	t.Parallel()
	v, err := NewThresholdValidator(nil, with(baseOptions(), OptMax, "15.9"))
	require.NoError(t, err)
	assert.Equal(t, int64(15), v.Spec().Max)
}

func TestNewThresholdValidator_MissingTargetFailsAtValidate(t *testing.T) {
	t.Parallel()
	fetcher := &mockFetcher{result: Found(10)}

	for _, name := range []string{OptTable, OptField} {
		v, err := NewThresholdValidator(fetcher, without(baseOptions(), name))
		require.NoError(t, err, "construction must not fail without %s", name)

		_, err = v.Validate(context.Background(), 1)
		require.ErrorIs(t, err, ErrConfiguration)
	}
	assert.Zero(t, fetcher.calls)
}

func TestValidate_NoAdapter(t *testing.T) {
	t.Parallel()
	v, err := NewThresholdValidator(nil, baseOptions())
	require.NoError(t, err)

	for _, in := range []any{4, "6", nil, "not a number", 1.5} {
		_, err := v.Validate(context.Background(), in)
		require.ErrorIs(t, err, ErrNoAdapter)
		assert.EqualError(t, err, "no database adapter present")

		ok, err := v.IsValid(context.Background(), in)
		require.ErrorIs(t, err, ErrNoAdapter)
		assert.False(t, ok)
	}
}

func TestValidate_Threshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stored    LookupResult
		candidate any
		want      Outcome
	}{
		{
			name:      "under the maximum",
			stored:    Found(10),
			candidate: 4,
			want:      Outcome{Valid: true, Sum: "14", Max: 15},
		},
		{
			name:      "exactly the maximum",
			stored:    Found(10),
			candidate: 5,
			want:      Outcome{Valid: true, Sum: "15", Max: 15},
		},
		{
			name:      "over the maximum",
			stored:    Found(10),
			candidate: 6,
			want: Outcome{
				Reason:  ReasonExceedsMax,
				Message: "Record exceeds Maximum Value",
				Sum:     "16",
				Max:     15,
			},
		},
		{
			name:      "no matching row",
			stored:    NotFound(),
			candidate: 1,
			want: Outcome{
				Reason:  ReasonNoRecordFound,
				Message: "No record matching the input was found",
				Max:     15,
			},
		},
		{
			name:      "stored NULL counts as zero",
			stored:    Found(nil),
			candidate: 15,
			want:      Outcome{Valid: true, Sum: "15", Max: 15},
		},
		{
			name:      "float candidate just over",
			stored:    Found(int64(10)),
			candidate: 5.5,
			want: Outcome{
				Reason:  ReasonExceedsMax,
				Message: "Record exceeds Maximum Value",
				Sum:     "15.5",
				Max:     15,
			},
		},
		{
			name:      "numeric string candidate",
			stored:    Found(int32(10)),
			candidate: "3",
			want:      Outcome{Valid: true, Sum: "13", Max: 15},
		},
		{
			name:      "negative candidate brings it back under",
			stored:    Found(20),
			candidate: -5,
			want:      Outcome{Valid: true, Sum: "15", Max: 15},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &mockFetcher{result: tt.stored}
			v, err := NewThresholdValidator(fetcher, baseOptions())
			require.NoError(t, err)

			got, err := v.Validate(context.Background(), tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, fetcher.calls)
		})
	}
}

func TestValidate_NonNumericCandidate(t *testing.T) {
	t.Parallel()
	fetcher := &mockFetcher{result: Found(10)}
	v, err := NewThresholdValidator(fetcher, baseOptions())
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "lots")
	require.ErrorIs(t, err, ErrNotNumeric)
	assert.Zero(t, fetcher.calls, "no lookup for a value that cannot be added")
}

func TestValidate_NonFiniteOperands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stored    LookupResult
		candidate any
		wantCalls int
	}{
		{"NaN candidate", Found(10), math.NaN(), 0},
		{"NaN string candidate", Found(10), "NaN", 0},
		{"negative infinite candidate", Found(10), math.Inf(-1), 0},
		{"infinite string candidate", Found(10), "+Inf", 0},
		{"NaN stored numeric", Found(pgtype.Numeric{NaN: true, Valid: true}), 1000000, 1},
		{"negative infinite stored numeric", Found(pgtype.Numeric{InfinityModifier: pgtype.NegativeInfinity, Valid: true}), 1000000, 1},
		{"NaN stored float8", Found(pgtype.Float8{Float64: math.NaN(), Valid: true}), 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &mockFetcher{result: tt.stored}
			v, err := NewThresholdValidator(fetcher, baseOptions())
			require.NoError(t, err)

			out, err := v.Validate(context.Background(), tt.candidate)
			require.ErrorIs(t, err, ErrNotNumeric)
			assert.False(t, out.Valid)
			assert.Equal(t, tt.wantCalls, fetcher.calls)

			ok, err := v.IsValid(context.Background(), tt.candidate)
			require.ErrorIs(t, err, ErrNotNumeric)
			assert.False(t, ok)
		})
	}
}

func TestValidate_NonNumericStoredValue(t *testing.T) {
	t.Parallel()
	v, err := NewThresholdValidator(&mockFetcher{result: Found("gold")}, baseOptions())
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotNumeric)
	assert.Contains(t, err.Error(), "balance")
}

func TestValidate_FetchError(t *testing.T) {
	t.Parallel()
	v, err := NewThresholdValidator(&mockFetcher{err: errors.New("connection refused")}, baseOptions())
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public.accounts.balance")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidate_MessageTemplates(t *testing.T) {
	t.Parallel()
	opts := with(baseOptions(), OptMessages, map[string]string{
		string(ReasonExceedsMax): "adding %value% would pass %max%",
	})
	v, err := NewThresholdValidator(&mockFetcher{result: Found(10)}, opts)
	require.NoError(t, err)

	out, err := v.Validate(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "adding 9 would pass 15", out.Message)
}

func TestValidate_Idempotent(t *testing.T) {
	t.Parallel()
	fetcher := &mockFetcher{result: Found(10)}
	v, err := NewThresholdValidator(fetcher, baseOptions())
	require.NoError(t, err)

	first, err := v.Validate(context.Background(), 6)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := v.Validate(context.Background(), 6)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	require.Len(t, fetcher.specs, 4)
	for _, spec := range fetcher.specs {
		assert.Equal(t, fetcher.specs[0], spec, "each call must issue the same lookup")
	}
}

func TestValidate_InstancesDoNotShareKeyValues(t *testing.T) {
	t.Parallel()
	fetcher := &mockFetcher{result: Found(1)}

	a, err := NewThresholdValidator(fetcher, with(baseOptions(), OptKeyValue, 1))
	require.NoError(t, err)
	b, err := NewThresholdValidator(fetcher, with(baseOptions(), OptKeyValue, 2))
	require.NoError(t, err)

	_, err = a.Validate(context.Background(), 1)
	require.NoError(t, err)
	_, err = b.Validate(context.Background(), 1)
	require.NoError(t, err)
	_, err = a.Validate(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, fetcher.specs, 3)
	assert.Equal(t, 1, fetcher.specs[0].KeyValue)
	assert.Equal(t, 2, fetcher.specs[1].KeyValue)
	assert.Equal(t, 1, fetcher.specs[2].KeyValue)
}

func TestValidate_ConcurrentCalls(t *testing.T) {
	t.Parallel()
	fetcher := &mockFetcher{result: Found(10)}
	v, err := NewThresholdValidator(fetcher, baseOptions())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(candidate int) {
			defer wg.Done()
			out, err := v.Validate(context.Background(), candidate%8)
			assert.NoError(t, err)
			assert.Equal(t, candidate%8 <= 5, out.Valid)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, fetcher.calls)
}

func TestLookupSpec_QualifiedTable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "accounts", LookupSpec{Table: "accounts"}.QualifiedTable())
	assert.Equal(t, "billing.accounts", LookupSpec{Table: "accounts", Schema: "billing"}.QualifiedTable())
}
