package paramstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	calls  int
}

func (f *fakeAPI) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr("secret-value"),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "secret-value", v)
}

func TestGetParameter_HappyPath_SecureString(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr("secret-value"), Type: types.ParameterTypeSecureString,
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "secret-value", v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

// fakeGetter implements Getter directly for cache tests.
type fakeGetter struct {
	value string
	err   error
	calls int
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.value, f.err
}

func TestCachedGetter_ServesFromCache(t *testing.T) {
	inner := &fakeGetter{value: "v1"}
	cache, err := NewCachedGetter(inner, time.Minute)
	require.NoError(t, err)

	v, err := cache.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	inner.value = "v2"
	v, err = cache.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v1", v)
	require.Equal(t, 1, inner.calls)
}

func TestCachedGetter_RefetchesAfterTTL(t *testing.T) {
	inner := &fakeGetter{value: "v1"}
	cache, err := NewCachedGetter(inner, time.Minute)
	require.NoError(t, err)

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err = cache.GetParameter(context.Background(), "p")
	require.NoError(t, err)

	inner.value = "v2"
	now = now.Add(2 * time.Minute)
	v, err := cache.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v2", v)
	require.Equal(t, 2, inner.calls)
}

func TestCachedGetter_Invalidate(t *testing.T) {
	inner := &fakeGetter{value: "v1"}
	cache, err := NewCachedGetter(inner, time.Minute)
	require.NoError(t, err)

	_, err = cache.GetParameter(context.Background(), "p")
	require.NoError(t, err)

	inner.value = "rotated"
	cache.Invalidate("p")
	v, err := cache.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "rotated", v)
}

func TestCachedGetter_DoesNotCacheErrors(t *testing.T) {
	inner := &fakeGetter{err: errors.New("ssm down")}
	cache, err := NewCachedGetter(inner, time.Minute)
	require.NoError(t, err)

	_, err = cache.GetParameter(context.Background(), "p")
	require.Error(t, err)

	inner.err = nil
	inner.value = "back"
	v, err := cache.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "back", v)
	require.Equal(t, 2, inner.calls)
}

func TestNewCachedGetter_NilInner(t *testing.T) {
	_, err := NewCachedGetter(nil, time.Minute)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}
