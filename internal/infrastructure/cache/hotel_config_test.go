package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/domain/catalogs/hotel"
)

type stubConfigProvider struct {
	calls int
	cfg   hotel.Config
	err   error
}

func (s *stubConfigProvider) ConfigFor(ctx context.Context, hotelID id.ID) (hotel.Config, error) {
	s.calls++
	if s.err != nil {
		return hotel.Config{}, s.err
	}
	return s.cfg, nil
}

func TestHotelConfigCache_ReadThrough(t *testing.T) {
	source := &stubConfigProvider{cfg: hotel.DefaultConfig()}
	cache := NewHotelConfigCache(source, time.Minute)
	hotelID := id.New()

	cfg, err := cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, hotel.ClosePolicyStrict, cfg.ClosePolicy)
	assert.Equal(t, 1, source.calls)

	// Second read served from cache
	_, err = cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestHotelConfigCache_ExpiryReloads(t *testing.T) {
	source := &stubConfigProvider{cfg: hotel.DefaultConfig()}
	cache := NewHotelConfigCache(source, time.Nanosecond)
	hotelID := id.New()

	_, err := cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestHotelConfigCache_Invalidate(t *testing.T) {
	source := &stubConfigProvider{cfg: hotel.DefaultConfig()}
	cache := NewHotelConfigCache(source, time.Minute)
	hotelID := id.New()

	_, err := cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)

	cache.Invalidate(hotelID)

	_, err = cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestHotelConfigCache_ErrorNotCached(t *testing.T) {
	source := &stubConfigProvider{err: apperror.NewNotFound("hotel", "x")}
	cache := NewHotelConfigCache(source, time.Minute)
	hotelID := id.New()

	_, err := cache.ConfigFor(context.Background(), hotelID)
	require.Error(t, err)

	source.err = nil
	source.cfg = hotel.DefaultConfig()

	_, err = cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestHotelConfigCache_CallerCannotMutateCachedRules(t *testing.T) {
	source := &stubConfigProvider{cfg: hotel.DefaultConfig()}
	cache := NewHotelConfigCache(source, time.Minute)
	hotelID := id.New()

	cfg, err := cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.AlertRules)

	cfg.AlertRules[0].Name = "mutated"

	again, err := cache.ConfigFor(context.Background(), hotelID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.AlertRules[0].Name)
}
