package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/weather-map-service/internal/models"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestStore(defaultTTL time.Duration) (*InMemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewInMemoryStore(defaultTTL)
	s.now = clock.Now
	return s, clock
}

// TestInMemoryStore_GetSet verifies that Set stores values and Get retrieves them.
func TestInMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(0)

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestInMemoryStore_Get_Miss(t *testing.T) {
	s, _ := newTestStore(0)

	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryStore_Get_Expired verifies that entries are a miss once the TTL
// has elapsed and that the expired entry is removed.
func TestInMemoryStore_Get_Expired(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(0)

	_ = s.Set(ctx, "k", []byte("v"), 10*time.Second)
	clock.Advance(10 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("Get() at exactly the TTL should still hit")
	}

	clock.Advance(time.Millisecond)
	_, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired read", s.Len())
	}
}

func TestInMemoryStore_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(0)

	_ = s.Set(ctx, "k", []byte("v"), 0)
	clock.Advance(DefaultTTL)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("entry should live for the default TTL")
	}
	clock.Advance(time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry should expire after the default TTL")
	}
}

// TestInMemoryStore_OverwriteResetsExpiry verifies last-write-wins and that
// the second Set's TTL replaces the first one's.
func TestInMemoryStore_OverwriteResetsExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(0)

	_ = s.Set(ctx, "k", []byte("v1"), 600*time.Second)
	_ = s.Set(ctx, "k", []byte("v2"), 0)

	got, ok, _ := s.Get(ctx, "k")
	if !ok || string(got) != "v2" {
		t.Fatalf("Get() = %q, %v; want v2, true", got, ok)
	}

	clock.Advance(DefaultTTL + time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("entry should follow the second Set's TTL, not the original 600s")
	}
}

func TestInMemoryStore_Purge(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(0)

	_ = s.Set(ctx, "short", []byte("a"), time.Second)
	_ = s.Set(ctx, "long", []byte("b"), time.Hour)
	clock.Advance(2 * time.Second)

	if n := s.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if _, ok, _ := s.Get(ctx, "long"); !ok {
		t.Error("unexpired entry should survive Purge")
	}
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "shared", []byte("x"), 0)
			_, _, _ = s.Get(ctx, "shared")
			s.Purge()
		}()
	}
	wg.Wait()
}

// TestTyped_RoundTripIsolated verifies that Typed returns decoded copies.
func TestTyped_RoundTripIsolated(t *testing.T) {
	ctx := context.Background()
	c := NewTyped[models.ForecastSeries](NewInMemoryStore(time.Minute))

	in := models.ForecastSeries{
		Location: models.Location{Name: "Seattle", Country: "US", Lat: 47.6, Lon: -122.3},
		Forecast: []models.ForecastEntry{{Dt: 1000, Temp: 12.5, PrecipProbability: 0.4}},
	}
	if err := c.Set(ctx, "f", in, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "f")
	if err != nil || !ok {
		t.Fatalf("Get() = _, %v, %v; want hit", ok, err)
	}
	if got.Location != in.Location || len(got.Forecast) != 1 || got.Forecast[0] != in.Forecast[0] {
		t.Errorf("Get() = %+v, want %+v", got, in)
	}

	got.Forecast[0].Temp = -99
	again, _, _ := c.Get(ctx, "f")
	if again.Forecast[0].Temp != 12.5 {
		t.Error("mutating a returned value changed the cached entry")
	}
}

func TestTyped_Miss(t *testing.T) {
	c := NewTyped[string](NewInMemoryStore(time.Minute))
	v, ok, err := c.Get(context.Background(), "missing")
	if err != nil || ok || v != "" {
		t.Errorf("Get() = %q, %v, %v; want zero miss", v, ok, err)
	}
}

func TestTyped_DecodeError(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(time.Minute)
	_ = store.Set(ctx, "bad", []byte{0xc1}, 0) // 0xc1 is never used in msgpack

	_, ok, err := NewTyped[models.WeatherSnapshot](store).Get(ctx, "bad")
	if err == nil {
		t.Fatal("Get() error = nil, want decode error")
	}
	if ok {
		t.Error("Get() ok = true on decode error")
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"weather", WeatherKey(40.7128, -74.006), "weather_40.7128_-74.0060"},
		{"forecast", ForecastKey(40.71284, -74.00601), "forecast_40.7128_-74.0060"},
		{"description", DescriptionKey(51.5, -0.12), "weather_description_51.5000_-0.1200"},
		{"heatmap", HeatmapKey("temperature", 60, 20, -60, -130), "heatmap_temperature_60.0_20.0_-60.0_-130.0"},
		{"heatmap rounding", HeatmapKey("humidity", 49.26, 24.04, -66.94, -124.73), "heatmap_humidity_49.3_24.0_-66.9_-124.7"},
		{"geocode", GeocodeKey("  New   York "), "geocode_new_york"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("key = %q, want %q", tc.got, tc.want)
			}
		})
	}
}

// TestKeys_SameBucketShareEntry verifies nearby coordinates map to one key.
func TestKeys_SameBucketShareEntry(t *testing.T) {
	if WeatherKey(40.71281, -74.00601) != WeatherKey(40.71279, -74.00599) {
		t.Error("coordinates in the same 4dp bucket should share a weather key")
	}
	if HeatmapKey("pressure", 60.01, 20.04, -60.02, -130.03) != HeatmapKey("pressure", 59.98, 19.96, -59.97, -129.99) {
		t.Error("boxes in the same 1dp bucket should share a heatmap key")
	}
}
