package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kjstillabower/flight-risk-service/internal/models"
)

type mockAirportLoader struct {
	mu     sync.Mutex
	failed map[string]error
	loaded []string
}

func (m *mockAirportLoader) GetAirport(ctx context.Context, code string) (models.Airport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed[code]; err != nil {
		return models.Airport{}, err
	}
	m.loaded = append(m.loaded, code)
	return models.Airport{Code: code}, nil
}

func TestWarmer_Warm_Success(t *testing.T) {
	loader := &mockAirportLoader{}
	warmer := NewWarmer(loader, nil)

	if err := warmer.Warm(context.Background(), []string{"DEL", "LHR"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if len(loader.loaded) != 2 {
		t.Errorf("loaded %v, want both airports", loader.loaded)
	}
}

func TestWarmer_Warm_EmptyCodes(t *testing.T) {
	warmer := NewWarmer(&mockAirportLoader{}, nil)
	ctx := context.Background()

	if err := warmer.Warm(ctx, nil); err != nil {
		t.Fatalf("Warm() with nil codes error = %v, want nil", err)
	}
	if err := warmer.Warm(ctx, []string{}); err != nil {
		t.Fatalf("Warm() with empty codes error = %v, want nil", err)
	}
}

func TestWarmer_Warm_LoaderError(t *testing.T) {
	notFound := errors.New("not found")
	loader := &mockAirportLoader{failed: map[string]error{"ZZZ": notFound}}
	warmer := NewWarmer(loader, nil)

	err := warmer.Warm(context.Background(), []string{"DEL", "ZZZ"})
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !errors.Is(err, notFound) {
		t.Errorf("Warm() error = %v, want it to wrap the loader error", err)
	}
	if !strings.Contains(err.Error(), "warm ZZZ") {
		t.Errorf("Warm() error = %q, want the failing code named", err.Error())
	}
	if len(loader.loaded) != 1 || loader.loaded[0] != "DEL" {
		t.Errorf("loaded %v, want [DEL]", loader.loaded)
	}
}
