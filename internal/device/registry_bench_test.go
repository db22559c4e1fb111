package device

import (
	"context"
	"fmt"
	"testing"
)

// setupBenchRegistry creates a registry pre-populated with n devices.
func setupBenchRegistry(b *testing.B, n int) *Registry {
	b.Helper()
	repo := NewMockRepository()
	ctx := context.Background()

	for i := 0; i < n; i++ {
		family := FamilySBrick
		if i%3 == 0 {
			family = FamilyBuWizz2
		}
		info := &Info{
			ID:           fmt.Sprintf("dev-%04d", i),
			Name:         fmt.Sprintf("Hub %d", i),
			Family:       family,
			ChannelCount: 4,
		}
		if err := repo.Create(ctx, info); err != nil {
			b.Fatalf("creating device %d: %v", i, err)
		}
	}

	reg := NewRegistry(repo, fakeFactory)
	if err := reg.RefreshCache(ctx); err != nil {
		b.Fatalf("refreshing cache: %v", err)
	}
	return reg
}

func BenchmarkRegistryByID(b *testing.B) {
	reg := setupBenchRegistry(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.ByID("dev-0050")
	}
}

func BenchmarkRegistryByID_Parallel(b *testing.B) {
	reg := setupBenchRegistry(b, 100)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			reg.ByID("dev-0050")
		}
	})
}

func BenchmarkRegistryAll(b *testing.B) {
	reg := setupBenchRegistry(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = reg.All()
	}
}
