package idstore

import "testing"

func TestSpillableMapBeforeSpill(t *testing.T) {
	m, err := NewSpillableMap(t.TempDir(), 1000)
	if err != nil {
		t.Fatalf("NewSpillableMap: %v", err)
	}
	defer m.Close()

	m.Put(-5, 1)
	m.Put(10, 2)

	if got, ok := m.Get(-5); !ok || got != 1 {
		t.Errorf("Get(-5) = (%d, %v), want (1, true)", got, ok)
	}
	if _, ok := m.Get(999); ok {
		t.Errorf("Get(999) should not resolve")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestSpillableMapMigratesAndPreservesEntries(t *testing.T) {
	m, err := NewSpillableMap(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewSpillableMap: %v", err)
	}
	defer m.Close()

	const n = 200
	for i := int64(0); i < n; i++ {
		m.Put(i-100, i*10)
	}

	if m.Len() != n {
		t.Fatalf("Len() = %d, want %d", m.Len(), n)
	}

	for i := int64(0); i < n; i++ {
		source := i - 100
		got, ok := m.Get(source)
		if !ok {
			t.Fatalf("Get(%d) not found after spill", source)
		}
		if got != i*10 {
			t.Errorf("Get(%d) = %d, want %d", source, got, i*10)
		}
	}
}

func TestSpillableMapOverwritesExistingKey(t *testing.T) {
	m, err := NewSpillableMap(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("NewSpillableMap: %v", err)
	}
	defer m.Close()

	for i := int64(0); i < 10; i++ {
		m.Put(i, i)
	}
	m.Put(5, 999)

	got, ok := m.Get(5)
	if !ok || got != 999 {
		t.Errorf("Get(5) = (%d, %v), want (999, true)", got, ok)
	}
	if m.Len() != 10 {
		t.Errorf("Len() = %d, want 10 (overwrite must not grow count)", m.Len())
	}
}

func TestHashMap(t *testing.T) {
	m := NewHashMap()
	m.Put(1, 100)
	m.Put(2, 200)

	if got, ok := m.Get(1); !ok || got != 100 {
		t.Errorf("Get(1) = (%d, %v), want (100, true)", got, ok)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}
