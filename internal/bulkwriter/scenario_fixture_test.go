package bulkwriter

import (
	"context"
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

// nodeFixture and scenarioFixture mirror internal/style.Config's pattern of
// expressing declarative test data as YAML rather than Go literals, so
// scenario inputs can be extended without touching the test code.
type tagFixture struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type nodeFixture struct {
	SourceID int64        `yaml:"source_id"`
	Lat      float64      `yaml:"lat"`
	Lon      float64      `yaml:"lon"`
	Tags     []tagFixture `yaml:"tags"`
}

type scenarioFixture struct {
	Name   string `yaml:"name"`
	Mode   string `yaml:"mode"`
	UserID int64  `yaml:"user_id"`
	Bases  struct {
		Changesets int64 `yaml:"changesets"`
		Nodes      int64 `yaml:"nodes"`
		Ways       int64 `yaml:"ways"`
		Relations  int64 `yaml:"relations"`
	} `yaml:"bases"`
	Nodes []nodeFixture `yaml:"nodes"`
}

func loadScenarioFixture(t *testing.T, path string) scenarioFixture {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	var fx scenarioFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		t.Fatalf("unmarshal fixture %s: %v", path, err)
	}
	return fx
}

func TestScenarioFixtureSingleNodeOffline(t *testing.T) {
	fx := loadScenarioFixture(t, "testdata/scenario_single_node_offline.yaml")

	mode := Offline
	if fx.Mode == "online" {
		mode = Online
	}

	dir := t.TempDir()
	w := New(testConfig(mode, fx.UserID, dir), fixedClock)
	reservation := newFakeReservation(fx.Bases.Changesets, fx.Bases.Nodes, fx.Bases.Ways, fx.Bases.Relations)

	if err := w.Open(context.Background(), "postgres://db/osm", reservation); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	for _, n := range fx.Nodes {
		tags := make([]Tag, len(n.Tags))
		for i, tg := range n.Tags {
			tags[i] = Tag{Key: tg.Key, Value: tg.Value}
		}
		if err := w.WritePartial(Node{SourceID: n.SourceID, Lat: n.Lat, Lon: n.Lon, Tags: tags}); err != nil {
			t.Fatalf("WritePartial %+v: %v", n, err)
		}
	}

	path, err := w.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	defer os.Remove(path)

	if got := w.Stats().Nodes; got != int64(len(fx.Nodes)) {
		t.Errorf("Stats().Nodes = %d, want %d (fixture %s)", got, len(fx.Nodes), fx.Name)
	}
}
