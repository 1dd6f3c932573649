package hnsw

import (
	"bytes"
	"cmp"
	"io"
	"math/rand"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireSameGraph[K cmp.Ordered](t *testing.T, want, got *Graph[K]) {
	t.Helper()

	require.Equal(t, want.M, got.M)
	require.Equal(t, want.Ml, got.Ml)
	require.Equal(t, want.EfConstruction, got.EfConstruction)
	require.Equal(t, want.EfSearch, got.EfSearch)
	require.Equal(t, want.KeepPrunedConnections, got.KeepPrunedConnections)
	require.Equal(t, want.Len(), got.Len())
	require.Equal(t, want.Dims(), got.Dims())
	require.Equal(t, want.MaxLevel(), got.MaxLevel())

	wantEntry, _ := want.EntryPoint()
	gotEntry, _ := got.EntryPoint()
	require.Equal(t, wantEntry, gotEntry)

	for _, n := range want.store.nodes {
		vec, ok := got.Lookup(n.key)
		require.True(t, ok)
		require.Equal(t, n.vec, vec)

		level, _ := got.Level(n.key)
		require.Equal(t, n.level, level)
		for l := 0; l <= n.level; l++ {
			wantNeighbors, err := want.Neighbors(n.key, l)
			require.NoError(t, err)
			gotNeighbors, err := got.Neighbors(n.key, l)
			require.NoError(t, err)
			require.Equal(t, wantNeighbors, gotNeighbors)
		}
	}
}

func TestGraph_ExportImport(t *testing.T) {
	g := newTestGraph[int]()
	g.KeepPrunedConnections = true
	for i, v := range randomVectors(rand.New(rand.NewSource(20)), 128, 3) {
		require.NoError(t, g.Insert(i, v))
	}

	buf := &bytes.Buffer{}
	require.NoError(t, g.Export(buf))
	exported := bytes.Clone(buf.Bytes())

	g2 := &Graph[int]{}
	require.NoError(t, g2.Import(buf))
	requireSameGraph(t, g, g2)

	name, ok := distanceFuncToName(g2.Distance)
	require.True(t, ok)
	require.Equal(t, "squared_euclidean", name)

	for _, q := range randomVectors(rand.New(rand.NewSource(21)), 10, 3) {
		want, err := g.Search(q, 4)
		require.NoError(t, err)
		got, err := g2.Search(q, 4)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	require.Equal(t, exported, exportBytes(t, g2))
}

func TestGraph_ExportImport_StringKeys(t *testing.T) {
	g := NewGraph[string]()
	g.Rng = rand.New(rand.NewSource(22))
	for i, v := range randomVectors(rand.New(rand.NewSource(23)), 64, 8) {
		require.NoError(t, g.Insert("key-"+strconv.Itoa(i), v))
	}

	g2 := NewGraph[string]()
	require.NoError(t, g2.Import(bytes.NewReader(exportBytes(t, g))))
	requireSameGraph(t, g, g2)
}

func TestGraph_ExportImport_Empty(t *testing.T) {
	g := newTestGraph[int]()
	g2 := NewGraph[int]()
	require.NoError(t, g2.Import(bytes.NewReader(exportBytes(t, g))))
	require.Equal(t, 0, g2.Len())
	require.Equal(t, 6, g2.M)

	// The imported graph keeps accepting inserts.
	require.NoError(t, g2.Insert(1, Vector{1, 2}))
	require.Equal(t, 2, g2.Dims())
}

func TestGraph_Export_UnregisteredDistance(t *testing.T) {
	g := newTestGraph[int]()
	g.Distance = func(a, b []float32) float32 { return 0 }
	require.Error(t, g.Export(&bytes.Buffer{}))
}

func TestGraph_Import_Truncated(t *testing.T) {
	g := newTestGraph[int]()
	for i, v := range randomVectors(rand.New(rand.NewSource(24)), 10, 2) {
		require.NoError(t, g.Insert(i, v))
	}
	data := exportBytes(t, g)

	target := newTestGraph[int]()
	require.NoError(t, target.Insert(-1, Vector{7, 7, 7}))
	before := exportBytes(t, target)

	for n := 0; n < len(data); n++ {
		require.Error(t, target.Import(bytes.NewReader(data[:n])), "prefix of %d bytes", n)
	}
	require.Equal(t, before, exportBytes(t, target), "failed imports must not change the graph")
}

func TestGraph_Import_Corrupt(t *testing.T) {
	build := func() *Graph[int] {
		g := newTestGraph[int]()
		g.Ml = 1.5
		g.Rng = rand.New(rand.NewSource(25))
		for i, v := range randomVectors(rand.New(rand.NewSource(26)), 20, 2) {
			require.NoError(t, g.Insert(i, v))
		}
		return g
	}

	tests := map[string]func(g *Graph[int]){
		"self loop": func(g *Graph[int]) {
			g.store.nodes[3].friends[0] = append(g.store.nodes[3].friends[0], 3)
		},
		"neighbor above its level": func(g *Graph[int]) {
			entry := g.store.entry
			for i, n := range g.store.nodes {
				if n.level == 0 {
					g.store.nodes[entry].friends[g.store.top] = []uint32{uint32(i)}
					return
				}
			}
		},
		"over capacity": func(g *Graph[int]) {
			var ids []uint32
			for i := 1; i < g.Len(); i++ {
				ids = append(ids, uint32(i))
			}
			g.store.nodes[0].friends[0] = ids
		},
		"entry below max level": func(g *Graph[int]) {
			for i, n := range g.store.nodes {
				if n.level < g.store.top {
					g.store.entry = uint32(i)
					return
				}
			}
		},
		"invalid parameters": func(g *Graph[int]) {
			g.M = 1
		},
	}

	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			g := build()
			require.Positive(t, g.MaxLevel(), "test graph needs more than one layer")
			corrupt(g)

			err := NewGraph[int]().Import(bytes.NewReader(exportBytes(t, g)))
			require.ErrorIs(t, err, errCorrupt)
		})
	}
}

// rawEncoding writes a valid parameter block for squared Euclidean distance
// followed by fields, which are encoded like Export encodes them.
func rawEncoding(t *testing.T, fields ...any) []byte {
	t.Helper()

	var buf bytes.Buffer
	_, err := multiBinaryWrite(&buf, encodingVersion, 6, 0.5, 32, 20, "squared_euclidean", false)
	require.NoError(t, err)
	_, err = multiBinaryWrite(&buf, fields...)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestGraph_Import_HugeCounts(t *testing.T) {
	// Each input claims far more data than it holds. Import must fail on the
	// header or at the end of the input, not size allocations from the claim.
	tests := map[string]struct {
		data    []byte
		corrupt bool
	}{
		"dims": {
			data: rawEncoding(t, 1, 1<<50, 0, 7, 0, []float32{1, 2}),
		},
		"level": {
			data:    rawEncoding(t, 1, 2, 0, 7, 1<<40, []float32{1, 2}),
			corrupt: true,
		},
		"level just above the cap": {
			data:    rawEncoding(t, 1, 2, 0, 7, maxNodeLevel+1, []float32{1, 2}),
			corrupt: true,
		},
		"node count": {
			data: rawEncoding(t, 1<<50, 2, 0, 7, 0, []float32{1, 2}, 0),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := NewGraph[int]().Import(bytes.NewReader(tt.data))
			require.Error(t, err)
			if tt.corrupt {
				require.ErrorIs(t, err, errCorrupt)
			}
		})
	}

	t.Run("neighbor count", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := multiBinaryWrite(&buf,
			encodingVersion, 1<<40, 0.5, 32, 20, "squared_euclidean", false,
			1, 2, 0, 7, 0, []float32{1, 2}, 1<<41-1,
		)
		require.NoError(t, err)

		err = NewGraph[int]().Import(&buf)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("string key length", func(t *testing.T) {
		data := rawEncoding(t, 1, 2, 0, 1<<50, "abc")
		err := NewGraph[string]().Import(bytes.NewReader(data))
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestGraph_Import_MaxLevel(t *testing.T) {
	data := rawEncoding(t, 1, 2, 0, 7, maxNodeLevel, []float32{1, 2})
	for l := 0; l <= maxNodeLevel; l++ {
		data = append(data, 0) // varint 0: no neighbors
	}

	g := NewGraph[int]()
	require.NoError(t, g.Import(bytes.NewReader(data)))
	require.Equal(t, maxNodeLevel, g.MaxLevel())
	vec, ok := g.Lookup(7)
	require.True(t, ok)
	require.Equal(t, Vector{1, 2}, vec)
}

func TestGraph_Import_Version(t *testing.T) {
	var buf bytes.Buffer
	_, err := multiBinaryWrite(&buf, encodingVersion+1, 16)
	require.NoError(t, err)

	err = NewGraph[int]().Import(&buf)
	require.ErrorContains(t, err, "incompatible encoding version")
}

func TestSavedGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph")

	g1, err := LoadSavedGraph[int](path)
	require.NoError(t, err)
	require.Equal(t, 0, g1.Len())

	g1.Distance = SquaredEuclideanDistance
	g1.Rng = rand.New(rand.NewSource(27))
	for i, v := range randomVectors(rand.New(rand.NewSource(28)), 100, 4) {
		require.NoError(t, g1.Insert(i, v))
	}
	require.NoError(t, g1.Save())

	g2, err := LoadSavedGraph[int](path)
	require.NoError(t, err)
	requireSameGraph(t, g1.Graph, g2.Graph)

	// Saving again replaces the file.
	require.NoError(t, g2.Insert(1000, Vector{0, 0, 0, 0}))
	require.NoError(t, g2.Save())
	g3, err := LoadSavedGraph[int](path)
	require.NoError(t, err)
	require.Equal(t, 101, g3.Len())

	_, err = LoadSavedGraph[int]("")
	require.Error(t, err)
}
