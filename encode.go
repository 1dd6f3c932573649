package hnsw

import (
	"bufio"
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/renameio"
)

var byteOrder = binary.LittleEndian

func binaryRead(r io.Reader, data interface{}) (int, error) {
	switch v := data.(type) {
	case *int:
		br, ok := r.(io.ByteReader)
		if !ok {
			return 0, fmt.Errorf("reader does not implement io.ByteReader")
		}

		i, err := binary.ReadVarint(br)
		if err != nil {
			return 0, err
		}

		*v = int(i)
		// TODO: this will usually overshoot size.
		return binary.MaxVarintLen64, nil

	case *string:
		var ln int
		_, err := binaryRead(r, &ln)
		if err != nil {
			return 0, err
		}
		if ln < 0 {
			return 0, fmt.Errorf("invalid string length %d", ln)
		}

		// Copy instead of allocating ln up front: the length is untrusted
		// and the input may be far shorter.
		var sb strings.Builder
		n, err := io.CopyN(&sb, r, int64(ln))
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		*v = sb.String()
		return int(n), err

	case io.ReaderFrom:
		n, err := v.ReadFrom(r)
		return int(n), err

	default:
		return binary.Size(data), binary.Read(r, byteOrder, data)
	}
}

func binaryWrite(w io.Writer, data any) (int, error) {
	switch v := data.(type) {
	case int:
		var buf [binary.MaxVarintLen64]byte
		n := binary.PutVarint(buf[:], int64(v))
		n, err := w.Write(buf[:n])
		return n, err
	case io.WriterTo:
		n, err := v.WriteTo(w)
		return int(n), err
	case string:
		return multiBinaryWrite(
			w,
			len(v),
			[]byte(v),
		)
	default:
		sz := binary.Size(data)
		err := binary.Write(w, byteOrder, data)
		if err != nil {
			return 0, fmt.Errorf("encoding %T: %w", data, err)
		}
		return sz, err
	}
}

func multiBinaryWrite(w io.Writer, data ...any) (int, error) {
	var written int
	for _, d := range data {
		n, err := binaryWrite(w, d)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func multiBinaryRead(r io.Reader, data ...any) (int, error) {
	var read int
	for i, d := range data {
		n, err := binaryRead(r, d)
		read += n
		if err != nil {
			return read, fmt.Errorf("reading %T at index %v: %w", d, i, err)
		}
	}
	return read, nil
}

const encodingVersion = 2

// readChunk bounds the up-front allocations of Import, so that a corrupt
// count costs at most this many elements before the input runs out.
const readChunk = 4096

// errCorrupt is wrapped by Import for structurally invalid input.
var errCorrupt = errors.New("corrupt graph encoding")

// Export writes the graph to a writer.
//
// K must be int, string, encodable by encoding/binary or implement io.WriterTo.
// The distance function must be registered with RegisterDistanceFunc.
func (g *Graph[K]) Export(w io.Writer) error {
	err := g.export(w)
	g.Logger.LogExport(context.Background(), g.Len(), err)
	return err
}

func (g *Graph[K]) export(w io.Writer) error {
	distName, ok := distanceFuncToName(g.Distance)
	if !ok {
		return fmt.Errorf("distance function %v must be registered with RegisterDistanceFunc", g.Distance)
	}

	s := &g.store
	_, err := multiBinaryWrite(
		w,
		encodingVersion,
		g.M,
		g.Ml,
		g.EfConstruction,
		g.EfSearch,
		distName,
		g.KeepPrunedConnections,
	)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}

	_, err = multiBinaryWrite(w, s.len(), g.Dims(), int(s.entry))
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for i := range s.nodes {
		n := &s.nodes[i]
		if _, err = binaryWrite(w, n.key); err != nil {
			return fmt.Errorf("encode key of node %d: %w", i, err)
		}
		if _, err = binaryWrite(w, n.level); err != nil {
			return fmt.Errorf("encode level of node %d: %w", i, err)
		}
		if _, err = binaryWrite(w, n.vec); err != nil {
			return fmt.Errorf("encode vector of node %d: %w", i, err)
		}
		for layer, friends := range n.friends {
			if _, err = binaryWrite(w, len(friends)); err != nil {
				return fmt.Errorf("encode neighbor count of node %d at layer %d: %w", i, layer, err)
			}
			for _, f := range friends {
				if _, err = binaryWrite(w, int(f)); err != nil {
					return fmt.Errorf("encode neighbor of node %d at layer %d: %w", i, layer, err)
				}
			}
		}
	}

	return nil
}

// Import reads a graph written by Export, replacing the contents and
// parameters of g. On error g is left unchanged.
func (g *Graph[K]) Import(r io.Reader) error {
	err := g.importFrom(r)
	g.Logger.LogImport(context.Background(), g.Len(), err)
	if err == nil {
		g.metrics().SetSize(g.store.len(), g.store.maxLevel())
	}
	return err
}

func (g *Graph[K]) importFrom(r io.Reader) error {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}

	var version int
	if _, err := binaryRead(r, &version); err != nil {
		return err
	}
	if version != encodingVersion {
		return fmt.Errorf("incompatible encoding version: %d", version)
	}

	var (
		params   Graph[K]
		distName string
	)
	_, err := multiBinaryRead(
		r,
		&params.M,
		&params.Ml,
		&params.EfConstruction,
		&params.EfSearch,
		&distName,
		&params.KeepPrunedConnections,
	)
	if err != nil {
		return err
	}
	params.Distance, err = DistanceFuncByName(distName)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errCorrupt, err)
	}

	var nNodes, dims, entry int
	if _, err = multiBinaryRead(r, &nNodes, &dims, &entry); err != nil {
		return err
	}
	if nNodes < 0 || dims < 0 || (nNodes > 0 && (dims == 0 || entry < 0 || entry >= nNodes)) {
		return fmt.Errorf("%w: header nodes=%d dims=%d entry=%d", errCorrupt, nNodes, dims, entry)
	}

	var s store[K]
	for i := 0; i < nNodes; i++ {
		var (
			key   K
			level int
		)
		if _, err = binaryRead(r, &key); err != nil {
			return fmt.Errorf("decoding key of node %d: %w", i, err)
		}
		if _, err = binaryRead(r, &level); err != nil {
			return fmt.Errorf("decoding level of node %d: %w", i, err)
		}
		if level < 0 || level > maxNodeLevel {
			return fmt.Errorf("%w: node %d has level %d", errCorrupt, i, level)
		}
		vec, err := readVector(r, dims)
		if err != nil {
			return fmt.Errorf("decoding vector of node %d: %w", i, err)
		}

		id, err := s.addNode(key, vec, level)
		if err != nil {
			return fmt.Errorf("%w: node %d: %w", errCorrupt, i, err)
		}

		for layer := 0; layer <= level; layer++ {
			var nFriends int
			if _, err = binaryRead(r, &nFriends); err != nil {
				return fmt.Errorf("decoding neighbor count of node %d at layer %d: %w", i, layer, err)
			}
			if nFriends < 0 || nFriends > params.capacity(layer) {
				return fmt.Errorf("%w: node %d has %d neighbors at layer %d", errCorrupt, i, nFriends, layer)
			}
			friends := make([]uint32, 0, min(nFriends, readChunk))
			for j := 0; j < nFriends; j++ {
				var f int
				if _, err = binaryRead(r, &f); err != nil {
					return fmt.Errorf("decoding neighbor %d of node %d at layer %d: %w", j, i, layer, err)
				}
				if f < 0 || f >= nNodes || f == int(id) {
					return fmt.Errorf("%w: node %d links to %d at layer %d", errCorrupt, i, f, layer)
				}
				friends = append(friends, uint32(f))
			}
			s.setFriends(id, layer, friends)
		}
	}

	if err := s.validate(uint32(entry)); err != nil {
		return fmt.Errorf("%w: %w", errCorrupt, err)
	}
	s.entry = uint32(entry)
	if nNodes > 0 {
		s.top = s.nodes[entry].level
	}

	g.M = params.M
	g.Ml = params.Ml
	g.EfConstruction = params.EfConstruction
	g.EfSearch = params.EfSearch
	g.Distance = params.Distance
	g.KeepPrunedConnections = params.KeepPrunedConnections
	g.store = s
	return nil
}

// readVector reads dims float32 values in chunks, so that a corrupt dims
// fails at the end of the input instead of allocating it all up front.
func readVector(r io.Reader, dims int) (Vector, error) {
	vec := make(Vector, 0, min(dims, readChunk))
	for len(vec) < dims {
		chunk := make(Vector, min(dims-len(vec), readChunk))
		if _, err := binaryRead(r, chunk); err != nil {
			return nil, err
		}
		vec = append(vec, chunk...)
	}
	return vec, nil
}

// validate checks the references of a decoded store: neighbors must exist on
// the layer they are listed at and the entry point must be at the top level.
func (s *store[K]) validate(entry uint32) error {
	for i := range s.nodes {
		for layer, friends := range s.nodes[i].friends {
			for _, f := range friends {
				if s.nodes[f].level < layer {
					return fmt.Errorf("node %d links to %d at layer %d above its level %d", i, f, layer, s.nodes[f].level)
				}
			}
		}
		if len(s.nodes) > 0 && s.nodes[i].level > s.nodes[entry].level {
			return fmt.Errorf("node %d has level %d above the entry point", i, s.nodes[i].level)
		}
	}
	return nil
}

// SavedGraph is a graph persisted to a file.
type SavedGraph[K cmp.Ordered] struct {
	*Graph[K]
	Path string
}

// LoadSavedGraph opens a graph from a file, reads it, and returns it.
//
// If the file does not exist (i.e. this is a new graph),
// the equivalent of NewGraph is returned.
//
// It does not hold open a file descriptor, so SavedGraph can be forgotten
// without ever calling Save.
func LoadSavedGraph[K cmp.Ordered](path string) (*SavedGraph[K], error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	g := NewGraph[K]()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &SavedGraph[K]{Graph: g, Path: path}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := g.Import(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}

	return &SavedGraph[K]{Graph: g, Path: path}, nil
}

// Save writes the graph to the file atomically: readers see either the old
// or the new file, never a partial one.
func (g *SavedGraph[K]) Save() error {
	tmp, err := renameio.TempFile("", g.Path)
	if err != nil {
		return err
	}
	defer tmp.Cleanup()

	wr := bufio.NewWriter(tmp)
	if err := g.Export(wr); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if err := wr.Flush(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}

	if err := tmp.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("closing atomically: %w", err)
	}

	return nil
}
