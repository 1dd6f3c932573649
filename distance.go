package hnsw

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/viterin/vek/vek32"
	"golang.org/x/exp/maps"
)

// DistanceFunc is a function that computes the distance between two vectors.
// Lower values mean closer vectors. Implementations must be deterministic and
// should be symmetric; both built-in functions panic when the vectors differ
// in length.
type DistanceFunc func(a, b []float32) float32

// minNormalFloat32 is the smallest positive normal float32.
const minNormalFloat32 = 0x1p-126

func mustMatchDims(name string, a, b []float32) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("hnsw: %s: vector sizes do not match: %d != %d", name, len(a), len(b)))
	}
}

// diffPool holds scratch buffers for the element-wise difference, so the
// SIMD kernels can run without allocating on every call.
var diffPool = sync.Pool{
	New: func() any { return new([]float32) },
}

// SquaredEuclideanDistance computes the sum of squared component differences.
// It orders vectors exactly like EuclideanDistance while skipping the square root.
func SquaredEuclideanDistance(a, b []float32) float32 {
	mustMatchDims("squared euclidean", a, b)
	if len(a) == 0 {
		return 0
	}

	buf := diffPool.Get().(*[]float32)
	diff := vek32.Sub_Into(slices.Grow((*buf)[:0], len(a)), a, b)
	sum := vek32.Dot(diff, diff)
	*buf = diff
	diffPool.Put(buf)
	return sum
}

// EuclideanDistance computes the Euclidean distance between two vectors.
func EuclideanDistance(a, b []float32) float32 {
	return float32(math.Sqrt(float64(SquaredEuclideanDistance(a, b))))
}

// CosineDistance computes 1 - cos(a, b), with the cosine clamped to [-1, 1].
//
// Two vectors with (near) zero norm are treated as identical and have distance
// 0. A zero vector compared with a non-zero vector has the maximum distance 2.
func CosineDistance(a, b []float32) float32 {
	mustMatchDims("cosine", a, b)
	if len(a) == 0 {
		return 0
	}

	normA := vek32.Dot(a, a)
	normB := vek32.Dot(b, b)
	zeroA := normA < 2*minNormalFloat32
	zeroB := normB < 2*minNormalFloat32
	switch {
	case zeroA && zeroB:
		return 0
	case zeroA || zeroB:
		return 2
	}

	cos := float64(vek32.Dot(a, b)) / (math.Sqrt(float64(normA)) * math.Sqrt(float64(normB)))
	return float32(1 - max(-1, min(1, cos)))
}

var distanceFuncs = map[string]DistanceFunc{
	"squared_euclidean": SquaredEuclideanDistance,
	"euclidean":         EuclideanDistance,
	"cosine":            CosineDistance,
}

func distanceFuncToName(fn DistanceFunc) (string, bool) {
	if fn == nil {
		return "", false
	}
	fnptr := reflect.ValueOf(fn).Pointer()
	for name, f := range distanceFuncs {
		if reflect.ValueOf(f).Pointer() == fnptr {
			return name, true
		}
	}
	return "", false
}

// DistanceFuncByName returns the distance function registered under name.
func DistanceFuncByName(name string) (DistanceFunc, error) {
	fn, ok := distanceFuncs[name]
	if !ok {
		known := maps.Keys(distanceFuncs)
		slices.Sort(known)
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDistance, name, strings.Join(known, ", "))
	}
	return fn, nil
}

// RegisterDistanceFunc registers a distance function with a name.
// A distance function must be registered here before a graph using it can be
// exported, imported or configured by name.
func RegisterDistanceFunc(name string, fn DistanceFunc) {
	distanceFuncs[name] = fn
}
