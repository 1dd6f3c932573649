package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/vecnav/hnsw"
)

// dataset is a set of keyed vectors read from a pair of text files.
//
// The embeddings file starts with the vector count and the dimension,
// followed by the components of every vector. The indices file starts with
// the count, followed by one key per vector. Tokens are whitespace separated.
type dataset struct {
	keys []uint32
	vecs []hnsw.Vector
}

// preallocLimit bounds how many elements are reserved from a header count.
const preallocLimit = 1 << 16

type tokenReader struct {
	sc   *bufio.Scanner
	name string
}

func newTokenReader(r io.Reader, name string) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &tokenReader{sc: sc, name: name}
}

func (r *tokenReader) next() (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", r.name, err)
	}
	return "", fmt.Errorf("%s: %w", r.name, io.ErrUnexpectedEOF)
}

func (r *tokenReader) readInt() (int, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r.name, err)
	}
	return n, nil
}

func (r *tokenReader) readFloat() (float32, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r.name, err)
	}
	return float32(f), nil
}

func (r *tokenReader) readKey() (uint32, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r.name, err)
	}
	return uint32(u), nil
}

func readDataset(embeddings, indices io.Reader) (*dataset, error) {
	er := newTokenReader(embeddings, "embeddings")
	ir := newTokenReader(indices, "indices")

	n, err := er.readInt()
	if err != nil {
		return nil, err
	}
	dim, err := er.readInt()
	if err != nil {
		return nil, err
	}
	nKeys, err := ir.readInt()
	if err != nil {
		return nil, err
	}
	if n <= 0 || dim <= 0 {
		return nil, fmt.Errorf("embeddings: invalid header %d %d", n, dim)
	}
	if nKeys != n {
		return nil, fmt.Errorf("indices: %d keys for %d vectors", nKeys, n)
	}

	// The header is untrusted, so storage grows with what is actually read.
	ds := &dataset{
		keys: make([]uint32, 0, min(n, preallocLimit)),
		vecs: make([]hnsw.Vector, 0, min(n, preallocLimit)),
	}
	for i := 0; i < n; i++ {
		vec := make(hnsw.Vector, 0, min(dim, preallocLimit))
		for j := 0; j < dim; j++ {
			f, err := er.readFloat()
			if err != nil {
				return nil, fmt.Errorf("vector %d: %w", i, err)
			}
			vec = append(vec, f)
		}
		key, err := ir.readKey()
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		ds.vecs = append(ds.vecs, vec)
		ds.keys = append(ds.keys, key)
	}
	return ds, nil
}

func loadDataset(embeddingsPath, indicesPath string) (*dataset, error) {
	ef, err := os.Open(embeddingsPath)
	if err != nil {
		return nil, err
	}
	defer ef.Close()

	idf, err := os.Open(indicesPath)
	if err != nil {
		return nil, err
	}
	defer idf.Close()

	return readDataset(bufio.NewReader(ef), bufio.NewReader(idf))
}
