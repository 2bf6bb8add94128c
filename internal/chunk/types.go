// Package chunk splits documents into overlapping fixed-size segments.
package chunk

import (
	"fmt"
	"strconv"
	"strings"
)

// Default chunk geometry, in runes.
const (
	DefaultSize    = 500
	DefaultOverlap = 100
)

// Chunk is one segment of a document and the unit of embedding and retrieval.
type Chunk struct {
	// ID is the store key, unique per (Source, Index).
	ID     string
	Source string
	Index  int
	Text   string
}

// ID renders the store key for chunk i of path.
func ID(path string, i int) string {
	return path + "-" + strconv.Itoa(i)
}

// ParseID splits an id produced by ID. Paths may themselves contain '-',
// so the index is taken after the last one.
func ParseID(id string) (path string, index int, err error) {
	cut := strings.LastIndexByte(id, '-')
	if cut < 0 {
		return "", 0, fmt.Errorf("chunk id %q has no index", id)
	}
	index, err = strconv.Atoi(id[cut+1:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("chunk id %q has invalid index", id)
	}
	return id[:cut], index, nil
}
