package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkID builds the vector-index identity for a chunk: "<filename>:<index>".
func ChunkID(filename string, index int) string {
	return fmt.Sprintf("%s:%d", filename, index)
}

// ParseChunkID splits a chunk identity back into filename and index.
// The filename may itself contain colons; the index is everything after the
// last one.
func ParseChunkID(id string) (filename string, index int, err error) {
	pos := strings.LastIndex(id, ":")
	if pos <= 0 || pos == len(id)-1 {
		return "", 0, fmt.Errorf("malformed chunk id: %q", id)
	}
	index, err = strconv.Atoi(id[pos+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk id: %q", id)
	}
	return id[:pos], index, nil
}
