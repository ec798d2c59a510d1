// Package graph provides pure operations on conversation-flow graphs:
// mutation, change fingerprinting, and validation. Nothing here performs I/O
// or touches shared state; every operation returns fresh collections.
package graph

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// NewNodeID returns an identifier unique within the process lifetime with
// overwhelming probability. Prefers a crypto-random UUID; if the random
// source is unavailable it falls back to a timestamp plus random suffix.
func NewNodeID() string {
	return newID("node")
}

// NewEdgeID returns a unique identifier for an edge.
func NewEdgeID() string {
	return newID("edge")
}

func newID(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().UnixNano(), rand.Intn(10000))
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
