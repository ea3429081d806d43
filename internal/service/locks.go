package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// ProjectLocks serialises writers of the same project inside one process.
// Different projects usually map to different stripes and proceed in parallel.
type ProjectLocks struct {
	stripes [lockStripes]sync.Mutex
}

func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{}
}

// Lock blocks until the project's stripe is held and returns its release func.
func (l *ProjectLocks) Lock(projectID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectID))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
