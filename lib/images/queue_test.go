package images

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQueueLimitsConcurrency(t *testing.T) {
	q := newBuildQueue(1)

	release := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	posA := q.enqueue("img-a", func() {
		defer wg.Done()
		<-release
	})
	assert.Equal(t, 0, posA)

	started := make(chan struct{})
	wg.Add(1)
	posB := q.enqueue("img-b", func() {
		defer wg.Done()
		close(started)
	})
	assert.Equal(t, 1, posB)

	assert.Equal(t, 1, q.activeCount())
	assert.Equal(t, 1, q.pendingCount())

	// img-b is waiting, img-a is not.
	require.NotNil(t, q.position("img-b"))
	assert.Equal(t, 1, *q.position("img-b"))
	assert.Nil(t, q.position("img-a"))

	select {
	case <-started:
		t.Fatal("second build started before a slot was free")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	q.markComplete("img-a")

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second build never started")
	}

	wg.Wait()
	q.markComplete("img-b")

	assert.Equal(t, 0, q.activeCount())
	assert.Equal(t, 0, q.pendingCount())
}

func TestBuildQueuePositionUnknownImage(t *testing.T) {
	q := newBuildQueue(2)
	assert.Nil(t, q.position("img-missing"))
}
