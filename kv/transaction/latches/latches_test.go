package latches

import (
	"sync"
	"testing"
	"time"

	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/stretchr/testify/assert"
)

func TestAcquireLatches(t *testing.T) {
	l := NewLatches()

	// Acquiring a new latch is ok.
	wg := l.AcquireLatches([][]byte{{}, {3}, {3, 0, 42}})
	assert.Nil(t, wg)

	// Can only acquire once.
	wg = l.AcquireLatches([][]byte{{}})
	assert.NotNil(t, wg)
	wg = l.AcquireLatches([][]byte{{3, 0, 42}})
	assert.NotNil(t, wg)

	// Release then acquire is ok.
	l.ReleaseLatches([][]byte{{3}, {3, 0, 43}})
	wg = l.AcquireLatches([][]byte{{3}})
	assert.Nil(t, wg)
	wg = l.AcquireLatches([][]byte{{3, 0, 42}})
	assert.NotNil(t, wg)
}

func TestAcquireDuplicateKeys(t *testing.T) {
	l := NewLatches()
	assert.Nil(t, l.AcquireLatches([][]byte{[]byte("a"), []byte("a")}))
	l.ReleaseLatches([][]byte{[]byte("a"), []byte("a")})
	assert.Nil(t, l.AcquireLatches([][]byte{[]byte("a")}))
}

func TestWaitForLatches(t *testing.T) {
	l := NewLatches()
	keys := [][]byte{[]byte("k1"), []byte("k2")}
	l.WaitForLatches(keys)

	var (
		mu    sync.Mutex
		order []string
		done  = make(chan struct{})
	)
	go func() {
		l.WaitForLatches([][]byte{[]byte("k2")})
		mu.Lock()
		order = append(order, "waiter")
		mu.Unlock()
		l.ReleaseLatches([][]byte{[]byte("k2")})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, "holder")
	mu.Unlock()
	l.ReleaseLatches(keys)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was never woken")
	}
	assert.Equal(t, []string{"holder", "waiter"}, order)
}

func TestValidate(t *testing.T) {
	l := NewLatches()
	l.Validate(1, nil)

	var got codec.CommitVersion
	l.Validation = func(version codec.CommitVersion, keys [][]byte) {
		got = version
		assert.Len(t, keys, 1)
	}
	l.Validate(7, [][]byte{[]byte("x")})
	assert.Equal(t, codec.CommitVersion(7), got)
}
