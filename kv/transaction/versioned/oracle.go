package versioned

import (
	"sync"

	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"go.uber.org/atomic"
)

// oracle allocates commit versions and tracks the newest version visible to readers. A version becomes visible once
// it and every version below it have been published.
type oracle struct {
	allocated atomic.Uint64
	visible   atomic.Uint64

	mu   sync.Mutex
	cond *sync.Cond
}

func newOracle(last codec.CommitVersion) *oracle {
	o := &oracle{}
	o.allocated.Store(uint64(last))
	o.visible.Store(uint64(last))
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *oracle) readVersion() codec.CommitVersion {
	return codec.CommitVersion(o.visible.Load())
}

func (o *oracle) allocate() codec.CommitVersion {
	return codec.CommitVersion(o.allocated.Inc())
}

// publish makes version visible. It blocks until every smaller version has been published. A version must be
// published exactly once, whether or not its commit succeeded.
func (o *oracle) publish(version codec.CommitVersion) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.visible.Load()+1 != uint64(version) {
		o.cond.Wait()
	}
	o.visible.Store(uint64(version))
	o.cond.Broadcast()
}
