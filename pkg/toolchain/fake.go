package toolchain

import (
	"bytes"
	"context"
	"sync"
)

// Fake is an in-memory Toolchain that records what it was asked to do.
// Assemble returns the source bytes as the object; Link joins the objects
// behind an "EXE:" prefix. It is safe for concurrent use.
type Fake struct {
	AssembleErr error
	LinkErr     error

	mu      sync.Mutex
	sources []string
	links   int
}

func (f *Fake) Assemble(ctx context.Context, source string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	if f.AssembleErr != nil {
		return nil, f.AssembleErr
	}
	return []byte(source), nil
}

func (f *Fake) Link(ctx context.Context, objects ...[]byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links++
	if f.LinkErr != nil {
		return nil, f.LinkErr
	}
	return append([]byte("EXE:"), bytes.Join(objects, nil)...), nil
}

// Sources returns every source passed to Assemble, in call order.
func (f *Fake) Sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}

// Links returns the number of Link calls.
func (f *Fake) Links() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links
}
