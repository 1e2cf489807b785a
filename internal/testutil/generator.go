package testutil

import (
	"context"
	"fmt"
	"sync"

	"genstudio/internal/studio"
)

// FakeGenerator is a scripted studio.ImageGenerator. Each call is answered by
// the next entry of Results; once they run out, every call fails.
// Requests are recorded for inspection.
type FakeGenerator struct {
	mu       sync.Mutex
	Results  []FakeResult
	Requests []studio.GenerationRequest
}

// FakeResult is one scripted answer.
type FakeResult struct {
	Image studio.Image
	Err   error
}

// NewFakeGenerator creates a FakeGenerator answering with results in order.
func NewFakeGenerator(results ...FakeResult) *FakeGenerator {
	return &FakeGenerator{Results: results}
}

// Succeed returns a result holding a PNG-typed image with the given bytes.
func Succeed(data string) FakeResult {
	return FakeResult{Image: studio.Image{Data: []byte(data), MimeType: "image/png"}}
}

// Fail returns a failing result.
func Fail(err error) FakeResult {
	return FakeResult{Err: err}
}

func (g *FakeGenerator) GenerateImage(ctx context.Context, req studio.GenerationRequest) (studio.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Requests = append(g.Requests, req)
	if len(g.Results) == 0 {
		return studio.Image{}, fmt.Errorf("fake generator: no scripted result: %w", studio.ErrNoImage)
	}
	res := g.Results[0]
	g.Results = g.Results[1:]
	return res.Image, res.Err
}

// Calls returns the number of requests received.
func (g *FakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}
