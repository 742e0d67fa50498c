package embedding

import (
	"context"
	"hash/fnv"
)

// MockClient is a deterministic Client used in tests and local/offline
// runs where no embedding provider is configured. Two calls with the same
// text always return the same vector, so engine tests can assert on
// similarity without a live provider, the way the teacher's MockChatClient
// lets model-dependent tests run without a live chat endpoint.
type MockClient struct {
	dimension int

	// CallCount records how many times Embed was invoked.
	CallCount int

	// Err, when set, is returned by every Embed call instead of a vector.
	Err error
}

// NewMockClient returns a MockClient producing vectors of the given
// dimension.
func NewMockClient(dimension int) *MockClient {
	return &MockClient{dimension: dimension}
}

// Dimension returns the configured vector length.
func (m *MockClient) Dimension() int {
	return m.dimension
}

// Embed returns a deterministic pseudo-embedding derived from text's FNV
// hash: identical text always yields the identical vector, and distinct
// text yields distinct vectors, which is all the vector engine's tests
// need from a stand-in provider.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	m.CallCount++
	if m.Err != nil {
		return nil, m.Err
	}

	vector := make([]float32, m.dimension)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	for i := range vector {
		seed = seed*6364136223846793005 + 1442695040888963407
		// Map to [0, 1) using the top bits for better distribution.
		vector[i] = float32(int64(seed>>11)%10000) / 10000.0
	}
	return vector, nil
}
