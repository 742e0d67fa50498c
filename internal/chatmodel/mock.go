package chatmodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse is one scripted answer for MockClient's sequential mode.
type MockResponse struct {
	Content string
	Err     error
}

// MockClient is a deterministic Client for tests: it returns either a
// single fixed response or a scripted sequence, and records every
// message sequence it received so a test can assert on the prompt the
// re-ranker or filter actually built.
type MockClient struct {
	response string
	err      error

	sequential    []MockResponse
	sequentialPos int
	isSequential  bool

	ReceivedMessages [][]*schema.Message
}

// NewMockClient returns a client that always answers with response, or
// always fails with err if err is non-nil.
func NewMockClient(response string, err error) *MockClient {
	return &MockClient{response: response, err: err}
}

// NewMockClientSequential returns a client that answers each successive
// Generate call with the next entry in responses, erroring once they run
// out.
func NewMockClientSequential(responses []MockResponse) *MockClient {
	return &MockClient{sequential: responses, isSequential: true}
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	recorded := make([]*schema.Message, len(input))
	copy(recorded, input)
	m.ReceivedMessages = append(m.ReceivedMessages, recorded)

	if m.isSequential {
		if m.sequentialPos >= len(m.sequential) {
			return nil, errors.New("chatmodel: mock has no more scripted responses")
		}
		resp := m.sequential[m.sequentialPos]
		m.sequentialPos++
		if resp.Err != nil {
			return nil, resp.Err
		}
		return schema.AssistantMessage(resp.Content, nil), nil
	}

	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.response, nil), nil
}

// Stream is not implemented by the mock.
func (m *MockClient) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("chatmodel: MockClient does not support streaming")
}

// BindTools is a no-op.
func (m *MockClient) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools returns the mock unchanged.
func (m *MockClient) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

var _ Client = (*MockClient)(nil)
