package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyModel struct {
	failures []error
	calls    int
	tools    []*schema.ToolInfo
}

func (f *flakyModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (f *flakyModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *flakyModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &flakyModel{failures: f.failures, tools: tools}, nil
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err         error
		recoverable bool
	}{
		{errors.New("error, status code: 429, status: 429 Too Many Requests"), true},
		{errors.New("error, status code: 503, message: overloaded"), true},
		{errors.New("error, status code: 401, message: invalid api key"), false},
		{fmt.Errorf("post: %w", context.DeadlineExceeded), true},
		{context.Canceled, false},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("invalid model name"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.recoverable, IsRecoverable(c.err), c.err.Error())
	}
	assert.Nil(t, Classify(nil))
}

func TestWithRetryRecovers(t *testing.T) {
	inner := &flakyModel{failures: []error{
		errors.New("status code: 500"),
		errors.New("status code: 429"),
	}}
	m := WithRetry(inner, fastPolicy(3))

	out, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryStopsOnFatal(t *testing.T) {
	inner := &flakyModel{failures: []error{errors.New("status code: 400, bad request")}}
	m := WithRetry(inner, fastPolicy(3))

	_, err := m.Generate(context.Background(), nil)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 1, inner.calls)
}

func TestWithRetryBudgetExhausted(t *testing.T) {
	inner := &flakyModel{failures: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	m := WithRetry(inner, fastPolicy(1))

	_, err := m.Generate(context.Background(), nil)
	var rec *RecoverableError
	require.ErrorAs(t, err, &rec)
	assert.Equal(t, 2, inner.calls)
}

func TestWithRetryHonoursCancel(t *testing.T) {
	inner := &flakyModel{failures: []error{errors.New("timeout"), errors.New("timeout")}}
	m := WithRetry(inner, RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Generate(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestWithToolsKeepsRetry(t *testing.T) {
	m := WithRetry(&flakyModel{}, fastPolicy(2))
	bound, err := m.WithTools([]*schema.ToolInfo{{Name: "get_news"}})
	require.NoError(t, err)

	rm, ok := bound.(*retryingModel)
	require.True(t, ok)
	assert.Len(t, rm.inner.(*flakyModel).tools, 1)
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 3*time.Second, p.delay(3))
}
