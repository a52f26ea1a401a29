package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// RetryPolicy configures exponential backoff for model calls.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   20 * time.Second,
		Multiplier: 2.0,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns a fatal error or the retry budget runs out.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := p.delay(attempt)
			zap.L().Debug("retrying llm call",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return &FatalError{Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		err := Classify(fn())
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type retryingModel struct {
	inner  model.ToolCallingChatModel
	policy RetryPolicy
}

// WithRetry wraps a chat model so recoverable failures are retried.
func WithRetry(m model.ToolCallingChatModel, policy RetryPolicy) model.ToolCallingChatModel {
	if rm, ok := m.(*retryingModel); ok {
		return &retryingModel{inner: rm.inner, policy: policy}
	}
	return &retryingModel{inner: m, policy: policy}
}

func (r *retryingModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var out *schema.Message
	err := r.policy.Do(ctx, func() error {
		var err error
		out, err = r.inner.Generate(ctx, input, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream only retries opening the stream; errors mid-stream surface to the reader.
func (r *retryingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var out *schema.StreamReader[*schema.Message]
	err := r.policy.Do(ctx, func() error {
		var err error
		out, err = r.inner.Stream(ctx, input, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *retryingModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound, err := r.inner.WithTools(tools)
	if err != nil {
		return nil, fatalf("bind tools: %w", err)
	}
	return &retryingModel{inner: bound, policy: r.policy}, nil
}

func (r *retryingModel) GetType() string { return "Retrying" }
