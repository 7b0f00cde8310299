package trigger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/trigger"
	"github.com/stretchr/testify/require"
)

func TestEnabledReflectsBinding(t *testing.T) {
	rt := trigger.New(map[trigger.Hook]trigger.Handler{
		trigger.HookPreSignUp: trigger.FuncHandler(func(ctx context.Context, e trigger.Event) (map[string]any, error) {
			return nil, nil
		}),
	}, 0)

	require.True(t, rt.Enabled(trigger.HookPreSignUp))
	require.False(t, rt.Enabled(trigger.HookPostAuthentication))
}

func TestInvokeUnboundIsNoop(t *testing.T) {
	rt := trigger.New(nil, 0)
	resp, err := rt.Invoke(context.Background(), trigger.HookPreSignUp, trigger.Event{})
	require.NoError(t, err)
	require.Nil(t, resp)
}

func TestInvokePropagatesHandlerResponse(t *testing.T) {
	rt := trigger.New(map[trigger.Hook]trigger.Handler{
		trigger.HookPreTokenGeneration: trigger.FuncHandler(func(ctx context.Context, e trigger.Event) (map[string]any, error) {
			return map[string]any{"claimsOverride": map[string]any{"custom:role": "admin"}}, nil
		}),
	}, 0)

	resp, err := rt.Invoke(context.Background(), trigger.HookPreTokenGeneration, trigger.Event{UserName: "alice"})
	require.NoError(t, err)
	require.Equal(t, "admin", resp["claimsOverride"].(map[string]any)["custom:role"])
}

func TestInvokePropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("rejected by handler")
	rt := trigger.New(map[trigger.Hook]trigger.Handler{
		trigger.HookPreAuthentication: trigger.FuncHandler(func(ctx context.Context, e trigger.Event) (map[string]any, error) {
			return nil, wantErr
		}),
	}, 0)

	_, err := rt.Invoke(context.Background(), trigger.HookPreAuthentication, trigger.Event{})
	require.ErrorIs(t, err, wantErr)
}

func TestInvokeTimesOut(t *testing.T) {
	rt := trigger.New(map[trigger.Hook]trigger.Handler{
		trigger.HookPostAuthentication: trigger.FuncHandler(func(ctx context.Context, e trigger.Event) (map[string]any, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return map[string]any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	}, 20*time.Millisecond)

	_, err := rt.Invoke(context.Background(), trigger.HookPostAuthentication, trigger.Event{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
