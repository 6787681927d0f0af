package modelgateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayAccumulatesSpendPerCaller(t *testing.T) {
	mock := NewMockProvider(`{"ok":true}`)
	gw := New(mock, nil, nil)

	_, err := gw.Complete(context.Background(), "job-1", "planner", "system", "plan this project")
	require.NoError(t, err)
	_, err = gw.Complete(context.Background(), "job-1", "planner", "system", "plan another project")
	require.NoError(t, err)
	_, err = gw.Complete(context.Background(), "job-1", "validator", "system", "judge this outcome")
	require.NoError(t, err)

	plannerSpend := gw.SpendFor("job-1", "planner")
	assert.Equal(t, 2, plannerSpend.Calls)

	validatorSpend := gw.SpendFor("job-1", "validator")
	assert.Equal(t, 1, validatorSpend.Calls)

	assert.Equal(t, 0, gw.SpendFor("job-1", "analyzer").Calls)
}

func TestGatewayKeepsJobsIndependentAndClearJobDrops(t *testing.T) {
	mock := NewMockProvider(`{"ok":true}`)
	gw := New(mock, nil, nil)

	_, err := gw.Complete(context.Background(), "job-1", "planner", "system", "plan project one")
	require.NoError(t, err)
	_, err = gw.Complete(context.Background(), "job-2", "planner", "system", "plan project two")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.SpendFor("job-1", "planner").Calls)
	assert.Equal(t, 1, gw.SpendFor("job-2", "planner").Calls)

	gw.ClearJob("job-1")

	assert.Equal(t, 0, gw.SpendFor("job-1", "planner").Calls)
	assert.Equal(t, 1, gw.SpendFor("job-2", "planner").Calls)
}

func TestMockProviderScriptedResponse(t *testing.T) {
	mock := NewMockProvider("fallback")
	mock.Script("exact prompt", "scripted response")

	completion, err := mock.Complete(context.Background(), "sys", "exact prompt")
	require.NoError(t, err)
	assert.Equal(t, "scripted response", completion.Text)

	completion, err = mock.Complete(context.Background(), "sys", "unscripted prompt")
	require.NoError(t, err)
	assert.Equal(t, "fallback", completion.Text)
}

func TestMockProviderRespectsCancellation(t *testing.T) {
	mock := NewMockProvider("fallback")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Complete(ctx, "sys", "anything")
	assert.ErrorIs(t, err, context.Canceled)
}
