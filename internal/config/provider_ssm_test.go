package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSMClient struct {
	values  map[string]string
	err     error
	batches [][]string
}

func (f *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := f.values[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
	}
	return out, nil
}

func TestSSMProviderBatches(t *testing.T) {
	values := make(map[string]string)
	keys := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/dev/fleetgeo/p%d", i)
		keys = append(keys, k)
		values[k] = fmt.Sprintf("v%d", i)
	}
	client := &fakeSSMClient{values: values}

	got, err := newSSMProviderWithClient("us-east-1", client).GetParametersBatch(context.Background(), keys)
	require.NoError(t, err)

	assert.Len(t, got, 23)
	require.Len(t, client.batches, 3)
	assert.Len(t, client.batches[0], 10)
	assert.Len(t, client.batches[2], 3)
	assert.Equal(t, "v22", got["/dev/fleetgeo/p22"])
}

func TestSSMProviderInvalidParameter(t *testing.T) {
	client := &fakeSSMClient{values: map[string]string{}}

	_, err := newSSMProviderWithClient("us-east-1", client).GetParametersBatch(context.Background(), []string{"/missing"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing")
}

func TestSSMProviderClientError(t *testing.T) {
	boom := errors.New("access denied")
	client := &fakeSSMClient{err: boom}

	_, err := newSSMProviderWithClient("us-east-1", client).GetParametersBatch(context.Background(), []string{"/a"})

	assert.ErrorIs(t, err, boom)
}

func TestSSMProviderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &fakeSSMClient{values: map[string]string{"/a": "1"}}

	_, err := newSSMProviderWithClient("us-east-1", client).GetParametersBatch(ctx, []string{"/a"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.batches)
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	got, err := NewSSMProvider("us-east-1").GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
