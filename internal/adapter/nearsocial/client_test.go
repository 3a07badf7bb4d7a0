package nearsocial

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

type fakeSender struct {
	contractID string
	method     string
	args       []byte
	err        error
}

func (f *fakeSender) SendTransaction(_ context.Context, contractID, method string, args []byte) (string, error) {
	f.contractID = contractID
	f.method = method
	f.args = args
	if f.err != nil {
		return "", f.err
	}
	return "tx-hash", nil
}

func TestPublishBatchComposesSetPayload(t *testing.T) {
	sender := &fakeSender{}
	client, err := New("mainnet", "alice.near", sender, zap.NewNop())
	require.NoError(t, err)

	batch := domain.PostBatch{
		{Text: "first part"},
		{Text: "second part"},
	}
	require.NoError(t, client.PublishBatch(context.Background(), batch))

	require.Equal(t, MainnetContract, sender.contractID)
	require.Equal(t, "set", sender.method)

	var args struct {
		Data map[string]struct {
			Post  map[string]string `json:"post"`
			Index map[string]string `json:"index"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(sender.args, &args))
	entry, ok := args.Data["alice.near"]
	require.True(t, ok)

	var content postContent
	require.NoError(t, json.Unmarshal([]byte(entry.Post["main"]), &content))
	require.Equal(t, "md", content.Type)
	require.Equal(t, "first part\n\nsecond part", content.Text)

	var idx indexEntry
	require.NoError(t, json.Unmarshal([]byte(entry.Index["post"]), &idx))
	require.Equal(t, "main", idx.Key)
	require.Equal(t, "md", idx.Value.Type)
}

func TestPublishBatchTestnetContract(t *testing.T) {
	sender := &fakeSender{}
	client, err := New("testnet", "bob.testnet", sender, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, client.PublishBatch(context.Background(), domain.PostBatch{{Text: "hi"}}))
	require.Equal(t, TestnetContract, sender.contractID)
}

func TestPublishBatchSenderFailure(t *testing.T) {
	boom := errors.New("rpc unavailable")
	client, err := New("mainnet", "alice.near", &fakeSender{err: boom}, zap.NewNop())
	require.NoError(t, err)

	err = client.PublishBatch(context.Background(), domain.PostBatch{{Text: "hi"}})
	require.ErrorIs(t, err, boom)
}

func TestPublishBatchRejectsEmpty(t *testing.T) {
	sender := &fakeSender{}
	client, err := New("mainnet", "alice.near", sender, zap.NewNop())
	require.NoError(t, err)

	err = client.PublishBatch(context.Background(), domain.PostBatch{})
	require.ErrorIs(t, err, domain.ErrEmptyBatch)
	require.Nil(t, sender.args)
}

func TestNewRejectsUnknownNetwork(t *testing.T) {
	_, err := New("betanet", "alice.near", &fakeSender{}, zap.NewNop())
	require.Error(t, err)
}
