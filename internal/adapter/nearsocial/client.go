// Package nearsocial publishes post batches to the SocialDB contract on NEAR.
package nearsocial

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// SocialDB contract accounts per network.
const (
	MainnetContract = "social.near"
	TestnetContract = "v1.social08.testnet"
)

const setMethod = "set"

// TransactionSender signs and submits one contract call. The signing scheme
// is deliberately opaque here: a wallet relay, a key-file signer, and the
// test fake all satisfy it.
type TransactionSender interface {
	SendTransaction(ctx context.Context, contractID, method string, args []byte) (txHash string, err error)
}

// Client composes SocialDB set payloads and hands them to the sender. The
// protocol has no reply-chain concept, so a whole batch becomes a single
// post document.
type Client struct {
	contractID string
	accountID  string
	sender     TransactionSender
	logger     *zap.Logger
}

// New wires a SocialDB client for the given network ("mainnet" or
// "testnet") publishing as accountID.
func New(networkID, accountID string, sender TransactionSender, logger *zap.Logger) (*Client, error) {
	var contractID string
	switch networkID {
	case "mainnet":
		contractID = MainnetContract
	case "testnet":
		contractID = TestnetContract
	default:
		return nil, fmt.Errorf("unknown NEAR network %q", networkID)
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		contractID: contractID,
		accountID:  accountID,
		sender:     sender,
		logger:     logger,
	}, nil
}

type postContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type indexEntry struct {
	Key   string `json:"key"`
	Value struct {
		Type string `json:"type"`
	} `json:"value"`
}

// PublishBatch flattens the batch into one markdown document and writes it
// under <account>/post/main, with the matching index/post entry that makes
// the post discoverable in feeds.
func (c *Client) PublishBatch(ctx context.Context, batch domain.PostBatch) error {
	if err := batch.ValidateForPublish(); err != nil {
		return err
	}

	content := postContent{Type: "md", Text: flatten(batch)}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal post content: %w", err)
	}

	idx := indexEntry{Key: "main"}
	idx.Value.Type = content.Type
	indexJSON, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}

	// SocialDB stores leaf values as strings, so the post document and the
	// index entry are JSON-encoded twice.
	args, err := json.Marshal(map[string]any{
		"data": map[string]any{
			c.accountID: map[string]any{
				"post": map[string]string{
					"main": string(contentJSON),
				},
				"index": map[string]string{
					"post": string(indexJSON),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal set args: %w", err)
	}

	txHash, err := c.sender.SendTransaction(ctx, c.contractID, setMethod, args)
	if err != nil {
		return fmt.Errorf("socialdb set: %w", err)
	}

	c.logger.Info("published to socialdb",
		zap.String("contract", c.contractID),
		zap.String("account", c.accountID),
		zap.String("tx", txHash),
	)
	return nil
}

// flatten joins the batch into one document. Media never crosses to the
// protocol side; only the text survives.
func flatten(batch domain.PostBatch) string {
	parts := make([]string, 0, len(batch))
	for _, post := range batch {
		text := strings.TrimSpace(post.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
