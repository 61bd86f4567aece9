package refindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/erykwalder/quoth/internal/pathstore"
)

const defaultPathstorePrefix = "quoth/refs"

// PathstoreStore keeps entries in a pathstore service, one node per
// referencing file under a common prefix.
type PathstoreStore struct {
	client *pathstore.Client
	prefix string
}

// refNode is the value stored for one referencing file. Node keys are
// hashes of the path, so the path is kept alongside the entries.
type refNode struct {
	RefFile string  `json:"ref_file"`
	Entries []Entry `json:"entries"`
}

func NewPathstoreStore(client *pathstore.Client, prefix string) *PathstoreStore {
	if prefix == "" {
		prefix = defaultPathstorePrefix
	}
	return &PathstoreStore{client: client, prefix: prefix}
}

func (s *PathstoreStore) key(refFile string) string {
	h := sha256.Sum256([]byte(refFile))
	return s.prefix + "/" + hex.EncodeToString(h[:16])
}

func (s *PathstoreStore) Load(ctx context.Context) (map[string][]Entry, error) {
	nodes, err := s.client.ListChildren(ctx, s.prefix, 0)
	if err != nil {
		return nil, s.wrap("load refs", err)
	}
	out := make(map[string][]Entry, len(nodes))
	for _, n := range nodes {
		// values come back as generic JSON
		raw, err := json.Marshal(n.Value)
		if err != nil {
			return nil, fmt.Errorf("re-encode %s: %w", n.Key, err)
		}
		var node refNode
		if err := json.Unmarshal(raw, &node); err != nil {
			return nil, fmt.Errorf("decode %s: %w", n.Key, err)
		}
		if node.RefFile != "" {
			out[node.RefFile] = node.Entries
		}
	}
	return out, nil
}

func (s *PathstoreStore) Put(ctx context.Context, refFile string, entries []Entry) error {
	err := s.client.PutNode(ctx, s.key(refFile), pathstore.NodeRequest{
		Value:  refNode{RefFile: refFile, Entries: entries},
		Source: "quoth:" + refFile,
	})
	return s.wrap("save refs for "+refFile, err)
}

func (s *PathstoreStore) Delete(ctx context.Context, refFile string) error {
	return s.wrap("delete refs for "+refFile, s.client.DeleteNode(ctx, s.key(refFile), false))
}

func (s *PathstoreStore) wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case pathstore.IsTemporary(err):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
