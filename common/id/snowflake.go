package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// The server uses node 1 and the refresher worker node 2.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new time-ordered int64 ID for settings and token rows.
func New() int64 {
	if node == nil {
		_ = Init(1)
	}
	return node.Generate().Int64()
}
