package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string. Notification
// messages use it so queue entries sort by creation time.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewRequestID returns a snowflake id for tagging an HTTP request in logs.
// The node comes from SNOWFLAKE_NODE (default 1); if the node cannot be
// initialized a KSUID is returned instead so an id is always produced.
func NewRequestID() string {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
			nodeID = v
		}
		n, err := snowflake.NewNode(nodeID)
		if err != nil {
			return
		}
		node = n
	})
	if node == nil {
		return NewKSUID()
	}
	return node.Generate().String()
}
