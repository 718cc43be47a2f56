package util

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// BillIDGenerator produces order identifiers of the form "<id>_<lineCount>".
// The numeric part is a snowflake id, unique per node and time ordered.
type BillIDGenerator struct {
	node *snowflake.Node
}

// NewBillIDGenerator creates a generator for the given node number (0-1023)
func NewBillIDGenerator(nodeID int64) (*BillIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create id node: %w", err)
	}
	return &BillIDGenerator{node: node}, nil
}

// Next returns a new bill id for an order with the given number of lines
func (g *BillIDGenerator) Next(lineCount int) string {
	return fmt.Sprintf("%s_%d", g.node.Generate().String(), lineCount)
}
