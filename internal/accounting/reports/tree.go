package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// Node is one account in the rolled-up hierarchy. Leaf balances come from
// the stored current_balance; group balances are computed bottom-up from
// their children and never read from storage.
type Node struct {
	Account  accounts.Account
	Balance  decimal.Decimal
	Children []*Node
}

// BuildTree arranges the flat account list into its hierarchy and rolls
// leaf balances up into every ancestor. Children are ordered by code.
func BuildTree(list []accounts.Account) []*Node {
	nodes := make(map[int64]*Node, len(list))
	for _, account := range list {
		balance := decimal.Zero
		if !account.IsGroup {
			balance = account.CurrentBalance
		}
		nodes[account.ID] = &Node{Account: account, Balance: balance}
	}

	var roots []*Node
	for _, account := range list {
		node := nodes[account.ID]
		if account.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*account.ParentID]
		if !ok {
			// Orphan rows (parent filtered out) surface at the top rather
			// than disappearing from the report.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	for _, root := range roots {
		rollUp(root)
	}
	sortNodes(roots)
	return roots
}

// rollUp computes group balances post-order: a group's balance is the sum
// of its children's rolled-up balances.
func rollUp(node *Node) decimal.Decimal {
	if len(node.Children) == 0 {
		return node.Balance
	}
	total := decimal.Zero
	for _, child := range node.Children {
		total = total.Add(rollUp(child))
	}
	if node.Account.IsGroup {
		node.Balance = total
		return total
	}
	// A leaf that somehow carries children keeps its own balance plus the
	// subtree, so nothing is double-counted upward.
	node.Balance = node.Balance.Add(total)
	return node.Balance
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Account.Code < nodes[j].Account.Code
	})
	for _, node := range nodes {
		sortNodes(node.Children)
	}
}

// Find walks the forest for the node carrying the given account id.
func Find(roots []*Node, id int64) *Node {
	for _, root := range roots {
		if root.Account.ID == id {
			return root
		}
		if found := Find(root.Children, id); found != nil {
			return found
		}
	}
	return nil
}
