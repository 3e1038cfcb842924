package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
)

type pgRoot struct {
	Plan pgNode `json:"Plan"`
}

type pgNode struct {
	NodeType     string   `json:"Node Type"`
	RelationName string   `json:"Relation Name"`
	IndexName    string   `json:"Index Name"`
	TotalCost    float64  `json:"Total Cost"`
	PlanRows     int64    `json:"Plan Rows"`
	Plans        []pgNode `json:"Plans"`
}

func parsePostgres(rows []map[string]any) (*Plan, error) {
	raw, err := singleText(rows)
	if err != nil {
		return nil, err
	}
	var roots []pgRoot
	if err := json.Unmarshal([]byte(raw), &roots); err != nil {
		return nil, fmt.Errorf("analyzer: decode postgres plan: %w", err)
	}
	if len(roots) == 0 {
		return nil, ErrNoPlan
	}
	root := roots[0].Plan
	plan := &Plan{Cost: root.TotalCost, EstimatedRows: root.PlanRows, Raw: raw}
	walkPostgres(&root, plan)
	return plan, nil
}

func walkPostgres(n *pgNode, plan *Plan) {
	switch {
	case n.NodeType == "Seq Scan":
		plan.FullScan = true
	case strings.Contains(n.NodeType, "Index"):
		plan.useIndex(n.IndexName)
	}
	plan.addTable(n.RelationName)
	for i := range n.Plans {
		walkPostgres(&n.Plans[i], plan)
	}
}
