package analyzer

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type myRoot struct {
	QueryBlock myBlock `json:"query_block"`
}

type myBlock struct {
	CostInfo   myCost      `json:"cost_info"`
	Table      *myTable    `json:"table"`
	NestedLoop []myLoopRef `json:"nested_loop"`
	Grouping   *myBlock    `json:"grouping_operation"`
	Ordering   *myBlock    `json:"ordering_operation"`
}

type myLoopRef struct {
	Table *myTable `json:"table"`
}

type myCost struct {
	QueryCost string `json:"query_cost"`
}

type myTable struct {
	TableName    string `json:"table_name"`
	AccessType   string `json:"access_type"`
	Key          string `json:"key"`
	RowsExamined int64  `json:"rows_examined_per_scan"`
}

func parseMySQL(rows []map[string]any) (*Plan, error) {
	raw, err := singleText(rows)
	if err != nil {
		return nil, err
	}
	var root myRoot
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("analyzer: decode mysql plan: %w", err)
	}
	plan := &Plan{Raw: raw}
	if root.QueryBlock.CostInfo.QueryCost != "" {
		plan.Cost, _ = strconv.ParseFloat(root.QueryBlock.CostInfo.QueryCost, 64)
	}
	walkMySQL(&root.QueryBlock, plan)
	return plan, nil
}

func walkMySQL(b *myBlock, plan *Plan) {
	if b == nil {
		return
	}
	mysqlTable(b.Table, plan)
	for _, ref := range b.NestedLoop {
		mysqlTable(ref.Table, plan)
	}
	walkMySQL(b.Grouping, plan)
	walkMySQL(b.Ordering, plan)
}

func mysqlTable(t *myTable, plan *Plan) {
	if t == nil {
		return
	}
	plan.addTable(t.TableName)
	if t.Key != "" {
		plan.useIndex(t.Key)
	}
	if t.AccessType == "ALL" {
		plan.FullScan = true
	}
	plan.EstimatedRows += t.RowsExamined
}
