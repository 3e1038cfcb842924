package analyzer

import (
	"strings"
)

// parseSQLite reads the detail column of EXPLAIN QUERY PLAN, e.g.
//
//	SCAN tbl_user
//	SEARCH tbl_user USING INDEX idx_user_email (email=?)
//	SEARCH tbl_user USING INTEGER PRIMARY KEY (rowid=?)
func parseSQLite(rows []map[string]any) (*Plan, error) {
	plan := &Plan{}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var detail string
		switch v := row["detail"].(type) {
		case string:
			detail = v
		case []byte:
			detail = string(v)
		default:
			continue
		}
		lines = append(lines, detail)
		sqliteLine(strings.TrimSpace(detail), plan)
	}
	if len(lines) == 0 {
		return nil, ErrNoPlan
	}
	plan.Raw = strings.Join(lines, "\n")
	return plan, nil
}

func sqliteLine(line string, plan *Plan) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	verb := strings.ToUpper(fields[0])
	if verb != "SCAN" && verb != "SEARCH" {
		return
	}
	table := fields[1]
	if table == "TABLE" && len(fields) > 2 {
		// pre-3.36 output: "SCAN TABLE tbl_user"
		table = fields[2]
	}
	plan.addTable(table)

	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "USING INTEGER PRIMARY KEY"):
		plan.useIndex("PRIMARY KEY")
	case strings.Contains(upper, "USING AUTOMATIC"):
		plan.useIndex("AUTOMATIC INDEX")
	case strings.Contains(upper, "INDEX "):
		plan.useIndex(indexAfter(line, upper))
	case verb == "SCAN":
		plan.FullScan = true
	}
}

// indexAfter returns the word following INDEX in line.
func indexAfter(line, upper string) string {
	i := strings.Index(upper, "INDEX ")
	rest := strings.TrimSpace(line[i+len("INDEX "):])
	if end := strings.IndexAny(rest, " ("); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
