package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/opsboard/internal/report"
	"github.com/jmoiron/sqlx"
)

type sourceQuery struct {
	sql string
	// rangeColumn is filtered when the query has bounds
	rangeColumn string
	// where is an unconditional filter the range is ANDed onto
	where   string
	orderBy string
}

var sourceQueries = map[string]sourceQuery{
	report.TypeAssets: {
		sql: `SELECT name, type, serial_number, model, manufacturer, location,
			ip_address, mac_address, os_info, last_seen, status, specifications
			FROM assets`,
		rangeColumn: "last_seen",
		orderBy:     "name",
	},
	report.TypeHosts: {
		sql:         `SELECT host_name, status, timestamp, response_time, details FROM host_status_history`,
		rangeColumn: "timestamp",
		orderBy:     "timestamp DESC",
	},
	report.TypeMessages: {
		sql:         `SELECT timestamp, level, severity, category, message, details FROM log_messages`,
		rangeColumn: "timestamp",
		orderBy:     "timestamp DESC",
	},
	report.TypeTasks: {
		sql: `SELECT t.task_id, t.title, t.description, t.assignee,
			COALESCE(NULLIF(u.display_name, ''), t.assignee) AS assignee_name,
			t.creator, t.status, t.priority, t.due_date, t.created_at, t.updated_at
			FROM tasks t
			LEFT JOIN users u ON u.username = t.assignee`,
		rangeColumn: "t.created_at",
		orderBy:     "t.created_at DESC",
	},
	report.TypeDepartments: {
		sql: `SELECT e.name, e.type, e.serial_number, e.status,
			e.assigned_to_department AS department,
			COALESCE(NULLIF(u.display_name, ''), u.username, '') AS assigned_to,
			e.assigned_date, e.model, e.manufacturer, e.created_at
			FROM equipment e
			LEFT JOIN users u ON u.user_id = e.assigned_to`,
		where:       "e.assigned_to_department IS NOT NULL",
		rangeColumn: "e.created_at",
		orderBy:     "department, e.name",
	},
}

// ReportSource reads report rows with plain SQL.
type ReportSource struct {
	db *sqlx.DB
}

func NewReportSource(db *sqlx.DB) report.Source {
	return &ReportSource{db: db}
}

func (s *ReportSource) Rows(ctx context.Context, q report.Query) (*report.Table, error) {
	sq, ok := sourceQueries[q.Type]
	if !ok {
		return nil, fmt.Errorf("unknown report type %q", q.Type)
	}

	query := sq.sql
	var args []interface{}
	var conds []string
	if sq.where != "" {
		conds = append(conds, sq.where)
	}
	if q.Start != nil && q.End != nil {
		conds = append(conds, sq.rangeColumn+" BETWEEN ? AND ?")
		args = append(args, q.Start.UTC(), q.End.UTC())
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY " + sq.orderBy
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	table := &report.Table{Columns: columns}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = cell(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, rows.Err()
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05")
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
