package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
)

var dumpTables = []string{"users", "questions", "exams", "assignments", "answers", "review_assignments", "reviews"}

func (cli *commandLine) dump(w io.Writer) error {
	for _, table := range dumpTables {
		fmt.Fprintf(w, "--- %s ---\n", table)
		if err := cli.dumpTable(w, table); err != nil {
			return errors.Wrapf(err, "dumping %s", table)
		}
	}
	return nil
}

func (cli *commandLine) dumpTable(w io.Writer, table string) error {
	rows, err := cli.db.Queryx("SELECT * FROM " + table + " ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return err
		}
		cols := make([]string, 0, len(row))
		for col := range row {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for i, col := range cols {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			val := row[col]
			if b, ok := val.([]byte); ok { // text columns scan as raw bytes
				val = string(b)
			}
			fmt.Fprintf(w, "%s=%v", col, val)
		}
		fmt.Fprintln(w)
	}
	return rows.Err()
}
