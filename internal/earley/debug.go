package earley

import (
	"fmt"

	"github.com/dekarrin/rosed"
)

// DebugChart renders every row of the chart as a table, for the REPL's
// inspection command: one column for the row index, one for the items it
// contains.
func (p *Parser) DebugChart() string {
	data := [][]string{{"Row", "Items"}}
	for i := range p.rows {
		items := ""
		for j, it := range p.rows[i].items {
			if j > 0 {
				items += "\n"
			}
			items += it.String()
		}
		data = append(data, []string{fmt.Sprintf("%d", i), items})
	}

	tableOpts := rosed.Options{
		TableHeaders:             true,
		NoTrailingLineSeparators: true,
	}
	return rosed.Edit("").InsertTableOpts(0, data, 100, tableOpts).String()
}
