package cmd

import (
	"fmt"
	"io"
	"strings"
)

// printTable writes rows under centered headers:
//
//	|  Field  |     Value      |
//	|---------|----------------|
//	| name    | city           |
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header) + 4
	}
	for _, row := range rows {
		for i, col := range row {
			widths[i] = max(widths[i], len(col)+2)
		}
	}
	for i, header := range headers {
		if (widths[i]-len(header))%2 == 1 {
			widths[i]++
		}
	}

	fmt.Fprint(w, "|")
	for i, header := range headers {
		pad := strings.Repeat(" ", (widths[i]-len(header))/2)
		fmt.Fprintf(w, "%s%s%s|", pad, header, pad)
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, "|")
	for _, width := range widths {
		fmt.Fprintf(w, "%s|", strings.Repeat("-", width))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		fmt.Fprint(w, "|")
		for i, col := range row {
			fmt.Fprintf(w, " %-*s|", widths[i]-1, col)
		}
		fmt.Fprintln(w)
	}
}
