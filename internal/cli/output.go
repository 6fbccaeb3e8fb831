// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// output.go - Human and JSON output for crcafe commands.
//
// In --json mode every command writes exactly one JSONResponse to stdout and
// human-readable notices go to stderr.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := userMessage(err)
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// OUTPUT
// =============================================================================

// output is where a command writes its results.
type output struct {
	out     io.Writer
	errOut  io.Writer
	json    bool
	command string
	st      styles
	money   moneyFormatter
}

func newOutput(out, errOut io.Writer, jsonMode, color bool, currency string) *output {
	return &output{
		out:    out,
		errOut: errOut,
		json:   jsonMode,
		st:     newStyles(out, color && !jsonMode),
		money:  newMoneyFormatter(currency),
	}
}

// emit writes data as a JSON envelope, or calls human to render it.
func (o *output) emit(data any, human func(w io.Writer)) error {
	if o.json {
		return NewJSONResponse(o.command, data).Write(o.out)
	}
	human(o.out)
	return nil
}

// notice prints an informational line. It never pollutes JSON stdout.
func (o *output) notice(format string, args ...any) {
	w := o.out
	if o.json {
		w = o.errOut
	}
	fmt.Fprintln(w, o.st.Dim.Render(fmt.Sprintf(format, args...)))
}

// warn prints to stderr in every mode.
func (o *output) warn(format string, args ...any) {
	fmt.Fprintln(o.errOut, o.st.Warning.Render(fmt.Sprintf(format, args...)))
}

// success prints a confirmation line in human mode.
func (o *output) success(format string, args ...any) {
	if o.json {
		return
	}
	fmt.Fprintln(o.out, o.st.Success.Render(fmt.Sprintf(format, args...)))
}

// failure renders err for the user.
func (o *output) failure(err error) {
	if o.json {
		NewJSONErrorResponse(o.command, err).Write(o.out)
		return
	}
	fmt.Fprintf(o.errOut, "%s %s\n", o.st.Error.Render("Error:"), userMessage(err))
}

// =============================================================================
// TABLES
// =============================================================================

// table lays out rows in columns sized by display width.
type table struct {
	headers []string
	rows    [][]string
	// right marks numeric columns.
	right map[int]bool
	// maxCol caps any single column.
	maxCol int
}

func newTable(headers ...string) *table {
	return &table{headers: headers, right: map[int]bool{}, maxCol: 32}
}

func (t *table) alignRight(cols ...int) *table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer, st styles) {
	widths := make([]int, len(t.headers))
	measure := func(row []string) {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if n := runewidth.StringWidth(truncate(cell, t.maxCol)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	measure(t.headers)
	for _, r := range t.rows {
		measure(r)
	}

	line := func(row []string) string {
		cells := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = truncate(row[i], t.maxCol)
			}
			if t.right[i] {
				cells[i] = runewidth.FillLeft(cell, widths[i])
			} else {
				cells[i] = runewidth.FillRight(cell, widths[i])
			}
		}
		return strings.TrimRight(strings.Join(cells, "  "), " ")
	}

	fmt.Fprintln(w, st.Header.Render(line(t.headers)))
	for _, r := range t.rows {
		fmt.Fprintln(w, line(r))
	}
	if len(t.rows) == 0 {
		fmt.Fprintln(w, st.Dim.Render("(none)"))
	}
}

// =============================================================================
// MONEY
// =============================================================================

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// moneyFormatter renders amounts with locale grouping.
type moneyFormatter struct {
	symbol  string
	printer *message.Printer
}

func newMoneyFormatter(code string) moneyFormatter {
	code = strings.ToUpper(strings.TrimSpace(code))
	sym, ok := currencySymbols[code]
	if !ok {
		sym = code + " "
	}
	tag := language.English
	if code == "INR" {
		tag = language.MustParse("en-IN")
	}
	return moneyFormatter{symbol: sym, printer: message.NewPrinter(tag)}
}

func (m moneyFormatter) format(v float64) string {
	return m.symbol + m.printer.Sprintf("%.2f", v)
}
