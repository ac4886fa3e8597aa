package repl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/response"
	"github.com/danmuck/cqi/internal/protocol/session"
	"github.com/pterm/pterm"
)

// RenderSending echoes the values about to go on the wire.
func RenderSending(vals []protocol.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = protocol.Format(v)
	}
	return pterm.Info.Sprintfln("Sending %d CQi data object(s): [%s]", len(vals), strings.Join(parts, ", "))
}

// RenderResult prints the classified response and, for Data, its payload.
func RenderResult(res session.Result) string {
	if res.Response.Code == 0 {
		return pterm.Info.Sprintfln("%s sent", res.Command)
	}
	head := fmt.Sprintf("Response: %s", res.Response)
	switch {
	case res.Response.IsError():
		return pterm.Error.Sprintln(head)
	case res.Response.Category == response.CategoryStatus:
		return pterm.Success.Sprintln(head)
	}
	body, err := RenderValue(res.Value)
	if err != nil {
		body = protocol.Format(res.Value) + "\n"
	}
	return pterm.Info.Sprintln(head) + body
}

// RenderValue draws lists and tables as pterm tables and everything else on
// one line.
func RenderValue(v protocol.Value) (string, error) {
	switch tv := v.(type) {
	case protocol.IntTable:
		if tv.Rows() == 0 {
			return fmt.Sprintf("(%dx%d table)\n", tv.Rows(), tv.Cols()), nil
		}
		header := []string{"row"}
		for c := 0; c < tv.Cols(); c++ {
			header = append(header, strconv.Itoa(c))
		}
		data := pterm.TableData{header}
		for r := 0; r < tv.Rows(); r++ {
			row := []string{strconv.Itoa(r)}
			for _, cell := range tv.Row(r) {
				row = append(row, strconv.Itoa(int(cell)))
			}
			data = append(data, row)
		}
		return renderTable(data)
	case protocol.StringList:
		return indexTable(len(tv), func(i int) string { return strconv.Quote(tv[i]) })
	case protocol.IntList:
		return indexTable(len(tv), func(i int) string { return strconv.Itoa(int(tv[i])) })
	default:
		return protocol.Format(v) + "\n", nil
	}
}

func indexTable(n int, cell func(int) string) (string, error) {
	if n == 0 {
		return "(empty list)\n", nil
	}
	data := pterm.TableData{{"#", "value"}}
	for i := 0; i < n; i++ {
		data = append(data, []string{strconv.Itoa(i), cell(i)})
	}
	return renderTable(data)
}

func renderTable(data pterm.TableData) (string, error) {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

func RenderError(err error) string {
	return pterm.Error.Sprintln(err.Error())
}
