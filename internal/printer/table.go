package printer

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/slok/sbxhub/internal/model"
)

// TablePrinter prints sbxhub resources in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintList prints a page of sandboxes in a table format.
func (t *TablePrinter) PrintList(page model.Page) error {
	if len(page.Items) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NAME\tBACKEND\tSTATUS\tURLS\tCREATED")
	for _, s := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Backend, s.Status, joinURLs(s.ExposedURLs), TimeAgo(s.CreatedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if page.NextToken != "" {
		fmt.Fprintf(t.writer, "\nNext page token: %s\n", page.NextToken)
	}

	return nil
}

// PrintStatus prints detailed sandbox status.
func (t *TablePrinter) PrintStatus(sandbox model.Sandbox) error {
	fmt.Fprintf(t.writer, "Name:       %s\n", sandbox.Name)
	fmt.Fprintf(t.writer, "ID:         %s\n", sandbox.ID)
	fmt.Fprintf(t.writer, "Backend:    %s\n", sandbox.Backend)
	fmt.Fprintf(t.writer, "Status:     %s\n", sandbox.Status)

	if sandbox.Spec.Image != "" {
		fmt.Fprintf(t.writer, "Image:      %s\n", sandbox.Spec.Image)
	}
	if len(sandbox.Spec.Command) > 0 {
		fmt.Fprintf(t.writer, "Command:    %s\n", strings.Join(sandbox.Spec.Command, " "))
	}
	if sandbox.Spec.Resources.VCPUs > 0 {
		fmt.Fprintf(t.writer, "VCPUs:      %.2f\n", sandbox.Spec.Resources.VCPUs)
	}
	if sandbox.Spec.Resources.MemoryMB > 0 {
		fmt.Fprintf(t.writer, "Memory:     %s\n", FormatMemory(sandbox.Spec.Resources.MemoryMB))
	}
	for _, u := range sandbox.ExposedURLs {
		fmt.Fprintf(t.writer, "URL:        %d%s -> %s\n", u.Port, u.Path, u.URL)
	}
	if sandbox.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", sandbox.Error)
	}

	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(sandbox.CreatedAt))
	if sandbox.StartedAt != nil {
		fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(*sandbox.StartedAt))
	}
	if sandbox.StoppedAt != nil {
		fmt.Fprintf(t.writer, "Stopped:    %s\n", FormatTimestamp(*sandbox.StoppedAt))
	}

	return nil
}

// PrintTasks prints session tasks in a table format.
func (t *TablePrinter) PrintTasks(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tORDER\tSTATUS\tDATA\tUPDATED")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", task.ID, task.Order, task.Status, formatData(task.Data), TimeAgo(task.UpdatedAt))
	}

	return nil
}

// PrintChecks prints backend preflight check results.
func (t *TablePrinter) PrintChecks(results []model.CheckResult) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "BACKEND\tCHECK\tSTATUS\tMESSAGE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Backend, r.ID, r.Status, r.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	ok, warnings, errors := model.CountByStatus(results)
	fmt.Fprintf(t.writer, "\n%d ok, %d warnings, %d errors\n", ok, warnings, errors)

	return nil
}

// PrintBackends prints the registered backends.
func (t *TablePrinter) PrintBackends(backends []model.Backend) error {
	for _, b := range backends {
		fmt.Fprintln(t.writer, b)
	}
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func joinURLs(urls []model.ExposedURL) string {
	if len(urls) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(urls))
	for _, u := range urls {
		parts = append(parts, u.URL)
	}
	return strings.Join(parts, ",")
}

// formatData prints the task data as sorted key=value pairs.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return "-"
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}
