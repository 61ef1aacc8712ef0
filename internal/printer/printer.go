package printer

import "github.com/slok/sbxhub/internal/model"

// Printer knows how to print sbxhub resources in different formats.
type Printer interface {
	PrintList(page model.Page) error
	PrintStatus(sandbox model.Sandbox) error
	PrintTasks(tasks []model.Task) error
	PrintChecks(results []model.CheckResult) error
	PrintBackends(backends []model.Backend) error
	PrintMessage(msg string) error
}
