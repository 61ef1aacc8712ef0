package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/sbxhub/internal/model"
)

// JSONPrinter prints sbxhub resources in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type listOutput struct {
	Items     []listItem `json:"items"`
	NextToken string     `json:"next_token,omitempty"`
}

// listItem represents a sandbox in the list output (subset of fields).
type listItem struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Backend     string             `json:"backend"`
	Status      string             `json:"status"`
	ExposedURLs []model.ExposedURL `json:"exposed_urls,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// statusOutput represents the full sandbox status output.
type statusOutput struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Backend     string             `json:"backend"`
	Status      string             `json:"status"`
	Spec        model.SandboxSpec  `json:"spec"`
	ExposedURLs []model.ExposedURL `json:"exposed_urls,omitempty"`
	Metadata    json.RawMessage    `json:"metadata,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	StartedAt   *time.Time         `json:"started_at"`
	StoppedAt   *time.Time         `json:"stopped_at"`
}

type taskOutput struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Order     int            `json:"order"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type checkOutput struct {
	Backend string `json:"backend"`
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintList prints a page of sandboxes in JSON format with a subset of fields.
func (j *JSONPrinter) PrintList(page model.Page) error {
	out := listOutput{Items: make([]listItem, len(page.Items)), NextToken: page.NextToken}
	for i, s := range page.Items {
		out.Items[i] = listItem{
			ID:          s.ID,
			Name:        s.Name,
			Backend:     string(s.Backend),
			Status:      string(s.Status),
			ExposedURLs: s.ExposedURLs,
			CreatedAt:   s.CreatedAt.UTC(),
		}
	}

	return j.encode(out)
}

// PrintStatus prints detailed sandbox status in JSON format.
func (j *JSONPrinter) PrintStatus(sandbox model.Sandbox) error {
	output := statusOutput{
		ID:          sandbox.ID,
		Name:        sandbox.Name,
		Backend:     string(sandbox.Backend),
		Status:      string(sandbox.Status),
		Spec:        sandbox.Spec,
		ExposedURLs: sandbox.ExposedURLs,
		Error:       sandbox.Error,
		CreatedAt:   sandbox.CreatedAt.UTC(),
		UpdatedAt:   sandbox.UpdatedAt.UTC(),
		StartedAt:   utcPtr(sandbox.StartedAt),
		StoppedAt:   utcPtr(sandbox.StoppedAt),
	}

	// Metadata is opaque, only print it when it's already JSON.
	if json.Valid(sandbox.Metadata) {
		output.Metadata = sandbox.Metadata
	}

	return j.encode(output)
}

// PrintTasks prints session tasks in JSON format.
func (j *JSONPrinter) PrintTasks(tasks []model.Task) error {
	out := make([]taskOutput, len(tasks))
	for i, t := range tasks {
		out[i] = taskOutput{
			ID:        t.ID,
			SessionID: t.SessionID,
			Order:     t.Order,
			Status:    string(t.Status),
			Data:      t.Data,
			CreatedAt: t.CreatedAt.UTC(),
			UpdatedAt: t.UpdatedAt.UTC(),
		}
	}

	return j.encode(out)
}

// PrintChecks prints backend preflight check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	out := make([]checkOutput, len(results))
	for i, r := range results {
		out[i] = checkOutput{
			Backend: string(r.Backend),
			ID:      r.ID,
			Status:  string(r.Status),
			Message: r.Message,
		}
	}

	return j.encode(out)
}

// PrintBackends prints the registered backends in JSON format.
func (j *JSONPrinter) PrintBackends(backends []model.Backend) error {
	out := make([]string, len(backends))
	for i, b := range backends {
		out[i] = string(b)
	}

	return j.encode(out)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
