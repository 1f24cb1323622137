package tools

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ChartDataset is one series of a chart.
type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

func (d ChartDataset) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Label, validation.Required),
		validation.Field(&d.Data, validation.Required),
	)
}

// RenderChartArgs is echoed back as the chart payload.
type RenderChartArgs struct {
	ChartType string         `json:"chart_type"`
	Title     string         `json:"title"`
	Labels    []string       `json:"labels"`
	Datasets  []ChartDataset `json:"datasets"`
}

func (a *RenderChartArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ChartType, validation.Required, validation.In("bar", "line", "doughnut", "pie")),
		validation.Field(&a.Title, validation.Required),
		validation.Field(&a.Labels, validation.Required),
		validation.Field(&a.Datasets, validation.Required),
	)
}

func renderChart(_ context.Context, args *RenderChartArgs) (interface{}, error) {
	return args, nil
}

// ChartExecutors returns the chart tool.
func ChartExecutors() map[string]Executor {
	return map[string]Executor{
		"render_chart": Typed[RenderChartArgs](renderChart),
	}
}
