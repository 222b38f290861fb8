package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/calcflow-labs/calcflow/internal/batch"
	"github.com/calcflow-labs/calcflow/internal/graph"
	"github.com/calcflow-labs/calcflow/internal/state"
	"github.com/calcflow-labs/calcflow/internal/table"
	"github.com/calcflow-labs/calcflow/internal/workbook"
)

// StepResult summarizes one executed tabular step.
type StepResult struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Rows       int    `json:"rows"`
	Unit       string `json:"unit,omitempty"`
	Warning    string `json:"warning,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// RunReport is the full outcome of one workbook evaluation.
type RunReport struct {
	Run      *state.Run               `json:"run"`
	Results  map[string]graph.Result  `json:"results"`
	Cyclic   []string                 `json:"cyclic,omitempty"`
	Steps    []StepResult             `json:"steps"`
	Datasets map[string]table.Dataset `json:"datasets"`
}

// Run evaluates the scalar graph, then executes the tabular steps in order.
// Node-level errors are recorded per node and do not fail the run; the
// first failing step aborts the remaining steps and fails the run.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	e.logger.Info("starting run", "workbook", e.wb.Name)

	run, err := e.store.CreateRun(e.wb.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	eval := graph.Evaluate(e.wb.Nodes, e.wb.Edges, e.logger)
	summary := state.Summary{Nodes: len(eval.Results)}
	for id, res := range eval.Results {
		if res.Error != "" {
			summary.NodeErrors++
			e.logger.Warn("node evaluation failed", "node", id, "error", res.Error)
		}
	}

	report := &RunReport{
		Run:      run,
		Results:  eval.Results,
		Cyclic:   eval.Cyclic,
		Datasets: make(map[string]table.Dataset, len(e.wb.Datasets)+len(e.wb.Steps)),
	}
	for name, ds := range e.wb.Datasets {
		report.Datasets[name] = ds
	}

	var runErr error
	for _, step := range e.wb.Steps {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		start := time.Now()
		out, unitStr, warning, err := e.executeStep(step, report.Datasets, eval)
		if err != nil {
			runErr = fmt.Errorf("step %s: %w", step.ID, err)
			e.logger.Error("step failed", "step", step.ID, "error", err.Error())
			break
		}

		report.Datasets[step.ID] = out
		result := StepResult{
			ID:         step.ID,
			Kind:       step.Kind,
			Rows:       len(out.Rows),
			Unit:       unitStr,
			Warning:    warning,
			DurationMS: time.Since(start).Milliseconds(),
		}
		report.Steps = append(report.Steps, result)
		summary.Steps++
		e.logger.Debug("step completed", "step", step.ID, "rows", result.Rows, "duration_ms", result.DurationMS)
	}

	status := state.RunStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = state.RunStatusFailed
		errMsg = runErr.Error()
	}
	if err := e.store.CompleteRun(run.ID, status, summary, errMsg); err != nil {
		e.logger.Warn("failed to record run completion", "run_id", run.ID, "error", err.Error())
	}
	if stored, err := e.store.GetRun(run.ID); err == nil {
		report.Run = stored
	}

	if runErr != nil {
		e.logger.Info("run failed", "run_id", run.ID, "error", runErr.Error())
	} else {
		e.logger.Info("run completed", "run_id", run.ID,
			"nodes", summary.Nodes, "node_errors", summary.NodeErrors, "steps", summary.Steps)
	}
	return report, runErr
}

// executeStep dispatches one step against the resolved dataset. The unit
// and warning returns only apply to formula steps.
func (e *Engine) executeStep(step workbook.Step, datasets map[string]table.Dataset, eval *graph.Evaluation) (table.Dataset, string, string, error) {
	ds, ok := datasets[step.Dataset]
	if !ok {
		return table.Dataset{}, "", "", fmt.Errorf("dataset %q not found", step.Dataset)
	}

	switch step.Kind {
	case workbook.StepFormula:
		scalars, err := scalarInputs(step, eval)
		if err != nil {
			return table.Dataset{}, "", "", err
		}
		res, err := batch.Evaluate(batch.Request{
			Dataset:      ds,
			ColumnName:   step.Column,
			Formula:      step.Formula,
			Scalars:      scalars,
			UnitOverride: step.Unit,
			Logger:       e.logger,
		})
		if err != nil {
			return table.Dataset{}, "", "", err
		}
		return res.Dataset, res.Unit, res.Warning, nil

	case workbook.StepTransform:
		sources := make([]table.Dataset, len(step.Sources))
		for i, name := range step.Sources {
			src, ok := datasets[name]
			if !ok {
				return table.Dataset{}, "", "", fmt.Errorf("source dataset %q not found", name)
			}
			sources[i] = src
		}
		ops, err := table.Operations(step.Operations)
		if err != nil {
			return table.Dataset{}, "", "", err
		}
		out, err := table.ApplyAll(ds, ops, sources)
		return out, "", "", err

	case workbook.StepJoin:
		lookup, ok := datasets[step.Lookup]
		if !ok {
			return table.Dataset{}, "", "", fmt.Errorf("lookup dataset %q not found", step.Lookup)
		}
		out, err := table.Join(ds, lookup, step.LeftKey, step.RightKey, step.TargetColumns)
		return out, "", "", err

	case workbook.StepFilter:
		out, err := table.Filter(ds, step.FilterColumn, step.Operator, step.Value)
		return out, "", "", err
	}
	return table.Dataset{}, "", "", fmt.Errorf("unknown step kind %q", step.Kind)
}

// scalarInputs resolves a formula step's named inputs to calculated graph
// values. A node that failed or never produced a value is an error here,
// because the step's formula cannot run without it.
func scalarInputs(step workbook.Step, eval *graph.Evaluation) (map[string]batch.ScalarInput, error) {
	if len(step.Inputs) == 0 {
		return nil, nil
	}
	scalars := make(map[string]batch.ScalarInput, len(step.Inputs))
	for name, nodeID := range step.Inputs {
		v, ok := eval.Values[nodeID]
		if !ok {
			return nil, fmt.Errorf("input %q: node %q has no calculated value", name, nodeID)
		}
		unitStr := ""
		if !v.Unit.IsEmpty() {
			unitStr = v.Unit.Format()
		}
		scalars[name] = batch.ScalarInput{Value: v.Number, Unit: unitStr}
	}
	return scalars, nil
}
