package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/health"
)

// NightlyJob adapts Pipeline.Run to the scheduler.Job contract for the
// nightly batch run.
type NightlyJob struct {
	pipeline *Pipeline
	log      zerolog.Logger
}

// NewNightlyJob constructs a NightlyJob.
func NewNightlyJob(pipeline *Pipeline, log zerolog.Logger) *NightlyJob {
	return &NightlyJob{pipeline: pipeline, log: log.With().Str("component", "nightly_job").Logger()}
}

func (j *NightlyJob) Name() string { return "nightly_pipeline" }

// Run executes one full pipeline pass and logs the structured report.
func (j *NightlyJob) Run() error {
	health.LogSample(j.log, j.Name())
	report := j.pipeline.Run(context.Background())
	body, _ := json.Marshal(report.Stages)
	j.log.Info().RawJSON("stages", body).Int("agents", len(report.Agents)).Dur("duration", report.Duration).
		Msg("nightly pipeline run complete")
	return nil
}
