// Package action runs provider actions. Every action extracts its input
// from the process state, executes against a fresh provider session and
// stores what it produced. Run then decides whether the surrounding
// workflow retries automatically or a human has to look at the issues.
package action

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"translation-orchestrator/internal/config"
	"translation-orchestrator/internal/domain"
	"translation-orchestrator/internal/provider"
	"translation-orchestrator/internal/settings"
	"translation-orchestrator/internal/telemetry"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeEscalated Outcome = "escalated"
)

// DefaultCommunicationRetries applies when no layer sets
// retryCommunicationErrors.
const DefaultCommunicationRetries = 5

// Process is the per-request state an action reads and writes. Issues are
// replaced on every run.
type Process[S any] struct {
	Site    string            `json:"site,omitempty"`
	State   S                 `json:"state"`
	Retry   domain.RetryState `json:"retry"`
	Issues  domain.Issues     `json:"issues"`
	Failure string            `json:"failure,omitempty"`
}

// Env carries what actions share. Static holds the built-in settings; it is
// consulted on its own when the stored settings cannot be read.
type Env struct {
	Settings settings.Loader
	Static   settings.Settings
	Sessions provider.SessionFactory
	Tracer   trace.Tracer
	Log      zerolog.Logger
}

// Definition describes one action. Execute reports partial results through
// emit; whatever was emitted last is stored even when Execute fails.
// Problems that do not abort the action go into issues.
type Definition[S, P, R any] struct {
	Name       string
	DelayKey   string
	Extract    func(state S) (P, error)
	Execute    func(ctx context.Context, in P, session *provider.Session, emit func(R), issues *domain.Issues) error
	Store      func(state S, result R) S
	AdaptDelay func(delay domain.RetryDelay, s settings.Settings, state S, issues *domain.Issues) domain.RetryDelay
}

// Run executes def once for proc and returns the updated process.
func Run[S, P, R any](ctx context.Context, env Env, def Definition[S, P, R], proc Process[S]) (Process[S], Outcome) {
	tracer := env.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	ctx, span := tracer.Start(ctx, "action."+def.Name, trace.WithAttributes(
		attribute.String(telemetry.ActionKey, def.Name),
	))
	defer span.End()

	log := env.Log.With().Str("action", def.Name).Logger()
	proc.Issues = domain.Issues{}
	proc.Failure = ""

	outcome, err := runOnce(ctx, env, def, &proc, log)
	if err != nil {
		f := domain.Classify(err)
		proc.Failure = f.Error()
		telemetry.SetError(span, f, attribute.String(telemetry.FailureKindKey, f.Kind.String()))
	}
	span.SetAttributes(attribute.String(telemetry.OutcomeKey, string(outcome)))
	return proc, outcome
}

func runOnce[S, P, R any](ctx context.Context, env Env, def Definition[S, P, R], proc *Process[S], log zerolog.Logger) (Outcome, error) {
	in, err := def.Extract(proc.State)
	if err != nil {
		f := domain.Classify(err)
		log.Warn().Err(err).Str("code", f.Code).Msg("action input invalid")
		proc.Issues.Add(f.Code, f.Entities...)
		proc.Retry = domain.RetryState{RetryDelaySeconds: resolveDelay(env.Static, def.DelayKey).SecondsInt()}
		return OutcomeEscalated, err
	}

	current, err := loadSettings(ctx, env, proc.Site)
	if err != nil {
		return settleFailure(proc, domain.Classify(err), env.Static, env.Static, def.DelayKey, log), err
	}

	session, err := env.Sessions.Open(ctx, current)
	if err != nil {
		return settleFailure(proc, domain.Classify(err), current, env.Static, def.DelayKey, log), err
	}
	defer session.Close(ctx)

	var (
		result  R
		emitted bool
	)
	emit := func(r R) {
		result = r
		emitted = true
	}
	execErr := def.Execute(ctx, in, session, emit, &proc.Issues)
	if emitted && def.Store != nil {
		proc.State = def.Store(proc.State, result)
	}
	if execErr != nil {
		return settleFailure(proc, domain.Classify(execErr), current, env.Static, def.DelayKey, log), execErr
	}

	delay := resolveDelay(current, def.DelayKey)
	if def.AdaptDelay != nil {
		delay = def.AdaptDelay(delay, current, proc.State, &proc.Issues)
	}
	proc.Retry = domain.RetryState{RetryDelaySeconds: delay.SecondsInt()}
	if !proc.Issues.Empty() {
		log.Info().Strs("codes", proc.Issues.Codes()).Msg("action finished with issues")
		return OutcomeEscalated, nil
	}
	return OutcomeSucceeded, nil
}

func loadSettings(ctx context.Context, env Env, site string) (settings.Settings, error) {
	if env.Settings == nil {
		return settings.Merge(env.Static), nil
	}
	return env.Settings.Load(ctx, site)
}

// settleFailure applies the retry policy for f. Only communication failures
// and repository outages are retried automatically.
func settleFailure[S any](proc *Process[S], f *domain.Failure, current, static settings.Settings, delayKey string, log zerolog.Logger) Outcome {
	log = log.With().Str("failure_kind", f.Kind.String()).Str("code", f.Code).Logger()

	switch f.Kind {
	case domain.FailureCommunication:
		return settleCommunication(proc, f, current, delayKey, log)

	case domain.FailureRepositoryUnavailable:
		delay := resolveStaticDelay(static, config.SettingRepositoryRetryDelay)
		proc.Retry = domain.RetryState{
			RemainingAutomaticRetries: domain.RetriesInfinite,
			RetryDelaySeconds:         delay.SecondsInt(),
			Active:                    true,
		}
		proc.Issues.Add(f.Code, f.Entities...)
		log.Warn().Err(f).Str("delay", delay.String()).Msg("local repository unavailable, retrying")
		return OutcomeRetrying

	case domain.FailureUnknown:
		log.Error().Err(f).Interface("entities", f.Entities).Msg("action failed unexpectedly")
	default:
		log.Warn().Err(f).Msg("action failed")
	}

	proc.Issues.Add(f.Code, f.Entities...)
	proc.Retry = domain.RetryState{RetryDelaySeconds: resolveDelay(current, delayKey).SecondsInt()}
	return OutcomeEscalated
}

func settleCommunication[S any](proc *Process[S], f *domain.Failure, current settings.Settings, delayKey string, log zerolog.Logger) Outcome {
	budget := current.Int(config.SettingRetryCommunicationErrors, DefaultCommunicationRetries)
	delay := resolveDelay(current, delayKey)
	retry := proc.Retry

	switch {
	case !proc.Issues.Empty():
		// Issues recorded by Execute end the automatic loop.
		proc.Issues.Add(f.Code, f.Entities...)
		proc.Retry = domain.RetryState{RetryDelaySeconds: delay.SecondsInt()}
		log.Warn().Err(f).Strs("codes", proc.Issues.Codes()).Msg("communication failure after issues, escalating")
		return OutcomeEscalated
	case !retry.InBoundedLoop() && budget > 0:
		proc.Retry = domain.RetryState{
			RemainingAutomaticRetries: budget - 1,
			RetryDelaySeconds:         delay.SecondsInt(),
			Active:                    true,
		}
	case retry.InBoundedLoop() && retry.RemainingAutomaticRetries > 0:
		proc.Retry = domain.RetryState{
			RemainingAutomaticRetries: retry.RemainingAutomaticRetries - 1,
			RetryDelaySeconds:         delay.SecondsInt(),
			Active:                    true,
		}
	default:
		proc.Issues.Add(f.Code, f.Entities...)
		proc.Retry = domain.RetryState{RetryDelaySeconds: delay.SecondsInt()}
		log.Warn().Err(f).Int("budget", budget).Msg("communication retries exhausted")
		return OutcomeEscalated
	}

	log.Info().Err(f).
		Int("remaining", proc.Retry.RemainingAutomaticRetries).
		Str("delay", delay.String()).
		Msg("communication failure, retrying")
	return OutcomeRetrying
}

// resolveDelay prefers the action's own key and falls back to the general
// retry-delay setting.
func resolveDelay(s settings.Settings, key string) domain.RetryDelay {
	if key != "" {
		if d, ok := s.RetryDelay(key); ok {
			return d
		}
	}
	if d, ok := s.RetryDelay(config.SettingDefaultRetryDelay); ok {
		return d
	}
	return domain.DefaultRetryDelay
}

func resolveStaticDelay(static settings.Settings, key string) domain.RetryDelay {
	if d, ok := static.RetryDelay(key); ok {
		return d
	}
	return domain.DefaultRetryDelay
}
