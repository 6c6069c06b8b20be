// Package oracle turns a life event into a (deity, narrative) pair.
//
// A synthesis is a small state machine:
//
//	Intake → Generating → Parsing → Validating → Finalized
//	                                    ↓ inconsistent
//	                               Repairing → Revalidating → Finalized
//
// A failed generation jumps straight to Fallback. The generator is called at most
// twice per synthesis, and both terminal states yield a label from the registry
// and a non-empty narrative.
package oracle

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mythforge/pkg/inference"
	"mythforge/pkg/metrics"
	"mythforge/pkg/schema"
	"mythforge/pkg/vocabulary"
)

const (
	DefaultTitle       = "A Mythic Tale"
	DefaultTemperature = 0.95
)

// ErrEmptyEvent rejects a request before any generation happens.
var ErrEmptyEvent = errors.New("life event description is required")

type State int

const (
	Intake State = iota
	Generating
	Parsing
	Validating
	Repairing
	Revalidating
	Finalized
	Fallback
)

func (s State) String() string {
	switch s {
	case Intake:
		return "intake"
	case Generating:
		return "generating"
	case Parsing:
		return "parsing"
	case Validating:
		return "validating"
	case Repairing:
		return "repairing"
	case Revalidating:
		return "revalidating"
	case Finalized:
		return "finalized"
	case Fallback:
		return "fallback"
	}
	return "unknown"
}

// Persister stores a finalized pair. It is called at most once per Forge.
type Persister interface {
	Finalize(ctx context.Context, draft schema.MythDraft) (schema.Myth, error)
}

// Synthesis describes how a pair was obtained.
type Synthesis struct {
	Label     string
	Narrative string
	State     State
	Verdict   Verdict
	Trace     []State
	Calls     int
	Repaired  bool
	Coerced   bool
	Reason    inference.Reason
}

type Oracle struct {
	Generator   inference.Generator
	Store       Persister
	Registry    *vocabulary.Registry
	Parser      Parser
	Validator   Validator
	Temperature float64
	Metrics     *metrics.Pipeline
	Logger      *log.Logger
}

type Option func(*Oracle)

func WithRegistry(r *vocabulary.Registry) Option { return func(o *Oracle) { o.Registry = r } }
func WithParser(p Parser) Option                 { return func(o *Oracle) { o.Parser = p } }
func WithValidator(v Validator) Option           { return func(o *Oracle) { o.Validator = v } }
func WithMetrics(m *metrics.Pipeline) Option     { return func(o *Oracle) { o.Metrics = m } }
func WithLogger(l *log.Logger) Option            { return func(o *Oracle) { o.Logger = l } }

// WithTemperature sets the sampling temperature; values outside [0,1] are clamped.
func WithTemperature(t float64) Option {
	return func(o *Oracle) { o.Temperature = inference.ClampTemperature(t) }
}

// New wires an oracle. store may be nil when only Synthesize is used.
func New(gen inference.Generator, store Persister, opts ...Option) *Oracle {
	o := &Oracle{
		Generator:   gen,
		Store:       store,
		Registry:    vocabulary.Default(),
		Parser:      TextParser{},
		Temperature: DefaultTemperature,
		Logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Validator == nil {
		o.Validator = RegistryValidator{Registry: o.Registry}
	}
	return o
}

// Synthesize runs the state machine for one event without persisting anything.
// The only error it returns is ErrEmptyEvent; generator trouble degrades to Fallback.
func (o *Oracle) Synthesize(ctx context.Context, event string) (Synthesis, error) {
	start := time.Now()
	system := SystemPrompt(o.Registry)
	repairer := Repairer{
		Generator:   o.Generator,
		Parser:      o.Parser,
		System:      system,
		Temperature: o.Temperature,
		Metrics:     o.Metrics,
		Logger:      o.Logger,
	}

	var (
		syn      Synthesis
		raw      string
		parsed   ParseResult
		repaired ParseResult
	)
	use := func(label, narrative string) {
		syn.Label, syn.Narrative = label, narrative
	}

	state := Intake
	for {
		syn.Trace = append(syn.Trace, state)

		switch state {
		case Intake:
			if strings.TrimSpace(event) == "" {
				return Synthesis{Trace: syn.Trace}, ErrEmptyEvent
			}
			state = Generating

		case Generating:
			out := o.Generator.Generate(ctx, system, UserPrompt(event), o.Temperature)
			syn.Calls++
			o.Metrics.Generation("initial", string(out.Reason))
			if !out.OK() {
				o.Logger.Warn("generation failed, using fallback", "reason", out.Reason, "error", out.Err)
				syn.Reason = out.Reason
				state = Fallback
				continue
			}
			raw = out.Text
			state = Parsing

		case Parsing:
			parsed = o.Parser.Parse(raw)
			if !parsed.HasNarrative {
				o.Logger.Debug("no narrative header, keeping raw output", "chars", len(raw))
			}
			state = Validating

		case Validating:
			syn.Verdict = o.Validator.Validate(parsed)
			o.Metrics.Verdict("initial", syn.Verdict.String())
			switch syn.Verdict {
			case Valid:
				use(parsed.Label, parsed.Narrative)
				state = Finalized
			case Inconsistent:
				state = Repairing
			default:
				o.Logger.Warn("invalid deity returned, applying fallback", "label", parsed.Label, "fallback", o.Registry.Fallback())
				use(o.Registry.Fallback(), parsed.Narrative)
				syn.Coerced = true
				state = Finalized
			}

		case Repairing:
			res, ok := repairer.Repair(ctx, raw)
			syn.Calls++
			if !ok {
				use(parsed.Label, parsed.Narrative)
				state = Finalized
				continue
			}
			repaired = res
			state = Revalidating

		case Revalidating:
			syn.Verdict = o.Validator.Validate(repaired)
			o.Metrics.Verdict("repair", syn.Verdict.String())
			if syn.Verdict != Valid && syn.Verdict != Inconsistent {
				o.Logger.Warn("repair produced an invalid deity, keeping original", "label", repaired.Label)
				use(parsed.Label, parsed.Narrative)
			} else {
				use(repaired.Label, repaired.Narrative)
				syn.Repaired = true
			}
			state = Finalized

		case Fallback:
			use(o.Registry.Fallback(), ApologyNarrative)
			return o.finish(syn, state, start), nil

		case Finalized:
			return o.finish(syn, state, start), nil

		default:
			panic(fmt.Sprintf("oracle: unreachable state %d", state))
		}
	}
}

// finish enforces the pair invariants whatever path produced it.
func (o *Oracle) finish(syn Synthesis, state State, start time.Time) Synthesis {
	syn.State = state
	if !o.Registry.Contains(syn.Label) {
		if syn.Label != "" {
			o.Logger.Warn("coercing label outside the registry", "label", syn.Label)
		}
		syn.Label = o.Registry.Fallback()
		syn.Coerced = true
	}
	syn.Narrative = strings.TrimSpace(syn.Narrative)
	if syn.Narrative == "" {
		syn.Narrative = ApologyNarrative
	}
	o.Metrics.Finished(state.String(), time.Since(start))
	return syn
}

// ForgeRequest is one myth to create. SourceEventID links the myth to a stored life event.
type ForgeRequest struct {
	OwnerID       string
	Event         string
	Title         string
	SourceEventID string
}

// Forge synthesizes a pair for req and persists it. Persistence is skipped once ctx is done.
func (o *Oracle) Forge(ctx context.Context, req ForgeRequest) (schema.Myth, error) {
	syn, err := o.Synthesize(ctx, req.Event)
	if err != nil {
		return schema.Myth{}, err
	}
	if err := ctx.Err(); err != nil {
		o.Logger.Warn("request cancelled before persisting myth", "owner", req.OwnerID, "error", err)
		return schema.Myth{}, err
	}

	myth, err := o.Store.Finalize(ctx, schema.MythDraft{
		OwnerID:       req.OwnerID,
		Title:         cmp.Or(strings.TrimSpace(req.Title), DefaultTitle),
		Label:         syn.Label,
		Narrative:     syn.Narrative,
		SourceEventID: req.SourceEventID,
	})
	if err != nil {
		return schema.Myth{}, fmt.Errorf("finalize myth: %w", err)
	}

	o.Logger.Info("myth forged", "id", myth.ID, "owner", myth.OwnerID, "deity", myth.Label,
		"state", syn.State, "verdict", syn.Verdict, "calls", syn.Calls, "repaired", syn.Repaired)
	return myth, nil
}
