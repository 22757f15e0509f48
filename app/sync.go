package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/artpar/monoclient/adapters/clock"
	"github.com/artpar/monoclient/adapters/indicator"
	"github.com/artpar/monoclient/adapters/metrics"
	"github.com/artpar/monoclient/adapters/transport"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/patch"
	"github.com/artpar/monoclient/domain/protocol"
	"github.com/artpar/monoclient/ports"
	"github.com/rs/zerolog"
)

// DefaultRetryBackoff is the pause after a failed pull.
const DefaultRetryBackoff = time.Second

// State is the sync loop state.
type State int32

const (
	// StateActive means a pull is in flight or instructions are being applied.
	StateActive State = iota
	// StateRetrying means the last pull failed and the loop is backing off.
	StateRetrying
	// StateExpired means the server ended the session. Terminal.
	StateExpired
	// StateFatal means the server reported an error or sent an instruction
	// the page could not apply. Terminal.
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRetrying:
		return "retrying"
	case StateExpired:
		return "expired"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether the loop has stopped for good.
func (s State) Terminal() bool {
	return s == StateExpired || s == StateFatal
}

var (
	// ErrUnknownInstruction is returned for a pull answer of an unknown kind.
	ErrUnknownInstruction = errors.New("unknown instruction")

	// ErrNoEvaluator is returned for script entries when no evaluator is set.
	ErrNoEvaluator = errors.New("no script evaluator")
)

// ServerError is an error instruction sent by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// SyncConfig configures the sync loop.
type SyncConfig struct {
	Document     *dom.Document
	Transport    ports.Transport
	Evaluator    ports.Evaluator
	Indicator    ports.Indicator
	Sleeper      ports.Sleeper
	Clock        ports.Clock
	PageURL      string
	MonoID       string
	RetryBackoff time.Duration
	Metrics      *metrics.Collector
	Logger       zerolog.Logger
}

// SyncLoop long-polls the server and applies what it answers.
type SyncLoop struct {
	doc       *dom.Document
	transport ports.Transport
	evaluator ports.Evaluator
	indicator ports.Indicator
	sleeper   ports.Sleeper
	clock     ports.Clock
	pageURL   string
	monoID    string
	backoff   time.Duration
	metrics   *metrics.Collector
	logger    zerolog.Logger

	state atomic.Int32
}

// NewSyncLoop creates a sync loop.
func NewSyncLoop(cfg SyncConfig) *SyncLoop {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	ind := cfg.Indicator
	if ind == nil {
		ind = indicator.Nop{}
	}
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	return &SyncLoop{
		doc:       cfg.Document,
		transport: cfg.Transport,
		evaluator: cfg.Evaluator,
		indicator: ind,
		sleeper:   sleeper,
		clock:     clk,
		pageURL:   cfg.PageURL,
		monoID:    cfg.MonoID,
		backoff:   backoff,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "sync").Str("mono_id", cfg.MonoID).Logger(),
	}
}

// State returns the current state.
func (s *SyncLoop) State() State {
	return State(s.state.Load())
}

func (s *SyncLoop) setState(st State) {
	s.state.Store(int32(st))
	if s.metrics != nil {
		s.metrics.SyncState.Set(float64(st))
	}
}

// Run pulls until the session expires, the server reports an error, an
// instruction cannot be decoded or applied, or ctx is done. Transport
// failures are retried forever. Run returns nil on expiry.
func (s *SyncLoop) Run(ctx context.Context) error {
	s.logger.Info().Msg("started")
	s.setState(StateActive)

	var streakStart time.Time
	retrying := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ins protocol.Instruction
		start := s.clock.Now()
		err := s.transport.Send(ctx, "post", s.pageURL, protocol.NewPullRequest(s.monoID), &ins, 0)
		if transport.IsDecode(err) {
			// The server has moved past this instruction; a retry would skip it.
			s.observePull("malformed", start)
			s.logger.Error().Err(err).Msg("malformed instruction")
			s.setState(StateFatal)
			return fmt.Errorf("pull: %w", err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.observePull("error", start)

			if !retrying {
				s.logger.Warn().Err(err).Msg("retrying...")
				streakStart = start
			}
			retrying = true
			s.setState(StateRetrying)
			s.indicator.Degraded()

			if err := s.sleeper.Sleep(ctx, s.backoff); err != nil {
				return err
			}
			continue
		}

		s.observePull("ok", start)
		if retrying {
			s.logger.Info().Dur("after", s.clock.Now().Sub(streakStart)).Msg("reconnected")
		}
		retrying = false
		s.setState(StateActive)
		s.indicator.Normal()

		done, err := s.handle(ins)
		if err != nil {
			s.setState(StateFatal)
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *SyncLoop) observePull(result string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.PullsTotal.WithLabelValues(result).Inc()
	s.metrics.PullDuration.Observe(s.clock.Now().Sub(start).Seconds())
}

// handle applies one instruction and reports whether the loop is done.
func (s *SyncLoop) handle(ins protocol.Instruction) (bool, error) {
	if s.metrics != nil {
		s.metrics.InstructionsTotal.WithLabelValues(ins.Kind).Inc()
	}

	switch ins.Kind {
	case protocol.KindEvents:
		for i, entry := range ins.Events {
			if err := s.dispatch(entry); err != nil {
				return false, fmt.Errorf("entry %d: %w", i, err)
			}
		}
		return false, nil

	case protocol.KindIgnore:
		return false, nil

	case protocol.KindExpired:
		s.setState(StateExpired)
		s.indicator.Expired()
		s.logger.Info().Msg("expired")
		return true, nil

	case protocol.KindError:
		s.logger.Error().Str("message", ins.Message).Msg("server error")
		return false, &ServerError{Message: ins.Message}

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownInstruction, ins.Kind)
	}
}

// dispatch runs one entry under the document lock: script first, then
// updates, each against the root as it stands at that moment.
func (s *SyncLoop) dispatch(entry protocol.Entry) error {
	var err error
	s.doc.Do(func() {
		if entry.Eval != nil {
			s.logger.Debug().Str("eval", *entry.Eval).Msg("<<")
			if err = s.eval(*entry.Eval); err != nil {
				return
			}
		}
		for _, u := range entry.Updates {
			s.logger.Debug().Interface("update", u).Msg("<<")
			if err = s.apply(u); err != nil {
				return
			}
		}
	})
	return err
}

func (s *SyncLoop) eval(code string) error {
	if s.evaluator == nil {
		return ErrNoEvaluator
	}

	err := s.evaluator.Eval(code)
	if s.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.EvalsTotal.WithLabelValues(result).Inc()
	}
	return err
}

func (s *SyncLoop) apply(u patch.Update) error {
	root, err := FindRoot(s.doc, s.monoID)
	if err != nil {
		return err
	}
	if err := patch.Apply(s.doc, root, u); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	if s.metrics != nil {
		s.metrics.UpdatesApplied.Inc()
	}
	return nil
}
