// Package namespace derives topic and consumer-group names from a pipeline
// stage, an ingestion mode, and an optional backfill job id. Resolution is a
// pure function: backfill traffic never shares a topic or group with live
// traffic, and two jobs never collide because job ids are unique by
// construction.
package namespace

import (
	"errors"
	"fmt"
	"regexp"
)

// Mode selects between live ingestion and job-scoped historical replay.
type Mode string

const (
	ModeLive       Mode = "LIVE"
	ModeHistorical Mode = "HISTORICAL"
)

// Well-known pipeline stages.
const (
	StageTrades   = "trades"
	StageCandles  = "candles"
	StageTA       = "ta"
	StageNews     = "news"
	StageSignals  = "news_signals"
	StageFeatures = "features"
)

const groupPrefix = "cg_"

var (
	ErrEmptyStage   = errors.New("namespace: empty stage name")
	ErrBadStage     = errors.New("namespace: malformed stage name")
	ErrBadJobID     = errors.New("namespace: malformed job id")
	ErrMissingJobID = errors.New("namespace: historical mode requires a job id")
	ErrUnexpectedID = errors.New("namespace: live mode must not carry a job id")
	ErrUnknownMode  = errors.New("namespace: unknown mode")

	stagePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	jobPattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeHistorical:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Namespace is the resolved topic and consumer-group pair for one stage.
type Namespace struct {
	Stage string
	Mode  Mode
	JobID string
	Topic string
	Group string
}

// Resolve maps (stage, mode, job id) to deterministic topic and group names.
// Live mode returns the bare stage name; historical mode suffixes both names
// with the job id so replay traffic stays isolated.
func Resolve(stage string, mode Mode, jobID string) (Namespace, error) {
	if stage == "" {
		return Namespace{}, ErrEmptyStage
	}
	if !stagePattern.MatchString(stage) {
		return Namespace{}, fmt.Errorf("%w: %q", ErrBadStage, stage)
	}
	switch mode {
	case ModeLive:
		if jobID != "" {
			return Namespace{}, fmt.Errorf("%w: %q", ErrUnexpectedID, jobID)
		}
		return Namespace{
			Stage: stage,
			Mode:  mode,
			Topic: stage,
			Group: groupPrefix + stage,
		}, nil
	case ModeHistorical:
		if jobID == "" {
			return Namespace{}, ErrMissingJobID
		}
		if !jobPattern.MatchString(jobID) {
			return Namespace{}, fmt.Errorf("%w: %q", ErrBadJobID, jobID)
		}
		topic := fmt.Sprintf("%s_historical_%s", stage, jobID)
		return Namespace{
			Stage: stage,
			Mode:  mode,
			JobID: jobID,
			Topic: topic,
			Group: groupPrefix + topic,
		}, nil
	default:
		return Namespace{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// MustResolve is Resolve for startup paths where a failure is fatal.
func MustResolve(stage string, mode Mode, jobID string) Namespace {
	ns, err := Resolve(stage, mode, jobID)
	if err != nil {
		panic(err)
	}
	return ns
}
