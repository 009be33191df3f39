// Package notify turns order lifecycle events into user-facing notices.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/mgHariom/orderly/internal/kafka"
	"github.com/mgHariom/orderly/internal/orders"
	"github.com/mgHariom/orderly/pkg/logger"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

type Notice struct {
	EventID string    `json:"event_id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Deduper reports whether an event id is seen for the first time.
type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
}

const recentLimit = 100

type Service struct {
	dedup Deduper
	log   logger.Logger

	mu     sync.Mutex
	recent []Notice
}

func NewService(dedup Deduper, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{dedup: dedup, log: log.WithFields(logger.String("component", "notifier"))}
}

// HandleMessage is installed as the consumer handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// poison message: log and commit
		s.log.Warn("drop undecodable message", logger.String("topic", m.Topic), logger.Error(err))
		return nil
	}
	if s.dedup != nil {
		first, err := s.dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if !first {
			return nil
		}
	}

	n, ok, err := Render(env)
	if err != nil {
		s.log.Warn("drop malformed payload", logger.String("event_type", env.EventType), logger.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	s.log.Info(n.Message, logger.String("level", string(n.Level)), logger.String("event_id", n.EventID))

	s.mu.Lock()
	s.recent = append(s.recent, n)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[len(s.recent)-recentLimit:]
	}
	s.mu.Unlock()
	return nil
}

// Recent returns the latest notices, oldest first.
func (s *Service) Recent() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notice, len(s.recent))
	copy(out, s.recent)
	return out
}

// Render builds the notice for an envelope. ok is false for event types that
// produce no notice.
func Render(env orders.Envelope) (n Notice, ok bool, err error) {
	n = Notice{EventID: env.EventID, At: env.OccurredAt}
	switch env.EventType {
	case orders.EventBatchCreated:
		p, err := kafkax.UnwrapPayload[orders.BatchPayload](env.Payload)
		if err != nil {
			return n, false, err
		}
		n.Level = LevelInfo
		n.Message = fmt.Sprintf("Pending order for %s added (%s)", p.GroupKey, p.CurrentTotal.StringFixed(2))
	case orders.EventBatchAdjusted:
		p, err := kafkax.UnwrapPayload[orders.BatchPayload](env.Payload)
		if err != nil {
			return n, false, err
		}
		n.Level = LevelInfo
		n.Message = fmt.Sprintf("Pending order for %s updated: %s of %s remaining",
			p.GroupKey, p.CurrentTotal.StringFixed(2), p.OriginalTotal.StringFixed(2))
	case orders.EventBatchResolved:
		p, err := kafkax.UnwrapPayload[orders.BatchResolvedPayload](env.Payload)
		if err != nil {
			return n, false, err
		}
		n.Level = LevelSuccess
		n.Message = fmt.Sprintf("Order for %s delivered (%s)", p.GroupKey, p.Total.StringFixed(2))
	case orders.EventBatchDiscarded:
		p, err := kafkax.UnwrapPayload[orders.BatchDiscardedPayload](env.Payload)
		if err != nil {
			return n, false, err
		}
		n.Level = LevelWarning
		n.Message = fmt.Sprintf("Pending order for %s removed", p.GroupKey)
	case orders.EventEntryAged:
		p, err := kafkax.UnwrapPayload[orders.EntryAgedPayload](env.Payload)
		if err != nil {
			return n, false, err
		}
		n.Level = LevelWarning
		what := "Order"
		if p.Kind == orders.KindPending {
			what = "Pending order"
		}
		age := (time.Duration(p.AgeSec) * time.Second).Truncate(time.Minute)
		n.Message = fmt.Sprintf("%s for %s is %s old", what, p.GroupKey, age)
		if p.ThresholdSec > 0 {
			n.Message += fmt.Sprintf(", over the %s limit", time.Duration(p.ThresholdSec)*time.Second)
		}
	default:
		// OrderSaved duplicates BatchResolved for the user
		return n, false, nil
	}
	return n, true, nil
}
