package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Art-of-X/sparkworks/internal/domain"
)

// appendEvent appends an event to the run's log. Event persistence failures
// are logged, never propagated; losing one progress event must not kill a
// run.
func (s *Service) appendEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: failed to marshal %s payload for run %s: %v", eventType, runID, err)
		return
	}
	if _, err := s.store.AppendEvent(ctx, runID, eventType, data); err != nil {
		log.Printf("ERROR: failed to append %s event for run %s: %v", eventType, runID, err)
	}
}
