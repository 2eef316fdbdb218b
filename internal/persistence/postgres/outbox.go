package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// eventMetadata describes how to route an outbox event.
type eventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]eventMetadata{
	"activity.started": {
		Topic:         "activity_events",
		SchemaSubject: "activity_events-activity.started-value",
	},
	"activity.deleted": {
		Topic:         "activity_events",
		SchemaSubject: "activity_events-activity.deleted-value",
	},
	"game.created": {
		Topic:         "game_events",
		SchemaSubject: "game_events-game.created-value",
	},
}

// insertOutbox records a domain event in the outbox table inside the caller's
// transaction, so the event is only published if the aggregate write commits.
func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}
