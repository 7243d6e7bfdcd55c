package event

import (
	"context"
	"steward/misc"
	"steward/persistence"

	"github.com/fundwit/go-commons/types"
)

var (
	EventPersistCreateFunc = eventPersistCreate
)

// CreateEvent appends one audit record. Persistence failure is surfaced to
// the caller; the trail must not drop records silently.
func CreateEvent(ctx context.Context, sourceType string, sourceId types.ID, sourceDesc string,
	category EventCategory, updatedProperties []UpdatedProperty, actorRole string) error {

	record := EventRecord{
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			ActorRole: actorRole,

			EventCategory:     category,
			UpdatedProperties: updatedProperties,
		},
		Timestamp: types.CurrentTimestamp(),
	}
	return EventPersistCreateFunc(ctx, &record)
}

func eventPersistCreate(ctx context.Context, record *EventRecord) error {
	if persistence.ActiveDataSourceManager == nil {
		misc.Log.WithField("sourceType", record.SourceType).WithField("sourceId", record.SourceId).
			Warn("no active data source, audit event not persisted")
		return nil
	}
	return persistence.ActiveDataSourceManager.GormDB(ctx).Create(record).Error
}
