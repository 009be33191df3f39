package redisx

import (
	"fmt"
	"time"
)

const (
	// Document collection: hash docs:{collection} -> id -> json
	KeyCollection = "docs:%s"

	// Change feed per collection: pub/sub channel changes:{collection}
	KeyChanges = "changes:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Idempotent batch submission: idem:pending:create:{key} -> batch_id
	KeyIdemPendingCreate = "idem:pending:create:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLIdempotency = 24 * time.Hour
)

func collectionKey(collection string) string { return fmt.Sprintf(KeyCollection, collection) }
func changesKey(collection string) string    { return fmt.Sprintf(KeyChanges, collection) }
