package orders

const (
	TopicPending = "orderly.pending"
	TopicHistory = "orderly.history"
	TopicAlerts  = "orderly.alerts"
)

// Collection names in the document backend.
const (
	CollectionPending  = "pendingOrders"
	CollectionHistory  = "orders"
	CollectionProducts = "products"
)

// PartitionKey keeps every event of one batch (or order) in order.
func PartitionKey(id string) []byte { return []byte(id) }

// TopicFor routes an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderSaved:
		return TopicHistory
	case EventEntryAged:
		return TopicAlerts
	default:
		return TopicPending
	}
}
