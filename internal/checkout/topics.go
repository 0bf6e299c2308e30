package checkout

const (
	TopicCheckoutConfirmed = "checkout.confirmed"
	TopicDecrementFailed   = "stock.decrement.failed"
)

// Partition key = purchase_id so all events of one purchase keep their order.
func PartitionKey(purchaseID string) []byte { return []byte(purchaseID) }
