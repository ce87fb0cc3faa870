package redis

// Key prefixes for primary entity storage.
const (
	prefixEventType = "dispatch:evtype:"
	prefixSub       = "dispatch:sub:"
	prefixEvent     = "dispatch:evt:"
	prefixDelivery  = "dispatch:del:"
	prefixRetry     = "dispatch:retry:"
	prefixDLQ       = "dispatch:dlq:"
)

// Key prefixes for secondary lookups.
const (
	idxEventTypeID = "dispatch:i:evtype:id:" // + type ID -> name
	statsSub       = "dispatch:h:sub:stats:" // + subscription ID (hash)
)

// Key prefixes for sorted set indexes.
const (
	zEventTypeAll = "dispatch:z:evtype:all"
	zSubAll       = "dispatch:z:sub:all"
	zEventAll     = "dispatch:z:evt:all"
	zDeliveryAll  = "dispatch:z:del:all"
	zDeliverySub  = "dispatch:z:del:sub:" // + subscription ID
	zDeliveryEvt  = "dispatch:z:del:evt:" // + event ID
	zRetryDue     = "dispatch:z:retry:due"
	zDLQAll       = "dispatch:z:dlq:all"
	zDLQSub       = "dispatch:z:dlq:sub:" // + subscription ID
)

// Set indexes.
const (
	sSubActive = "dispatch:s:sub:active"
)

// Hash fields of the per-subscription stats hash.
const (
	statsFieldDeliveries = "delivery_count"
	statsFieldFailures   = "failure_count"
	statsFieldLastAt     = "last_delivery_at"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
