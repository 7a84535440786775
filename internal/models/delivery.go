package models

// DeliveryResult describes the outcome of a single fan-out attempt. It feeds
// logging and metrics only; senders never see it.
type DeliveryResult string

const (
	Delivered       DeliveryResult = "delivered"
	ReceiverOffline DeliveryResult = "receiver_offline"
	StaleHandle     DeliveryResult = "stale_handle"
)
