package api

// ScheduleMessageResponse — ответ на приём отложенного сообщения.
type ScheduleMessageResponse struct {
	EventID          string `json:"eventId"`
	DeliveryPlanned  string `json:"deliveryScheduledAt"`
	DestinationQueue string `json:"destinationQueueName"`
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
