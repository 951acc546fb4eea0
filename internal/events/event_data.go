package events

import "encoding/json"

// EventData is implemented by typed event payloads
type EventData interface {
	EventType() EventType
}

// MarketDataUpdatedData is emitted after a poll cycle writes fresh quotes
type MarketDataUpdatedData struct {
	Symbols []string `json:"symbols"`
	Source  string   `json:"source"`
}

// EventType returns the event type for MarketDataUpdatedData
func (d *MarketDataUpdatedData) EventType() EventType {
	return MarketDataUpdated
}

// HealthStatusChangedData carries the new and previous priority status
type HealthStatusChangedData struct {
	PriorityStatus   string `json:"priority_status"`
	PriorityMessage  string `json:"priority_message"`
	PreviousPriority string `json:"previous_priority,omitempty"`
}

// EventType returns the event type for HealthStatusChangedData
func (d *HealthStatusChangedData) EventType() EventType {
	return HealthStatusChanged
}

// AuthStateChangedData is emitted when the auth state transitions
type AuthStateChangedData struct {
	State         string `json:"state"`
	PreviousState string `json:"previous_state"`
	RequiresLogin bool   `json:"requires_login"`
}

// EventType returns the event type for AuthStateChangedData
func (d *AuthStateChangedData) EventType() EventType {
	return AuthStateChanged
}

// FeedStateChangedData is emitted when the feed state transitions
type FeedStateChangedData struct {
	State         string `json:"state"`
	PreviousState string `json:"previous_state"`
}

// EventType returns the event type for FeedStateChangedData
func (d *FeedStateChangedData) EventType() EventType {
	return FeedStateChanged
}

// SettingsChangedData names the settings keys that were written
type SettingsChangedData struct {
	Keys []string `json:"keys"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// toMap flattens typed data into the map carried on Event
func toMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
