package domain

// UnknownSource is reported when a request does not name its origin.
const UnknownSource = "unknown"

// TrafficRecord is one inspected unit. Fields are unexported so a record
// cannot change after NewTrafficRecord returns; pass it by value.
type TrafficRecord struct {
	sourceAddress string
	payload       string
	declaredSize  int
}

// NewTrafficRecord builds a record. Negative sizes are clamped to zero so the
// size guard never observes an invalid value.
func NewTrafficRecord(sourceAddress, payload string, declaredSize int) TrafficRecord {
	if declaredSize < 0 {
		declaredSize = 0
	}
	return TrafficRecord{
		sourceAddress: sourceAddress,
		payload:       payload,
		declaredSize:  declaredSize,
	}
}

func (r TrafficRecord) SourceAddress() string {
	return r.sourceAddress
}

func (r TrafficRecord) Payload() string {
	return r.payload
}

func (r TrafficRecord) DeclaredSize() int {
	return r.declaredSize
}
