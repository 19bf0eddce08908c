package amqp

import (
	"encoding/json"
	"time"

	"green/internal/report"
)

// Message types carried in the AMQP Type property.
const (
	TypeRecordsIngested = "records.ingested"
	TypeReportPublish   = "report.publish"
)

// RecordsIngestedMessage announces a stored upload batch. The worker loads
// the rows by batch id, so only the reference travels on the wire.
type RecordsIngestedMessage struct {
	BatchID   string    `json:"batch_id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordsIngestedMessage(batchID string, count int) *RecordsIngestedMessage {
	return &RecordsIngestedMessage{
		BatchID:   batchID,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordsIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordsIngestedMessageFromJSON(data []byte) (*RecordsIngestedMessage, error) {
	var msg RecordsIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReportPublishMessage asks the worker to render a period and push it to
// the configured spreadsheet.
type ReportPublishMessage struct {
	Query     report.RangeQuery `json:"query"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewReportPublishMessage(q report.RangeQuery) *ReportPublishMessage {
	return &ReportPublishMessage{
		Query:     q,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportPublishMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportPublishMessageFromJSON(data []byte) (*ReportPublishMessage, error) {
	var msg ReportPublishMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
