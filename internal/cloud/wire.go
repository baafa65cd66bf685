package cloud

// JSON shapes of the records/query endpoint, shared by the HTTP database
// and the record service.

// ZoneID names a record zone on the wire.
type ZoneID struct {
	ZoneName string `json:"zoneName"`
}

// QuerySpec is the "query" member of a QueryRequest.
type QuerySpec struct {
	RecordType string   `json:"recordType"`
	FilterBy   []Filter `json:"filterBy,omitempty"`
}

// QueryRequest is the body of POST .../records/query.
type QueryRequest struct {
	Query        QuerySpec `json:"query"`
	DesiredKeys  []string  `json:"desiredKeys,omitempty"`
	ResultsLimit int       `json:"resultsLimit,omitempty"`
	ZoneID       *ZoneID   `json:"zoneID,omitempty"`
}

// FieldValue wraps a field value with its wire type.
type FieldValue struct {
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
}

// WireRecord is one entry of QueryResponse.Records. A record that could not
// be fetched carries ServerErrorCode instead of fields.
type WireRecord struct {
	RecordName      string                `json:"recordName"`
	RecordType      string                `json:"recordType,omitempty"`
	Fields          map[string]FieldValue `json:"fields,omitempty"`
	ServerErrorCode ErrorCode             `json:"serverErrorCode,omitempty"`
	Reason          string                `json:"reason,omitempty"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Records            []WireRecord `json:"records"`
	ContinuationMarker string       `json:"continuationMarker,omitempty"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	UUID            string    `json:"uuid,omitempty"`
	ServerErrorCode ErrorCode `json:"serverErrorCode"`
	Reason          string    `json:"reason,omitempty"`
}

// FieldType names the wire type of a decoded JSON value.
func FieldType(v any) string {
	switch v.(type) {
	case string:
		return "STRING"
	case float64, float32:
		return "DOUBLE"
	case int, int64, int32:
		return "INT64"
	case bool:
		return "INT64"
	case []any:
		return "LIST"
	case map[string]any:
		return "STRUCT"
	}
	return ""
}
