package model

// LeakRecord is one leaked line for a monitored email. The JSON keys match
// the baseline files written by earlier versions of the scanner.
type LeakRecord struct {
	Content string `json:"linea"`
	AddedAt string `json:"added"`
}

// RawRecord is a single element of the search API's "records" array.
type RawRecord map[string]any

// Notification is what gets rendered and pushed for each new leak.
type Notification struct {
	Email  string
	Record LeakRecord
}
