// ABOUTME: Transfer journal record shared by handlers and the store.
// ABOUTME: One entry per pushed file, download or listing.
package history

import "time"

// Entry describes the outcome of one feed operation.
type Entry struct {
	ID           int64     `json:"id"`
	Command      string    `json:"command"`
	Organisation string    `json:"organisation"`
	Repository   string    `json:"repository"`
	Subject      string    `json:"subject"`
	Version      string    `json:"version,omitempty"`
	Succeeded    bool      `json:"succeeded"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}
