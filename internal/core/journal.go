package core

import "time"

// ChangeEntry records one successful mutating tool call.
type ChangeEntry struct {
	ID        int64
	Tool      string
	Resources []string
	Arguments string
	Result    string
	Warning   string
	CreatedAt time.Time
}
