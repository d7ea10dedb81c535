package keys

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewJobKey returns an opaque identifier for one scrape attempt. Keys are
// unique with overwhelming probability across concurrent calls without any
// external coordination; the date prefix keeps raw-store listings browsable
// by day.
func NewJobKey() string {
	return fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102"), uuid.NewString())
}
