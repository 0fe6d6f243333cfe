package backup

import "time"

func testTime() time.Time {
	return time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC)
}
