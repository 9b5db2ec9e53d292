package attendance

import "time"

// SetClock pins the service clock in tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
