package schedule

// AdminWindowOpen reports whether administrative commands may run at the
// given moment. The window closes when the bot wakes on registration day
// and reopens at the weekly reset on the event day; other days are open.
func (s *Service) AdminWindowOpen() bool {
	now := s.now().In(s.cfg.Location)
	clock := now.Format("15:04")
	switch now.Weekday() {
	case s.cfg.OpenWeekday:
		return clock < s.cfg.WakeAt
	case s.cfg.EventWeekday:
		return clock >= s.cfg.ResetAt
	default:
		return true
	}
}
