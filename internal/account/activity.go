// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import "time"

// Activity is a best-effort side record of something a user did.
type Activity struct {
	UserID    string
	Activity  string
	Details   map[string]any
	Timestamp time.Time
}

// Stats summarizes the user collection.
type Stats struct {
	TotalUsers  int            `json:"total_users"`
	ActiveUsers int            `json:"active_users"`
	PlansCount  map[string]int `json:"plans_count"`
}

// Count adds a user to the summary.
func (s *Stats) Count(u *User) {
	if s.PlansCount == nil {
		s.PlansCount = make(map[string]int)
	}
	s.TotalUsers++
	if u.IsActive {
		s.ActiveUsers++
	}
	plan := u.Plan
	if plan == "" {
		plan = PlanFree
	}
	s.PlansCount[plan]++
}
