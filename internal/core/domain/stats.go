package domain

import "time"

// DashboardStats aggregates marketplace counters. A figure whose query failed is zero.
type DashboardStats struct {
	TotalUsers         int64 `json:"totalUsers"`
	TotalProfessionals int64 `json:"totalProfessionals"`
	TotalBookings      int64 `json:"totalBookings"`
	TotalServices      int64 `json:"totalServices"`
}

// RealTimeMetrics is the short-window activity snapshot shown on the landing page.
type RealTimeMetrics struct {
	TodayBookings       int64     `json:"todayBookings"`
	WeeklyBookings      int64     `json:"weeklyBookings"`
	OnlineProfessionals int64     `json:"onlineProfessionals"`
	Timestamp           time.Time `json:"timestamp"`
}
