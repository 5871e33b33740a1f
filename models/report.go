package models

import (
	"encoding/json"
	"time"
)

// Report is the dashboard summary computed over a trailing window.
type Report struct {
	TotalViews          int    `json:"totalViews"`
	TotalUniqueSessions int    `json:"totalUniqueSessions"`
	TotalEvents         int    `json:"totalEvents"`
	TotalLeads          int    `json:"totalLeads"`
	ConversionRate      string `json:"conversionRate"`

	DailyStats       []DailyStat      `json:"dailyStats"`
	EventCounts      map[string]int   `json:"eventCounts"`
	TopPages         []PageCount      `json:"topPages"`
	TrafficSources   []SourceCount    `json:"trafficSources"`
	Devices          []DeviceCount    `json:"devices"`
	EventsByCategory []EventCategory  `json:"eventsByCategory"`
	LeadsBySource    []SourceCount    `json:"leadsBySource"`
	UtmCampaigns     []UtmCampaign    `json:"utmCampaigns"`
	Funnel           []FunnelStep     `json:"funnel"`
	RecentEvents     []RecentEvent    `json:"recentEvents"`
	HourlyActivity   []HourlyActivity `json:"hourlyActivity"`
}

type DailyStat struct {
	Date           string `json:"date"`
	Views          int    `json:"views"`
	UniqueSessions int    `json:"uniqueSessions"`
	Events         int    `json:"events"`
	Leads          int    `json:"leads"`
}

type PageCount struct {
	Page  string `json:"page"`
	Count int    `json:"count"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type DeviceCount struct {
	Device string `json:"device"`
	Count  int    `json:"count"`
}

type EventCount struct {
	EventName string `json:"eventName"`
	Count     int    `json:"count"`
}

type EventCategory struct {
	Category string       `json:"category"`
	Events   []EventCount `json:"events"`
}

type UtmCampaign struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Leads    int    `json:"leads"`
}

type FunnelStep struct {
	Step  string `json:"step"`
	Count int    `json:"count"`
}

type RecentEvent struct {
	EventName string          `json:"eventName"`
	EventData json.RawMessage `json:"eventData"`
	Page      *string         `json:"page"`
	CreatedAt time.Time       `json:"createdAt"`
}

type HourlyActivity struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}
