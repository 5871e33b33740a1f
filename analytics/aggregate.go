package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"foodcost/api/models"
)

const (
	topPagesLimit     = 10
	recentEventsLimit = 50
	utmNone           = "(none)"
	leadSourceUnknown = "Unknown"
	dayLayout         = "2006-01-02"
)

// Funnel step labels, in order.
const (
	StepPageViews    = "Page views"
	StepSectionViews = "Section views"
	StepCTAClicks    = "CTA clicks"
	StepFormSubmits  = "Form submits"
	StepLeads        = "Leads"
)

// Facts is everything read for one report window.
type Facts struct {
	PageViews []models.PageView
	Events    []models.AnalyticsEvent
	Leads     []models.Lead
}

// tally counts keys and remembers the order they were first seen so that
// ranking is stable.
type tally[K comparable] struct {
	order  []K
	counts map[K]int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: make(map[K]int)}
}

func (t *tally[K]) add(k K) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k]++
}

type ranked[K comparable] struct {
	key   K
	count int
}

// ranked returns keys by descending count, ties in first-seen order.
func (t *tally[K]) ranked() []ranked[K] {
	out := make([]ranked[K], 0, len(t.order))
	for _, k := range t.order {
		out = append(out, ranked[K]{k, t.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}

type utmKey struct {
	source, medium, campaign string
}

type daily struct {
	views, events, leads int
	sessions             map[string]struct{}
}

// Aggregate computes the report over facts. It is a pure function of its
// inputs; loc only affects the hour-of-day histogram.
func Aggregate(f Facts, loc *time.Location) models.Report {
	if loc == nil {
		loc = time.UTC
	}

	days := make(map[string]*daily)
	dayOf := func(t time.Time) *daily {
		key := t.UTC().Format(dayLayout)
		d, ok := days[key]
		if !ok {
			d = &daily{sessions: make(map[string]struct{})}
			days[key] = d
		}
		return d
	}

	sessions := make(map[string]struct{})
	pages := newTally[string]()
	sources := newTally[string]()
	devices := newTally[string]()
	var hourly [24]int

	for _, pv := range f.PageViews {
		d := dayOf(pv.CreatedAt)
		d.views++
		if pv.SessionID != nil && *pv.SessionID != "" {
			d.sessions[*pv.SessionID] = struct{}{}
			sessions[*pv.SessionID] = struct{}{}
		}
		pages.add(pv.Page)
		sources.add(ClassifyReferrer(pv.Referrer))
		devices.add(ClassifyDevice(pv.UserAgent))
		hourly[pv.CreatedAt.In(loc).Hour()]++
	}

	eventNames := newTally[string]()
	for _, e := range f.Events {
		dayOf(e.CreatedAt).events++
		eventNames.add(e.EventName)
	}

	leadSources := newTally[string]()
	campaigns := newTally[utmKey]()
	for _, l := range f.Leads {
		dayOf(l.CreatedAt).leads++

		src := string(l.Source)
		if src == "" {
			src = leadSourceUnknown
		}
		leadSources.add(src)

		if k, ok := parseUTM(l.UtmData); ok {
			campaigns.add(k)
		}
	}

	r := models.Report{
		TotalViews:          len(f.PageViews),
		TotalUniqueSessions: len(sessions),
		TotalEvents:         len(f.Events),
		TotalLeads:          len(f.Leads),
		ConversionRate:      conversionRate(len(f.Leads), len(sessions)),
		DailyStats:          dailyStats(days),
		EventCounts:         make(map[string]int, len(eventNames.counts)),
		TopPages:            make([]models.PageCount, 0, topPagesLimit),
		TrafficSources:      make([]models.SourceCount, 0),
		Devices:             make([]models.DeviceCount, 0, 3),
		EventsByCategory:    eventsByCategory(eventNames),
		LeadsBySource:       make([]models.SourceCount, 0),
		UtmCampaigns:        make([]models.UtmCampaign, 0),
		Funnel:              funnel(len(f.PageViews), eventNames, len(f.Leads)),
		RecentEvents:        recentEvents(f.Events),
		HourlyActivity:      make([]models.HourlyActivity, 0, 24),
	}

	for k, n := range eventNames.counts {
		r.EventCounts[k] = n
	}
	for _, p := range pages.ranked() {
		if len(r.TopPages) == topPagesLimit {
			break
		}
		r.TopPages = append(r.TopPages, models.PageCount{Page: p.key, Count: p.count})
	}
	for _, s := range sources.ranked() {
		r.TrafficSources = append(r.TrafficSources, models.SourceCount{Source: s.key, Count: s.count})
	}
	for _, d := range devices.ranked() {
		r.Devices = append(r.Devices, models.DeviceCount{Device: d.key, Count: d.count})
	}
	for _, s := range leadSources.ranked() {
		r.LeadsBySource = append(r.LeadsBySource, models.SourceCount{Source: s.key, Count: s.count})
	}
	for _, c := range campaigns.ranked() {
		r.UtmCampaigns = append(r.UtmCampaigns, models.UtmCampaign{
			Source:   c.key.source,
			Medium:   c.key.medium,
			Campaign: c.key.campaign,
			Leads:    c.count,
		})
	}
	for h, n := range hourly {
		r.HourlyActivity = append(r.HourlyActivity, models.HourlyActivity{Hour: h, Count: n})
	}

	return r
}

func conversionRate(leads, sessions int) string {
	if sessions == 0 {
		return "0"
	}
	// halves round up, so 6.25 reads as 6.3
	pct := math.Floor(float64(leads)*1000/float64(sessions)+0.5) / 10
	return fmt.Sprintf("%.1f", pct)
}

func dailyStats(days map[string]*daily) []models.DailyStat {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.DailyStat, 0, len(keys))
	for _, k := range keys {
		d := days[k]
		out = append(out, models.DailyStat{
			Date:           k,
			Views:          d.views,
			UniqueSessions: len(d.sessions),
			Events:         d.events,
			Leads:          d.leads,
		})
	}
	return out
}

func eventsByCategory(names *tally[string]) []models.EventCategory {
	grouped := make(map[string][]models.EventCount)
	for _, n := range names.ranked() {
		c := CategoryFor(n.key)
		grouped[c] = append(grouped[c], models.EventCount{EventName: n.key, Count: n.count})
	}

	out := make([]models.EventCategory, 0, len(grouped))
	for _, c := range categoryOrder {
		if events, ok := grouped[c]; ok {
			out = append(out, models.EventCategory{Category: c, Events: events})
		}
	}
	return out
}

// funnel reports raw stage counts. Later stages may exceed earlier ones.
func funnel(views int, names *tally[string], leads int) []models.FunnelStep {
	return []models.FunnelStep{
		{Step: StepPageViews, Count: views},
		{Step: StepSectionViews, Count: names.counts["section_view"]},
		{Step: StepCTAClicks, Count: names.counts["cta_click"]},
		{Step: StepFormSubmits, Count: names.counts["form_submit"] + names.counts["callback_submit"]},
		{Step: StepLeads, Count: leads},
	}
}

func recentEvents(events []models.AnalyticsEvent) []models.RecentEvent {
	sorted := make([]models.AnalyticsEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > recentEventsLimit {
		sorted = sorted[:recentEventsLimit]
	}

	out := make([]models.RecentEvent, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, models.RecentEvent{
			EventName: e.EventName,
			EventData: e.EventData,
			Page:      e.Page,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// parseUTM extracts the campaign triple from a lead's utm payload. ok is
// false when the payload carries none of source, medium or campaign.
func parseUTM(raw json.RawMessage) (utmKey, bool) {
	if len(raw) == 0 {
		return utmKey{}, false
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return utmKey{}, false
	}

	k := utmKey{
		source:   utmValue(fields["utm_source"]),
		medium:   utmValue(fields["utm_medium"]),
		campaign: utmValue(fields["utm_campaign"]),
	}
	if k.source == utmNone && k.medium == utmNone && k.campaign == utmNone {
		return utmKey{}, false
	}
	return k, true
}

func utmValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return utmNone
	case string:
		if val == "" {
			return utmNone
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}
