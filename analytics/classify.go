package analytics

import (
	"net/url"
	"strings"
)

const (
	SourceDirect    = "Direct"
	SourceGoogle    = "Google"
	SourceYandex    = "Yandex"
	SourceTelegram  = "Telegram"
	SourceVKontakte = "VKontakte"
	SourceInstagram = "Instagram"
	SourceFacebook  = "Facebook"

	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
)

type rule struct {
	needles []string
	label   string
}

// Evaluated top to bottom, first match wins.
var referrerRules = []rule{
	{[]string{"google"}, SourceGoogle},
	{[]string{"yandex", "ya.ru"}, SourceYandex},
	{[]string{"t.me", "telegram"}, SourceTelegram},
	{[]string{"vk.com", "vk.ru", "vkontakte"}, SourceVKontakte},
	{[]string{"instagram"}, SourceInstagram},
	{[]string{"facebook", "fb.com"}, SourceFacebook},
}

var deviceRules = []rule{
	{[]string{"ipad", "tablet"}, DeviceTablet},
	{[]string{"mobile", "android", "iphone"}, DeviceMobile},
}

func (r rule) match(s string) bool {
	for _, n := range r.needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// ClassifyReferrer maps a raw referrer to a traffic source label. Known
// networks are matched on the hostname when the referrer is a URL and on
// the raw string otherwise. Unknown URLs collapse to their hostname.
func ClassifyReferrer(referrer *string) string {
	if referrer == nil {
		return SourceDirect
	}
	raw := strings.TrimSpace(*referrer)
	if raw == "" || raw == "null" {
		return SourceDirect
	}

	host := ""
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	subject := strings.ToLower(raw)
	if host != "" {
		subject = strings.ToLower(host)
	}
	for _, r := range referrerRules {
		if r.match(subject) {
			return r.label
		}
	}

	if host != "" {
		return host
	}
	return raw
}

// ClassifyDevice buckets a user-agent string. A missing user agent counts
// as desktop.
func ClassifyDevice(userAgent *string) string {
	if userAgent == nil {
		return DeviceDesktop
	}
	ua := strings.ToLower(*userAgent)
	for _, r := range deviceRules {
		if r.match(ua) {
			return r.label
		}
	}
	return DeviceDesktop
}

const (
	CategoryConversions = "Conversions"
	CategoryContacts    = "Contacts"
	CategoryEngagement  = "Engagement"
	CategoryNavigation  = "Navigation"
	CategoryOther       = "Other"
)

// categoryOrder is the order categories appear in a report.
var categoryOrder = []string{
	CategoryConversions,
	CategoryContacts,
	CategoryEngagement,
	CategoryNavigation,
	CategoryOther,
}

var eventCategories = map[string]string{
	"form_submit":          CategoryConversions,
	"callback_submit":      CategoryConversions,
	"calculator_completed": CategoryConversions,

	"phone_click":    CategoryContacts,
	"whatsapp_click": CategoryContacts,
	"telegram_click": CategoryContacts,
	"email_click":    CategoryContacts,

	"calculator_started": CategoryEngagement,
	"case_study_view":    CategoryEngagement,
	"video_view":         CategoryEngagement,
	"service_view":       CategoryEngagement,
	"product_view":       CategoryEngagement,

	"cta_click":    CategoryNavigation,
	"section_view": CategoryNavigation,
	"nav_click":    CategoryNavigation,
	"scroll_depth": CategoryNavigation,
}

// CategoryFor returns the dashboard category of an event name.
func CategoryFor(eventName string) string {
	if c, ok := eventCategories[eventName]; ok {
		return c
	}
	return CategoryOther
}
