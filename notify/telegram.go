package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"foodcost/api/config"
	"foodcost/api/models"
)

// sendTimeout bounds one notification, independent of the request that created the lead.
const sendTimeout = 10 * time.Second

var sourceLabels = map[models.LeadSource]string{
	models.LeadSourceCallback:   "Обратный звонок",
	models.LeadSourceCalculator: "Калькулятор",
	models.LeadSourceForm:       "Форма",
}

// Telegram posts new-lead messages to a chat through the Bot API.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	wg      sync.WaitGroup
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NewTelegram returns nil when the bot token or chat id is missing.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	if !cfg.Enabled() {
		log.Info().Msg("Telegram lead notifications disabled")
		return nil
	}
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Telegram{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		client:  &http.Client{Timeout: sendTimeout, Transport: tr},
	}
}

// LeadCreated sends the notification in the background. Failures are logged only.
func (t *Telegram) LeadCreated(lead models.Lead) {
	if t == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := t.Send(ctx, LeadMessage(lead)); err != nil {
			log.Warn().Err(err).Str("lead_id", lead.ID).Msg("Failed to send Telegram lead notification")
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (t *Telegram) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram: http %d", resp.StatusCode)
	}
	return nil
}

// LeadMessage renders the chat message for a new lead. User input is HTML-escaped.
func LeadMessage(lead models.Lead) string {
	label, ok := sourceLabels[lead.Source]
	if !ok {
		label = sourceLabels[models.LeadSourceForm]
	}

	lines := []string{
		"📩 <b>Новая заявка с сайта</b>",
		"",
		"👤 <b>Имя:</b> " + html.EscapeString(lead.Name),
		"📞 <b>Телефон:</b> " + html.EscapeString(lead.Phone),
	}
	if lead.Email != nil && *lead.Email != "" {
		lines = append(lines, "📧 <b>Email:</b> "+html.EscapeString(*lead.Email))
	}
	if lead.Message != nil && *lead.Message != "" {
		lines = append(lines, "💬 <b>Сообщение:</b> "+html.EscapeString(*lead.Message))
	}
	lines = append(lines, "📋 <b>Источник:</b> "+label)

	return strings.Join(lines, "\n")
}
