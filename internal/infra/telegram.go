package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"paygate/internal/models/db_models"
	"paygate/internal/services"
)

const defaultTelegramBase = "https://api.telegram.org"

// TelegramClient implements services.ChannelClient over the Telegram Bot API.
// One API handle is kept per bot token.
type TelegramClient struct {
	HTTP     *http.Client
	endpoint string
	log      *zap.Logger

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

func NewTelegramClient(baseURL string, log *zap.Logger) *TelegramClient {
	if baseURL == "" {
		baseURL = defaultTelegramBase
	}
	return &TelegramClient{
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		endpoint: strings.TrimRight(baseURL, "/") + "/bot%s/%s",
		log:      log.Named("telegram"),
		bots:     make(map[string]*tgbotapi.BotAPI),
	}
}

// contextDoer binds the library's context-free requests to ctx.
type contextDoer struct {
	ctx  context.Context
	base tgbotapi.HTTPClient
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.base.Do(req.WithContext(d.ctx))
}

// api returns a handle for token whose requests honour ctx. The first use of
// a token validates it with getMe.
func (c *TelegramClient) api(ctx context.Context, token string) (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	cached, ok := c.bots[token]
	c.mu.Unlock()

	if !ok {
		api, err := tgbotapi.NewBotAPIWithClient(token, c.endpoint, contextDoer{ctx: ctx, base: c.HTTP})
		if err != nil {
			return nil, classifyTelegramError("getMe", err)
		}
		api.Client = c.HTTP
		c.mu.Lock()
		c.bots[token] = api
		c.mu.Unlock()
		cached = api
	}

	bound := *cached
	bound.Client = contextDoer{ctx: ctx, base: c.HTTP}
	return &bound, nil
}

func (c *TelegramClient) request(ctx context.Context, token string, req tgbotapi.Chattable, method string) (*tgbotapi.APIResponse, error) {
	api, err := c.api(ctx, token)
	if err != nil {
		return nil, err
	}
	resp, err := api.Request(req)
	if err != nil {
		return nil, classifyTelegramError(method, err)
	}
	return resp, nil
}

// classifyTelegramError maps Bot API replies onto the channel client
// sentinels; everything else stays a transient error.
func classifyTelegramError(method string, err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	desc := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(desc, "user_already_participant"), strings.Contains(desc, "already a participant"):
		return fmt.Errorf("%w: telegram %s: %w", services.ErrAlreadyMember, method, err)
	case strings.Contains(desc, "user_not_participant"), strings.Contains(desc, "not a member"):
		return fmt.Errorf("%w: telegram %s: %w", services.ErrNotMember, method, err)
	case apiErr.Code == http.StatusForbidden,
		strings.Contains(desc, "chat not found"),
		strings.Contains(desc, "user is deactivated"):
		return fmt.Errorf("%w: telegram %s: %w", services.ErrRecipientUnreachable, method, err)
	}
	return fmt.Errorf("telegram %s (code %d): %w", method, apiErr.Code, err)
}

func (c *TelegramClient) memberStatus(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel, contact *db_models.Contact) (string, error) {
	api, err := c.api(ctx, bot.Token)
	if err != nil {
		return "", err
	}
	member, err := api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: channel.ChatID, UserID: contact.TelegramID},
	})
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "user not found") {
		return "left", nil
	}
	if err != nil {
		return "", classifyTelegramError("getChatMember", err)
	}
	return member.Status, nil
}

func isMemberStatus(status string) bool {
	switch status {
	case "creator", "administrator", "member", "restricted":
		return true
	}
	return false
}

func (c *TelegramClient) CreateInviteLink(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel) (string, error) {
	resp, err := c.request(ctx, bot.Token, tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: channel.ChatID},
		Name:       "paygate access",
	}, "createChatInviteLink")
	if err != nil {
		return "", err
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("telegram createChatInviteLink: decode result: %w", err)
	}
	if link.InviteLink == "" {
		return "", errors.New("telegram createChatInviteLink: empty invite link")
	}
	return link.InviteLink, nil
}

// AddMember lifts a previous removal and delivers the invite link to the
// contact. Bots cannot pull users into a chat themselves.
func (c *TelegramClient) AddMember(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel, contact *db_models.Contact, inviteLink string) error {
	status, err := c.memberStatus(ctx, bot, channel, contact)
	if err != nil {
		return err
	}
	if isMemberStatus(status) {
		return services.ErrAlreadyMember
	}

	if status == "kicked" {
		_, err := c.request(ctx, bot.Token, tgbotapi.UnbanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: channel.ChatID, UserID: contact.TelegramID},
			OnlyIfBanned:     true,
		}, "unbanChatMember")
		if err != nil {
			return err
		}
	}

	text := fmt.Sprintf("Your access to %s is ready: %s", channel.Title, inviteLink)
	return c.SendText(ctx, bot, contact, text)
}

// RemoveMember bans and immediately unbans, which removes the contact while
// still letting a later payment re-admit them.
func (c *TelegramClient) RemoveMember(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel, contact *db_models.Contact) error {
	status, err := c.memberStatus(ctx, bot, channel, contact)
	if err != nil {
		return err
	}
	if !isMemberStatus(status) {
		return services.ErrNotMember
	}

	target := tgbotapi.ChatMemberConfig{ChatID: channel.ChatID, UserID: contact.TelegramID}
	if _, err := c.request(ctx, bot.Token, tgbotapi.BanChatMemberConfig{ChatMemberConfig: target}, "banChatMember"); err != nil {
		return err
	}
	if _, err := c.request(ctx, bot.Token, tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: target}, "unbanChatMember"); err != nil {
		c.log.Warn("unban after removal failed",
			zap.Int64("chat_id", channel.ChatID),
			zap.Int64("user_id", contact.TelegramID),
			zap.Error(err))
	}
	return nil
}

func (c *TelegramClient) SendText(ctx context.Context, bot *db_models.Bot, contact *db_models.Contact, text string) error {
	_, err := c.request(ctx, bot.Token, tgbotapi.NewMessage(contact.TelegramID, text), "sendMessage")
	return err
}

func (c *TelegramClient) SendMedia(ctx context.Context, bot *db_models.Bot, contact *db_models.Contact, mediaURL string) error {
	_, err := c.request(ctx, bot.Token, tgbotapi.NewPhoto(contact.TelegramID, tgbotapi.FileURL(mediaURL)), "sendPhoto")
	return err
}
