package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"tgrelay/internal/request"
	kit "tgrelay/internal/transport"
	logx "tgrelay/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API endpoint (local bot-api server, tests).
	APIURL  string
	Timeout time.Duration
}

// Client sends and deletes messages for one bot token. It never polls for updates.
type Client struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

var (
	_ kit.MessageTransport = (*Client)(nil)
	_ logx.Sender          = (*Client)(nil)
)

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   strings.TrimSpace(cfg.Token),
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, log: log, bot: b}, nil
}

// Send delivers req as a text message, photo or video. Text is sent in legacy
// Markdown, as a caption when media is attached.
func (c *Client) Send(ctx context.Context, req *request.SendRequest) (kit.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}

	opt := &tele.SendOptions{
		ParseMode: tele.ModeMarkdown,
		ThreadID:  req.TopicID,
	}
	if rm := buildMarkup(req.Buttons); rm != nil {
		opt.ReplyMarkup = rm
	}

	what, err := payload(req)
	if err != nil {
		return kit.MessageRef{}, err
	}

	msg, err := c.bot.Send(&tele.Chat{ID: req.ChatID}, what, opt)
	if err != nil {
		return kit.MessageRef{}, fmt.Errorf("send %s: %w", req.Kind, err)
	}
	c.log.Debug("message sent",
		logx.Int64("chat_id", req.ChatID),
		logx.Int("thread_id", req.TopicID),
		logx.Int("message_id", msg.ID),
		logx.String("kind", req.Kind.String()),
	)
	return kit.MessageRef{ChatID: req.ChatID, ThreadID: req.TopicID, MessageID: msg.ID}, nil
}

func payload(req *request.SendRequest) (any, error) {
	switch req.Kind {
	case request.Photo, request.Video:
		if st, err := os.Stat(req.MediaPath); err != nil || st.IsDir() {
			return nil, fmt.Errorf("%w: %s", kit.ErrFileMissing, req.MediaPath)
		}
	}
	switch req.Kind {
	case request.Photo:
		return &tele.Photo{File: tele.FromDisk(req.MediaPath), Caption: req.Text}, nil
	case request.PhotoURL:
		return &tele.Photo{File: tele.FromURL(req.MediaPath), Caption: req.Text}, nil
	case request.Video:
		return &tele.Video{File: tele.FromDisk(req.MediaPath), Caption: req.Text, Streaming: true}, nil
	case request.VideoURL:
		return &tele.Video{File: tele.FromURL(req.MediaPath), Caption: req.Text, Streaming: true}, nil
	default:
		return req.Text, nil
	}
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.bot.Delete(tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
	if err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

// SendLog posts a plain-text log line (no parse mode) for the operator-chat log sink.
func (c *Client) SendLog(ctx context.Context, chatID int64, threadID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
		ThreadID:              threadID,
		DisableWebPagePreview: true,
	})
	return err
}
