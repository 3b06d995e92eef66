package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kolo/xmlrpc"
	"go.uber.org/zap"
)

var (
	ErrAuthenticationFailed = errors.New("odoo authentication failed")
	ErrNoChannel            = errors.New("odoo has no discuss channel")
)

// OdooConfig holds the XML-RPC credentials for an Odoo instance.
type OdooConfig struct {
	URL      string
	DB       string
	User     string
	Password string
	Timeout  time.Duration
}

// OdooPoster posts messages into Odoo discuss channels over XML-RPC.
//
// The uid and resolved channel ids are cached for the poster's lifetime.
// A channel is matched by case-insensitive name; when none matches, the
// first channel Odoo returns is used instead.
type OdooPoster struct {
	cfg       OdooConfig
	transport http.RoundTripper
	logger    *zap.Logger

	mu       sync.Mutex
	uid      int64
	channels map[string]int64
}

// NewOdooPoster creates an OdooPoster. No network calls happen until the
// first Post.
func NewOdooPoster(cfg OdooConfig, logger *zap.Logger) *OdooPoster {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = cfg.Timeout
	return &OdooPoster{
		cfg:       cfg,
		transport: tr,
		logger:    logger.Named("odoo"),
		channels:  make(map[string]int64),
	}
}

func (p *OdooPoster) Post(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.login(ctx); err != nil {
		return err
	}
	channelID, err := p.channel(ctx, msg.Channel)
	if err != nil {
		return err
	}

	kwargs := map[string]interface{}{
		"body":          msg.Body,
		"message_type":  "comment",
		"subtype_xmlid": "mail.mt_comment",
	}
	if msg.Subject != "" {
		kwargs["subject"] = msg.Subject
	}
	var messageID interface{}
	if err := p.execute(ctx, "discuss.channel", "message_post", []interface{}{[]interface{}{channelID}}, kwargs, &messageID); err != nil {
		// The session may have expired; force a fresh login next time.
		p.uid = 0
		return fmt.Errorf("message_post: %w", err)
	}

	p.logger.Debug("posted message",
		zap.String("channel", msg.Channel),
		zap.Int64("channel_id", channelID),
	)
	return nil
}

func (p *OdooPoster) login(ctx context.Context) error {
	if p.uid != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := xmlrpc.NewClient(p.cfg.URL+"/xmlrpc/2/common", p.transport)
	if err != nil {
		return fmt.Errorf("connect common endpoint: %w", err)
	}
	defer client.Close()

	var uid int64
	err = client.Call("authenticate", []interface{}{p.cfg.DB, p.cfg.User, p.cfg.Password, map[string]interface{}{}}, &uid)
	if err != nil {
		p.logger.Error("authenticate", zap.String("db", p.cfg.DB), zap.String("user", p.cfg.User), zap.Error(err))
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, err.Error())
	}
	// Odoo answers false (decoded as 0) for bad credentials.
	if uid == 0 {
		return ErrAuthenticationFailed
	}
	p.uid = uid
	return nil
}

func (p *OdooPoster) channel(ctx context.Context, name string) (int64, error) {
	if id, ok := p.channels[name]; ok {
		return id, nil
	}

	var ids []int64
	domain := []interface{}{[]interface{}{[]interface{}{"name", "ilike", name}}}
	if err := p.execute(ctx, "discuss.channel", "search", domain, map[string]interface{}{"limit": 1}, &ids); err != nil {
		return 0, fmt.Errorf("search channel: %w", err)
	}
	if len(ids) == 0 {
		p.logger.Warn("channel not found, using first channel", zap.String("channel", name))
		all := []interface{}{[]interface{}{}}
		if err := p.execute(ctx, "discuss.channel", "search", all, map[string]interface{}{"limit": 1}, &ids); err != nil {
			return 0, fmt.Errorf("search channel: %w", err)
		}
	}
	if len(ids) == 0 {
		return 0, ErrNoChannel
	}

	p.channels[name] = ids[0]
	return ids[0], nil
}

func (p *OdooPoster) execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := xmlrpc.NewClient(p.cfg.URL+"/xmlrpc/2/object", p.transport)
	if err != nil {
		return fmt.Errorf("connect object endpoint: %w", err)
	}
	defer client.Close()

	params := []interface{}{p.cfg.DB, p.uid, p.cfg.Password, model, method, args, kwargs}
	return client.Call("execute_kw", params, reply)
}
