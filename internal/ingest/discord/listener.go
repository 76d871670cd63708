// Package discord receives stock messages from Discord channels through the gateway.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/stock"
)

const defaultQueueSize = 16

// ErrNoChannels is returned by Run when no channel is configured.
var ErrNoChannels = errors.New("no discord channels configured")

// Ingester stores one event record. Implemented by ingest.Pipeline.
type Ingester interface {
	IngestEvent(ctx context.Context, rec stock.Record) error
}

// IngesterFunc adapts a function to Ingester.
type IngesterFunc func(ctx context.Context, rec stock.Record) error

// IngestEvent calls f.
func (f IngesterFunc) IngestEvent(ctx context.Context, rec stock.Record) error {
	return f(ctx, rec)
}

// Config contains listener configuration.
type Config struct {
	Token        string
	ChannelIDs   []string
	AuthorMarker string
	TitleMarker  string
	QueueSize    int
}

// Listener turns matching channel messages into stock records.
type Listener struct {
	config   Config
	ingester Ingester

	queues map[string]chan *discordgo.Message
	errCh  chan error
	wg     sync.WaitGroup

	mu     sync.RWMutex
	selfID string
}

// NewListener creates a new Discord listener.
func NewListener(config Config, ingester Ingester) *Listener {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	queues := make(map[string]chan *discordgo.Message, len(config.ChannelIDs))
	for _, id := range config.ChannelIDs {
		queues[id] = make(chan *discordgo.Message, config.QueueSize)
	}
	return &Listener{
		config:   config,
		ingester: ingester,
		queues:   queues,
		errCh:    make(chan error, 1),
	}
}

// Run connects to the gateway and processes messages until ctx is cancelled.
// It returns early with the first store failure.
func (l *Listener) Run(ctx context.Context) error {
	if len(l.queues) == 0 {
		return ErrNoChannels
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, err := l.newSession(runCtx)
	if err != nil {
		return err
	}
	l.startWorkers(runCtx)

	if err := session.Open(); err != nil {
		cancel()
		l.wg.Wait()
		return fmt.Errorf("open discord session: %w", err)
	}
	slog.Info("discord listener started", "channels", l.config.ChannelIDs)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-l.errCh:
	}

	cancel()
	if err := session.Close(); err != nil {
		slog.Warn("failed to close discord session", "error", err)
	}
	l.wg.Wait()

	slog.Info("discord listener stopped")
	return runErr
}

// newSession configures a gateway session whose handlers feed the channel queues.
// Handlers run synchronously on the gateway reader so messages reach a channel
// queue in the order Discord delivered them.
func (l *Listener) newSession(ctx context.Context) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + l.config.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.SyncEvents = true
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	session.AddHandler(l.onReady)
	session.AddHandler(l.onMessageCreate(ctx))
	return session, nil
}

func (l *Listener) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	l.setSelfID(r.User.ID)
	slog.Info("discord session ready", "user", r.User.Username)
}

func (l *Listener) onMessageCreate(ctx context.Context) func(*discordgo.Session, *discordgo.MessageCreate) {
	return func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		l.dispatch(ctx, m.Message)
	}
}

func (l *Listener) setSelfID(id string) {
	l.mu.Lock()
	l.selfID = id
	l.mu.Unlock()
}

func (l *Listener) self() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selfID
}

// startWorkers launches one goroutine per channel so a channel's messages are handled in order.
func (l *Listener) startWorkers(ctx context.Context) {
	for id, queue := range l.queues {
		l.wg.Add(1)
		go l.work(ctx, id, queue)
	}
}

func (l *Listener) work(ctx context.Context, channelID string, queue <-chan *discordgo.Message) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			rec := RecordFromMessage(msg)
			if err := l.ingester.IngestEvent(ctx, rec); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("discord message ingestion failed",
					"channel_id", channelID,
					"message_id", msg.ID,
					"error", err,
				)
				select {
				case l.errCh <- err:
				default:
				}
				return
			}
		}
	}
}

// dispatch routes an accepted message to its channel queue.
func (l *Listener) dispatch(ctx context.Context, msg *discordgo.Message) {
	if !l.Accept(msg) {
		return
	}
	queue := l.queues[msg.ChannelID]

	select {
	case queue <- msg:
	case <-ctx.Done():
	}
}

// Accept reports whether msg is a stock message from a watched channel.
func (l *Listener) Accept(msg *discordgo.Message) bool {
	if msg == nil || msg.Author == nil {
		return false
	}
	if _, ok := l.queues[msg.ChannelID]; !ok {
		return false
	}
	if self := l.self(); self != "" && msg.Author.ID == self {
		return false
	}
	if !containsFold(msg.Author.Username, l.config.AuthorMarker) {
		return false
	}
	for _, e := range msg.Embeds {
		if e != nil && containsFold(e.Title, l.config.TitleMarker) {
			return true
		}
	}
	return false
}

func containsFold(s, marker string) bool {
	if marker == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(marker))
}

// RecordFromMessage converts a gateway message into a stock record.
// The message id is the snapshot id and the message timestamp is used when no embed carries one.
func RecordFromMessage(msg *discordgo.Message) stock.Record {
	rec := stock.Record{
		ID:      msg.ID,
		Content: msg.Content,
		Source:  domain.SourceDiscord,
	}
	if !msg.Timestamp.IsZero() {
		rec.CreatedAt = msg.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	hasEmbedTime := false
	for _, e := range msg.Embeds {
		if e == nil {
			continue
		}
		embed := stock.Embed{Title: e.Title, Timestamp: e.Timestamp}
		if e.Timestamp != "" {
			hasEmbedTime = true
		}
		for _, f := range e.Fields {
			if f == nil {
				continue
			}
			embed.Fields = append(embed.Fields, stock.EmbedField{Name: f.Name, Value: f.Value})
		}
		rec.Embeds = append(rec.Embeds, embed)
	}
	if hasEmbedTime {
		rec.CreatedAt = ""
	}

	if raw, err := json.Marshal(msg); err == nil {
		rec.Raw = raw
	}
	return rec
}
