package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/net/html"
	"gorm.io/gorm"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/helpdesk"
)

// Relay event kinds, matching the ticket-system hooks the bridge consumes.
const (
	RelayCommunication = "communication"
	RelayStatusChange  = "status_change"
)

// RelayEvent is the envelope published by the webhook API and consumed by
// the relay worker.
type RelayEvent struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	TicketID string `json:"ticket_id"`

	// communication
	Direction string `json:"direction,omitempty"`
	Content   string `json:"content,omitempty"`

	// status_change
	StatusCategory string `json:"status_category,omitempty"`
}

// Relay reacts to downstream ticket-system events: forwarding agent replies
// to the originating chat and closing the link once a ticket resolves. Both
// handlers are idempotent and may race an in-flight poll cycle.
type Relay struct {
	repo *Repo
	tg   Transport
	desk helpdesk.Service
}

func NewRelay(repo *Repo, tg Transport, desk helpdesk.Service) *Relay {
	return &Relay{repo: repo, tg: tg, desk: desk}
}

func (r *Relay) Handle(ctx context.Context, ev RelayEvent) error {
	switch ev.Kind {
	case RelayCommunication:
		return r.HandleCommunication(ctx, ev)
	case RelayStatusChange:
		return r.HandleStatusChange(ctx, ev)
	default:
		return fmt.Errorf("relay: unknown event kind %q", ev.Kind)
	}
}

// HandleCommunication forwards an outward-direction reply to the chat linked
// to the ticket. No open mapping, an unresolvable chat, or an empty body
// after markup stripping are all silent no-ops.
func (r *Relay) HandleCommunication(ctx context.Context, ev RelayEvent) error {
	if ev.Direction != "Sent" {
		return nil
	}

	mapping, err := r.repo.OpenMappingByTicket(ctx, ev.TicketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	chat, err := r.repo.ChatByID(ctx, mapping.TelegramChatID)
	if err != nil {
		log.Printf("relay: chat %d for ticket %s: %v", mapping.TelegramChatID, ev.TicketID, err)
		return nil
	}
	chatID, err := chatPlatformID(chat)
	if err != nil {
		log.Printf("relay: bad chat id %q: %v", chat.ChatID, err)
		return nil
	}

	plain := StripHTML(ev.Content)
	if strings.TrimSpace(plain) == "" {
		return nil
	}

	r.tg.SendMessage(ctx, chatID, fmt.Sprintf("Reply on Ticket #%s:\n\n%s", ev.TicketID, plain), nil)
	return nil
}

// HandleStatusChange closes the mapping when a ticket reaches the resolved
// category, then best-effort notifies the user. Closing happens first and is
// not rolled back if the notification fails; a second firing for the same
// transition finds no open mapping and no-ops.
func (r *Relay) HandleStatusChange(ctx context.Context, ev RelayEvent) error {
	if ev.StatusCategory != "Resolved" {
		return nil
	}

	mapping, err := r.repo.OpenMappingByTicket(ctx, ev.TicketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	closed, err := r.repo.CloseMapping(ctx, mapping.ID)
	if err != nil {
		return fmt.Errorf("close mapping %s: %w", mapping.ID, err)
	}
	if !closed {
		return nil
	}

	chat, err := r.repo.ChatByID(ctx, mapping.TelegramChatID)
	if err != nil {
		log.Printf("relay: chat %d for ticket %s: %v", mapping.TelegramChatID, ev.TicketID, err)
		return nil
	}
	chatID, err := chatPlatformID(chat)
	if err != nil {
		log.Printf("relay: bad chat id %q: %v", chat.ChatID, err)
		return nil
	}

	r.tg.SendMessage(ctx, chatID,
		fmt.Sprintf("Your ticket #%s has been resolved.\nSend /start to create a new ticket.", ev.TicketID), nil)
	return nil
}

// StripHTML flattens markup to plain text, inserting line breaks at block
// boundaries.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "br", "p", "div", "li":
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(b.String())
}
