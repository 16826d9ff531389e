package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"raffler/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	embedColorDrawComplete = 0x2ECC71
	maxWinnersShown        = 20
	koinuPerCoin           = 100_000_000
)

// embedSender is the part of a discordgo session the poster needs
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordResultPoster announces completed draws in a Discord channel
type DiscordResultPoster struct {
	session   embedSender
	channelID string
}

// NewDiscordSession opens a bot session for posting announcements
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return session, nil
}

// NewDiscordResultPoster creates a poster that writes to channelID
func NewDiscordResultPoster(session embedSender, channelID string) *DiscordResultPoster {
	return &DiscordResultPoster{
		session:   session,
		channelID: channelID,
	}
}

// PostDrawResult posts the winners of a completed draw
func (p *DiscordResultPoster) PostDrawResult(ctx context.Context, event events.DrawCompletedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	embed := CreateDrawResultEmbed(event)
	msg, err := p.session.ChannelMessageSendEmbed(p.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post draw result: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":  event.RaffleID,
		"channel_id": p.channelID,
		"message_id": msg.ID,
		"winners":    len(event.Winners),
	}).Info("Posted draw result to Discord")
	return nil
}

// Attach posts every DrawCompleted event emitted on bus
func (p *DiscordResultPoster) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTypeDrawCompleted, func(ctx context.Context, event events.Event) {
		completed, ok := event.(events.DrawCompletedEvent)
		if !ok {
			return
		}
		if err := p.PostDrawResult(ctx, completed); err != nil {
			log.WithError(err).WithField("raffle_id", completed.RaffleID).Error("Failed to announce draw result")
		}
	})
}

// CreateDrawResultEmbed builds the announcement embed for a draw
func CreateDrawResultEmbed(event events.DrawCompletedEvent) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(event.Winners))
	for i, w := range event.Winners {
		if i == maxWinnersShown {
			lines = append(lines, fmt.Sprintf("...and %d more", len(event.Winners)-maxWinnersShown))
			break
		}
		lines = append(lines, fmt.Sprintf("**%s** `%s` - %s (ticket #%d)", w.TierLabel, w.Wallet, FormatCoins(w.PrizeAmount), w.TicketIndex))
	}
	winnerStr := "No winners"
	if len(lines) > 0 {
		winnerStr = strings.Join(lines, "\n")
	}

	proof := fmt.Sprintf("Seed `%s`", event.Seed)
	if event.BlockNumber != nil && event.BlockHash != nil {
		proof = fmt.Sprintf("Block %d\nHash `%s`", *event.BlockNumber, *event.BlockHash)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Raffle #%d - %s", event.RaffleID, event.RaffleTitle),
		Color:       embedColorDrawComplete,
		Description: fmt.Sprintf("%d tickets drawn, %s distributed", event.TotalTickets, FormatCoins(event.TotalDistributed)),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Winners",
				Value:  winnerStr,
				Inline: false,
			},
			{
				Name:   "Randomness",
				Value:  event.RandomnessMode,
				Inline: true,
			},
			{
				Name:   "Proof",
				Value:  proof,
				Inline: true,
			},
		},
	}
}

// FormatCoins renders an amount of koinu as whole coins with thousands
// separators, dropping trailing fractional zeros
func FormatCoins(koinu int64) string {
	sign := ""
	if koinu < 0 {
		sign = "-"
		koinu = -koinu
	}

	whole := fmt.Sprintf("%d", koinu/koinuPerCoin)
	var b strings.Builder
	n := len(whole)
	for i, digit := range whole {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteRune(',')
		}
		b.WriteRune(digit)
	}

	frac := strings.TrimRight(fmt.Sprintf("%08d", koinu%koinuPerCoin), "0")
	if frac != "" {
		return fmt.Sprintf("%s%s.%s DOGE", sign, b.String(), frac)
	}
	return fmt.Sprintf("%s%s DOGE", sign, b.String())
}
