package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/gosimple/slug"

	"github.com/siamcircuit/tournament-ops/config"
)

const channelNameLimit = 90

// Notifier оборачивает бот-сессию Discord: анонсы матчей в общий канал
// и приватные каналы под сдачу результатов.
type Notifier struct {
	session           *discordgo.Session
	guildID           string
	announceChannelID string
	resultCategoryID  string
	staffRoleID       string
	logger            *slog.Logger
}

func NewNotifier(cfg config.DiscordConfig, logger *slog.Logger) (*Notifier, error) {
	if cfg.BotToken == "" || cfg.GuildID == "" {
		return nil, fmt.Errorf("discord bot token and guild id are required")
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return &Notifier{
		session:           session,
		guildID:           cfg.GuildID,
		announceChannelID: cfg.AnnounceChannelID,
		resultCategoryID:  cfg.ResultCategoryID,
		staffRoleID:       cfg.StaffRoleID,
		logger:            logger,
	}, nil
}

func (n *Notifier) Open() error {
	if err := n.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway connection: %w", err)
	}
	return nil
}

func (n *Notifier) Close() error {
	return n.session.Close()
}

// Announce публикует сообщение в общем канале анонсов.
func (n *Notifier) Announce(ctx context.Context, text string) error {
	if n.announceChannelID == "" {
		n.logger.Warn("announce channel is not configured, skipping announcement")
		return nil
	}
	return n.PostMessage(ctx, n.announceChannelID, text)
}

func (n *Notifier) PostMessage(ctx context.Context, channelID, text string) error {
	_, err := n.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post message to channel %s: %w", channelID, err)
	}
	return nil
}

// CreateResultChannel заводит приватный текстовый канал матча: видят его
// только капитаны обеих команд и стафф-роль.
func (n *Notifier) CreateResultChannel(ctx context.Context, matchID, teamAName, teamBName string, captainIDs []string) (string, error) {
	name := slug.Make(fmt.Sprintf("result-%s-%s-vs-%s", matchID, teamAName, teamBName))
	if len(name) > channelNameLimit {
		name = name[:channelNameLimit]
	}

	memberPerms := int64(discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory)

	overwrites := []*discordgo.PermissionOverwrite{
		{
			// id гильдии совпадает с id роли @everyone.
			ID:   n.guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: int64(discordgo.PermissionViewChannel),
		},
	}
	for _, captainID := range captainIDs {
		if captainID == "" {
			continue
		}
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    captainID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberPerms,
		})
	}
	if n.staffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    n.staffRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberPerms,
		})
	}

	channel, err := n.session.GuildChannelCreateComplex(n.guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             n.resultCategoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create result channel for match %s: %w", matchID, err)
	}

	n.logger.Info("created result channel",
		slog.String("match_id", matchID),
		slog.String("channel_id", channel.ID),
		slog.String("channel_name", name))
	return channel.ID, nil
}
