package command

import "github.com/bwmarrin/discordgo"

var minThreshold = 1.0

// StarboardCommand defines the structure for the /starboard command.
type StarboardCommand struct{}

// Definition returns the application command definition.
func (c *StarboardCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "starboard",
		Description: "Manage the starboard",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "override-set",
				Description: "Set the star threshold for a channel",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "channel",
						Description: "The channel to override",
						Type:        discordgo.ApplicationCommandOptionChannel,
						Required:    true,
					},
					{
						Name:        "threshold",
						Description: "Stars needed before a message is queued",
						Type:        discordgo.ApplicationCommandOptionInteger,
						Required:    true,
						MinValue:    &minThreshold,
					},
				},
			},
			{
				Name:        "override-remove",
				Description: "Use the default threshold for a channel again",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "channel",
						Description: "The channel to reset",
						Type:        discordgo.ApplicationCommandOptionChannel,
						Required:    true,
					},
				},
			},
			{
				Name:        "override-list",
				Description: "List channel threshold overrides",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "show",
				Description: "Show the curation state of a message",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "message_id",
						Description: "Source, queue or highlight message id",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
				},
			},
		},
	}
}

// PingCommand defines the structure for the /ping command.
type PingCommand struct{}

// Definition returns the application command definition.
func (c *PingCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "ping",
		Description: "Responds with Pong!",
	}
}
