package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starboard-bot/config"
	grpcsrv "starboard-bot/grpc"
	"starboard-bot/metrics"
	"starboard-bot/models"
	"starboard-bot/status"
	"starboard-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Bot encapsulates the bot's state.
type Bot struct {
	Session  *discordgo.Session
	Commands map[string]*discordgo.ApplicationCommand
	Auth     *utils.Auth
	Services *Services

	starboard models.StarboardConfig
	database  models.DatabaseConfig
	guard     models.GuardConfig
	metrics   *metrics.Metrics
	status    *status.Server
	health    *grpcsrv.HealthServer
}

// NewBot creates and initializes a new Bot instance.
func NewBot() (*Bot, error) {
	config.LoadConfig()
	token := viper.GetString("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	starboardCfg, err := config.Starboard()
	if err != nil {
		return nil, err
	}
	databaseCfg, err := config.Database()
	if err != nil {
		return nil, err
	}
	guardCfg, err := config.Guard()
	if err != nil {
		return nil, err
	}
	auth, err := utils.NewAuth()
	if err != nil {
		return nil, fmt.Errorf("error loading command permissions: %w", err)
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions | discordgo.IntentsMessageContent

	utils.InitLogger(dg)

	return &Bot{
		Session:   dg,
		Commands:  make(map[string]*discordgo.ApplicationCommand),
		Auth:      auth,
		starboard: starboardCfg,
		database:  databaseCfg,
		guard:     guardCfg,
		metrics:   metrics.New(),
	}, nil
}

// Config returns the starboard configuration the bot was started with.
func (b *Bot) Config() models.StarboardConfig {
	return b.starboard
}

// RegisterCommands registers the provided commands.
func (b *Bot) RegisterCommands(commands []*discordgo.ApplicationCommand) {
	for _, cmd := range commands {
		b.Commands[cmd.Name] = cmd
	}
}

// Start wires the starboard, registers handlers and opens the session.
// Health endpoints report ready only once all of that succeeded.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	b.health = grpcsrv.NewHealthServer()
	go func() {
		if err := b.health.ListenAndServe(config.GRPC().HealthAddr); err != nil {
			utils.Logger.WithError(err).Error("gRPC health server stopped")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	svc, err := NewServices(ctx, Options{
		Starboard:  b.starboard,
		Database:   b.database,
		Guard:      b.guard,
		Session:    b.Session,
		Authorizer: b.Auth,
		Logger:     utils.Logger,
		Metrics:    b.metrics,
	})
	if err != nil {
		return fmt.Errorf("error starting starboard: %w", err)
	}
	b.Services = svc

	b.status = status.NewServer(b.metrics.Registry(), svc.Cache, svc.Overrides, utils.Logger)
	go func() {
		if err := b.status.Start(config.Status().Addr); err != nil {
			utils.Logger.WithError(err).Error("status server stopped")
		}
	}()

	registerHandlers(b)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	// Register slash commands
	for _, cmd := range b.Commands {
		_, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, b.starboard.GuildID, cmd)
		if err != nil {
			log.Printf("Cannot create '%v' command: %v", cmd.Name, err)
		}
	}

	if err := startScheduler(svc); err != nil {
		return err
	}

	b.status.SetReady(true)
	b.health.SetServing(true)
	utils.Info("bot", "start", fmt.Sprintf("Starboard online, threshold %d", b.starboard.Threshold))
	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop gracefully closes the bot's session.
func (b *Bot) Stop() {
	if b.health != nil {
		b.health.SetServing(false)
	}
	if b.status != nil {
		b.status.SetReady(false)
	}
	stopScheduler()
	if b.Session != nil {
		b.Session.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if b.status != nil {
		if err := b.status.Shutdown(ctx); err != nil {
			log.Printf("Error stopping status server: %v", err)
		}
	}
	if b.health != nil {
		b.health.Stop()
	}
	if b.Services != nil {
		b.Services.Close()
	}
	fmt.Println("Bot stopped gracefully.")
}

// Run is the main entry point for the bot application.
func Run(registerHandlers func(*Bot), commands []*discordgo.ApplicationCommand) {
	bot, err := NewBot()
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	bot.RegisterCommands(commands)

	if err := bot.Start(registerHandlers); err != nil {
		bot.Stop()
		log.Fatalf("Error starting bot: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
