package utils

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// Logger is the process logger. Services get it as a logrus.FieldLogger.
var Logger = logrus.New()

// EmbedSender is the part of *discordgo.Session the admin channel hook needs.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// InitLogger configures Logger from bot.logLevel / bot.logFormat and mirrors
// warnings and errors to bot.adminChannelId when it is set.
func InitLogger(s *discordgo.Session) {
	Logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(viper.GetString("bot.logLevel"))
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	if viper.GetString("bot.logFormat") == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	channelID := viper.GetString("bot.adminChannelId")
	if channelID == "" || s == nil {
		log.Println("Warning: bot.adminChannelId is not set in config.yaml. Logging to channel will be disabled.")
		return
	}
	Logger.AddHook(NewDiscordHook(s, channelID))
}

// DiscordHook posts log entries to the admin channel as embeds.
// Warnings and errors are always posted, lower levels only when the entry
// carries notify=true.
type DiscordHook struct {
	sender    EmbedSender
	channelID string
}

func NewDiscordHook(sender EmbedSender, channelID string) *DiscordHook {
	return &DiscordHook{sender: sender, channelID: channelID}
}

func (h *DiscordHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}

func (h *DiscordHook) Fire(entry *logrus.Entry) error {
	if entry.Level > logrus.WarnLevel {
		if notify, _ := entry.Data["notify"].(bool); !notify {
			return nil
		}
	}
	if _, err := h.sender.ChannelMessageSendEmbed(h.channelID, buildEmbed(entry)); err != nil {
		// 不能再经过 Logger，否则会递归触发 hook
		log.Printf("Error sending log message to Discord: %v", err)
	}
	return nil
}

func buildEmbed(entry *logrus.Entry) *discordgo.MessageEmbed {
	var color int
	switch entry.Level {
	case logrus.WarnLevel:
		color = ColorWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		color = ColorError
	default:
		color = ColorInfo
	}

	module := fieldString(entry, "module")
	if module == "" {
		module = fieldString(entry, "component")
	}
	if module == "" {
		module = "-"
	}
	operation := fieldString(entry, "operation")
	if operation == "" {
		operation = "-"
	}
	details := entry.Message
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		details = fmt.Sprintf("%s: %v", details, err)
	}
	if len(details) > 1024 {
		details = details[:1021] + "..."
	}

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", levelName(entry.Level)),
		Color:     color,
		Timestamp: entry.Time.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "模块",
				Value:  module,
				Inline: true,
			},
			{
				Name:   "操作",
				Value:  operation,
				Inline: true,
			},
			{
				Name:  "附加信息",
				Value: details,
			},
		},
	}
}

func fieldString(entry *logrus.Entry, key string) string {
	if v, ok := entry.Data[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Log sends a log message to the process log and, through the hook, to the
// admin channel.
func Log(level, module, operation, details string) {
	entry := Logger.WithFields(logrus.Fields{
		"module":    module,
		"operation": operation,
		"notify":    true,
	})
	switch level {
	case "WARN":
		entry.Warn(details)
	case "ERROR":
		entry.Error(details)
	default:
		entry.Info(details)
	}
}

// Info logs an informational message.
func Info(module, operation, details string) {
	Log("INFO", module, operation, details)
}

// Warn logs a warning message.
func Warn(module, operation, details string) {
	Log("WARN", module, operation, details)
}

// Error logs an error message.
func Error(module, operation, details string) {
	Log("ERROR", module, operation, details)
}
