package utils

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu     sync.Mutex
	embeds []*discordgo.MessageEmbed
	err    error
}

func (r *recordingSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeds = append(r.embeds, embed)
	return &discordgo.Message{ChannelID: channelID}, r.err
}

func TestDiscordHook_MirrorsWarningsAndNotifiedInfo(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sender := &recordingSender{}
	logger.AddHook(NewDiscordHook(sender, "admin"))

	logger.WithField("component", "curator").Info("quiet")
	logger.WithFields(logrus.Fields{"module": "bot", "operation": "start", "notify": true}).Info("online")
	logger.WithField("module", "review").WithError(errors.New("boom")).Error("commit failed")

	require.Len(t, sender.embeds, 2)

	online := sender.embeds[0]
	assert.Equal(t, ColorInfo, online.Color)
	assert.Equal(t, "bot", online.Fields[0].Value)
	assert.Equal(t, "start", online.Fields[1].Value)
	assert.Equal(t, "online", online.Fields[2].Value)

	failed := sender.embeds[1]
	assert.Equal(t, ColorError, failed.Color)
	assert.Equal(t, "Log Level: ERROR", failed.Title)
	assert.Equal(t, "-", failed.Fields[1].Value)
	assert.Equal(t, "commit failed: boom", failed.Fields[2].Value)
}

func TestDiscordHook_SendFailureDoesNotFailLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.AddHook(NewDiscordHook(&recordingSender{err: errors.New("missing access")}, "admin"))

	logger.Warn("still logged")
	assert.Len(t, hook.AllEntries(), 1)
}

func TestLog_AddsModuleAndOperation(t *testing.T) {
	_, hook := test.NewNullLogger()
	old := Logger
	Logger = logrus.New()
	Logger.SetOutput(io.Discard)
	Logger.AddHook(hook)
	t.Cleanup(func() { Logger = old })

	Warn("cache", "prune", "removed 3 entries")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "cache", entry.Data["module"])
	assert.Equal(t, "prune", entry.Data["operation"])
	assert.Equal(t, "removed 3 entries", entry.Message)
}
