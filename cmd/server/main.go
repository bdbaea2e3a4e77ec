package main

import (
	"flag"
	"log/slog"

	"giftsync/bot"
	"giftsync/impl/core"
	"giftsync/internal/config"
	"giftsync/internal/database"
	"giftsync/internal/http-server/api"
	"giftsync/internal/mailchimp"
	"giftsync/internal/stripeclient"
	"giftsync/lib/logger"
	"giftsync/lib/sl"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, *logPath)

	if conf.Telegram.Enabled {
		// the bot logs through the base logger so failed sends never alert
		tgBot, err := bot.NewTgBot(conf.Telegram.ApiKey, conf.Telegram.ChatId, log)
		if err != nil {
			log.With(sl.Err(err)).Error("telegram bot")
		} else {
			handler := logger.NewTelegramHandler(log.Handler(), tgBot, logger.ParseLevel(conf.Telegram.MinLevel))
			log = slog.New(handler)
			log.Debug("telegram alerts enabled", slog.Int64("chat_id", conf.Telegram.ChatId))
		}
	}

	log.Info("starting giftsync", slog.String("config", *configPath), slog.String("env", conf.Env))

	sc := stripeclient.New(conf.Stripe, nil, log)

	mc := mailchimp.NewClient(mailchimp.Config{
		APIKey:       conf.Mailchimp.APIKey,
		ServerPrefix: conf.Mailchimp.ServerPrefix,
		AudienceID:   conf.Mailchimp.AudienceID,
		BaseURL:      conf.Mailchimp.BaseURL,
	}, log)
	if !mc.Enabled() {
		log.Warn("mailchimp is not configured, contacts will not be synced")
	}

	handler := core.New(sc, mc, log)
	handler.SetTags(mailchimp.Tags{
		Buyer:     conf.Mailchimp.BuyerTag,
		Recipient: conf.Mailchimp.RecipientTag,
		Gift:      conf.Mailchimp.GiftTag,
	})
	handler.SetCodePrefix(conf.Gift.CodePrefix)

	if mongo := database.NewMongoClient(conf.Mongo); mongo != nil {
		handler.SetJournal(mongo)
		log.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("database", conf.Mongo.Database),
		).Info("event journal enabled")
	}

	if err := api.New(conf, log, handler); err != nil {
		log.With(sl.Err(err)).Error("server stopped")
	}
}
