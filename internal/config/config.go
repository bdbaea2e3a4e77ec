package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"GIFTSYNC_BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"GIFTSYNC_PORT" env-default:"8080"`
}

type StripeConfig struct {
	APIKey        string        `yaml:"api_key" env:"STRIPE_SECRET_KEY" env-default:""`
	WebhookSecret string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET" env-default:""`
	Tolerance     time.Duration `yaml:"tolerance" env:"STRIPE_TOLERANCE" env-default:"5m"`
}

type MailchimpConfig struct {
	APIKey       string `yaml:"api_key" env:"MAILCHIMP_API_KEY" env-default:""`
	ServerPrefix string `yaml:"server_prefix" env:"MAILCHIMP_SERVER_PREFIX" env-default:""`
	AudienceID   string `yaml:"audience_id" env:"MAILCHIMP_AUDIENCE_ID" env-default:""`
	BaseURL      string `yaml:"base_url" env:"MAILCHIMP_BASE_URL" env-default:""`
	BuyerTag     string `yaml:"buyer_tag" env-default:"gift_buyer"`
	RecipientTag string `yaml:"recipient_tag" env-default:"gift_recipient"`
	GiftTag      string `yaml:"gift_tag" env-default:"tarjeta_regalo"`
}

type GiftConfig struct {
	CodePrefix string `yaml:"code_prefix" env:"GIFT_CODE_PREFIX" env-default:"BESP"`
}

type Mongo struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"giftsync"`
}

type Telegram struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	ApiKey   string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatId   int64  `yaml:"chat_id" env-default:"0"`
	MinLevel string `yaml:"min_level" env-default:"error"`
}

type Config struct {
	Env       string          `yaml:"env" env:"GIFTSYNC_ENV" env-default:"local"`
	Listen    Listen          `yaml:"listen"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Mailchimp MailchimpConfig `yaml:"mailchimp"`
	Gift      GiftConfig      `yaml:"gift"`
	Mongo     Mongo           `yaml:"mongo"`
	Telegram  Telegram        `yaml:"telegram"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance, err = Load(path)
		if err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	return conf, nil
}
